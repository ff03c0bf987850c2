package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSolution(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "sentinel with payload",
			content: "Case resolved. <solution>42</solution>",
			want:    "42",
		},
		{
			name:    "sentinel without delimiters returns raw",
			content: "Case resolved. no tags here",
			want:    "Case resolved. no tags here",
		},
		{
			name:    "no sentinel returns raw",
			content: "<solution>42</solution>",
			want:    "<solution>42</solution>",
		},
		{
			name:    "multiline payload",
			content: "Case resolved.\n<solution>line one\nline two</solution>",
			want:    "line one\nline two",
		},
		{
			name:    "only first payload extracted",
			content: "Case resolved. <solution>first</solution> <solution>second</solution>",
			want:    "first",
		},
		{
			name:    "unterminated payload returns raw",
			content: "Case resolved. <solution>dangling",
			want:    "Case resolved. <solution>dangling",
		},
		{
			name:    "empty content",
			content: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSolution(tt.content))
		})
	}
}
