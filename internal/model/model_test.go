package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForIdentifier(t *testing.T) {
	tests := []struct {
		identifier    string
		wantAnthropic bool
	}{
		{"claude-sonnet-4-5", true},
		{"claude-3-haiku", true},
		{"gpt-4o-mini", false},
		{"gpt-4o", false},
		{"o3-mini", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			p := ForIdentifier(tt.identifier)
			_, isAnthropic := p.(*AnthropicProvider)
			assert.Equal(t, tt.wantAnthropic, isAnthropic)
		})
	}
}
