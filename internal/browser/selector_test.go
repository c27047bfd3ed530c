package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSelector(t *testing.T) {
	tests := []struct {
		in   string
		css  string
		text string
	}{
		{`button[type="submit"]`, `button[type="submit"]`, ""},
		{`button|submit`, `button`, "submit"},
		{`button|Easy Apply`, `button`, "easy apply"},
		{`.jobs-apply-button| easy apply `, `.jobs-apply-button`, "easy apply"},
		{`[role="button"]|submit`, `[role="button"]`, "submit"},
	}

	for _, tt := range tests {
		css, text := SplitSelector(tt.in)
		assert.Equal(t, tt.css, css, tt.in)
		assert.Equal(t, tt.text, text, tt.in)
	}
}

func TestMatchesText(t *testing.T) {
	assert.True(t, MatchesText("Easy Apply", "easy apply"))
	assert.True(t, MatchesText("Submit Application", "submit"))
	assert.True(t, MatchesText("anything", ""))
	assert.False(t, MatchesText("Save", "apply"))
}
