package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/bpkit/internal/config"
)

func TestSentences(t *testing.T) {
	got := sentences("Guests book fast. Hosts earn more!  Is it safe? Yes v1.2 ships")
	assert.Equal(t, []string{"Guests book fast.", "Hosts earn more!", "Is it safe?", "Yes v1.2 ships"}, got)
	assert.Empty(t, sentences("   "))
}

func TestFeatureTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Instant booking: guests book in seconds", "Instant Booking"},
		{"Feature: smart pricing - adjusts nightly", "Smart Pricing"},
		{"API access for property managers and large agencies worldwide", "API Access For Property Managers And"},
		{"**Secure** payments (PCI)", "Secure Payments PCI"},
		{"host-side calendar sync", "Host-Side Calendar Sync"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, featureTitle(tt.in))
		})
	}
}

func TestNumericConstraint(t *testing.T) {
	for _, s := range []string{"under 2 seconds", "99.9% uptime", "< 200ms", "costs $10", "within 3 days"} {
		assert.True(t, hasNumericConstraint(s), s)
	}
	for _, s := range []string{"fast responses", "version two", "founded in 2019"} {
		assert.False(t, hasNumericConstraint(s), s)
	}
}

func TestModal_StrongestWins(t *testing.T) {
	v := newVocabulary(config.Default())

	m, ok := v.modal("We should and must ensure safety")
	assert.True(t, ok)
	assert.Equal(t, "must", m.Phrase)

	_, ok = v.modal("Mustard is a condiment")
	assert.False(t, ok, "whole words only")
}
