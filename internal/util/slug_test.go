package util

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"About Us", "about-us"},
		{"/About Us", "about-us"},
		{"  Pricing & Plans!  ", "pricing-plans"},
		{"Café résumé", "cafe-resume"},
		{"Über Straße", "uber-stra-e"},
		{"release-2026--notes", "release-2026-notes"},
		{"docs/getting started", "docs-getting-started"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSlugifyLength(t *testing.T) {
	got := Slugify(strings.Repeat("ab ", 150))
	if len(got) > MaxSlugLength {
		t.Fatalf("len = %d, want <= %d", len(got), MaxSlugLength)
	}
	if !IsValidSlug(got) {
		t.Errorf("truncated slug %q is not valid", got)
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"about", true},
		{"about-us", true},
		{"2026", true},
		{"v2-release-notes", true},
		{"", false},
		{"About", false},
		{"about us", false},
		{"about/us", false},
		{"-about", false},
		{"about-", false},
		{"about--us", false},
		{"café", false},
		{strings.Repeat("a", MaxSlugLength+1), false},
	}

	for _, tt := range tests {
		if got := IsValidSlug(tt.slug); got != tt.want {
			t.Errorf("IsValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
		}
	}
}
