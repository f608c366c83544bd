package version

import (
	"strings"
	"testing"
)

func TestIsDev(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	tests := []struct {
		version  string
		expected bool
	}{
		{"dev", true},
		{"1.0.0", false},
		{"v1.2.3", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			Version = tt.version
			if got := IsDev(); got != tt.expected {
				t.Errorf("IsDev() with Version=%q = %v, want %v", tt.version, got, tt.expected)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "1.4.0"
	ua := UserAgent()
	if !strings.HasPrefix(ua, "hostfleet/1.4.0") {
		t.Errorf("UserAgent() = %q, want hostfleet/1.4.0 prefix", ua)
	}
}
