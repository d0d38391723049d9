package gemini

import "testing"

func TestExpandAlias(t *testing.T) {
	h := New(Config{Aliases: map[string]string{"flash": "gemini-2.0-flash"}})
	if got := h.ExpandAlias("flash"); got != "gemini-2.0-flash" {
		t.Errorf("got %q, want gemini-2.0-flash", got)
	}
	if got := h.ExpandAlias("unknown"); got != "unknown" {
		t.Errorf("got %q, want unknown", got)
	}
}

func TestMatchesModel(t *testing.T) {
	h := New(Config{Aliases: map[string]string{"flash": "gemini-2.0-flash"}, Prefixes: []string{"gemini-"}})
	tests := []struct {
		model string
		want  bool
	}{
		{"flash", true},
		{"gemini-2.0-flash", true},
		{"gemini-1.5-pro", true},
		{"other", false},
	}
	for _, tt := range tests {
		got := h.MatchesModel(tt.model)
		if got != tt.want {
			t.Errorf("MatchesModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestMatchesModel_NoConfig(t *testing.T) {
	h := New(Config{})
	if h.MatchesModel("gemini-2.0-flash") {
		t.Error("expected no match when no prefixes or aliases configured")
	}
}
