package logger

import "testing"

func TestRedactToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "***"},
		{"7231998:AAF3xyzLongToken", "7231***"},
	}
	for _, tt := range tests {
		if got := RedactToken(tt.in); got != tt.want {
			t.Errorf("RedactToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactDSN(t *testing.T) {
	got := RedactDSN("postgres://bot:hunter2@db:5432/posts?sslmode=disable")
	want := "postgres://bot:***@db:5432/posts?sslmode=disable"
	if got != want {
		t.Errorf("RedactDSN = %q, want %q", got, want)
	}

	// No password, nothing to do.
	if got := RedactDSN("postgres://db:5432/posts"); got != "postgres://db:5432/posts" {
		t.Errorf("passwordless DSN was altered: %q", got)
	}
}

func TestRedactBotURL(t *testing.T) {
	got := RedactBotURL("https://api.telegram.org/bot7231998:AAF3xyz_abc/sendPhoto")
	want := "https://api.telegram.org/bot***/sendPhoto"
	if got != want {
		t.Errorf("RedactBotURL = %q, want %q", got, want)
	}

	plain := "https://example.com/webhook"
	if got := RedactBotURL(plain); got != plain {
		t.Errorf("non-bot URL was altered: %q", got)
	}
}
