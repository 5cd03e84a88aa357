package cli

import "testing"

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "run", 3},
		{"run", "run", 0},
		{"rnu", "run", 2},
		{"compil", "compile", 1},
		{"kitten", "sitting", 3},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Fatalf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSuggestCommand(t *testing.T) {
	t.Parallel()

	if s, ok := suggestCommand("compil"); !ok || s != "compile" {
		t.Fatalf("expected compile, got %q (ok=%v)", s, ok)
	}
	if s, ok := suggestCommand("exti"); !ok || s != "exit" {
		t.Fatalf("expected exit, got %q (ok=%v)", s, ok)
	}
	if s, ok := suggestCommand("stop"); ok {
		t.Fatalf("exact command should not be suggested, got %q", s)
	}
	if s, ok := suggestCommand("gitlab-runner"); ok {
		t.Fatalf("expected no suggestion, got %q", s)
	}
}

func TestValidateDirectCommand(t *testing.T) {
	t.Parallel()

	valid := []string{
		"ls gamemodes",
		"cat server.cfg",
		"./samp03svr",
	}
	for _, c := range valid {
		if err := validateDirectCommand(c); err != nil {
			t.Fatalf("expected valid command %q, got error: %v", c, err)
		}
	}

	invalid := []string{
		"",
		"ls && rm -rf gamemodes",
		"cat server.cfg | grep rcon",
		"echo ${HOME}",
		"ls; whoami",
	}
	for _, c := range invalid {
		if err := validateDirectCommand(c); err == nil {
			t.Fatalf("expected invalid command %q to fail", c)
		}
	}
}
