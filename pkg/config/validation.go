package config

import (
	"fmt"
	"strings"
)

// ";" and "(" are legal in pawncc switches ("-;+", "-(+"), so only the
// patterns that could chain or redirect a command are refused.
var blockedShellPatterns = []string{
	"&&", "||", "|", ">", "<", "`", "$(", "${",
}

// FirstBlockedShellPattern returns the first shell pattern found in command
func FirstBlockedShellPattern(command string) (string, bool) {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return "", false
	}
	for _, p := range blockedShellPatterns {
		if strings.Contains(cmd, p) {
			return p, true
		}
	}
	return "", false
}

// ValidateCompilerOption checks a single pawncc switch
func ValidateCompilerOption(option string) error {
	opt := strings.TrimSpace(option)
	if opt == "" {
		return fmt.Errorf("compiler option cannot be empty")
	}
	if !strings.HasPrefix(opt, "-") && !strings.HasPrefix(opt, "/") {
		return fmt.Errorf("compiler option %q must start with '-' or '/'", opt)
	}
	if p, ok := FirstBlockedShellPattern(opt); ok {
		return fmt.Errorf("compiler option %q contains disallowed shell pattern %q", opt, p)
	}
	return nil
}

// ValidateDirectCommand checks a command line typed into the shell before it
// is executed without a shell.
func ValidateDirectCommand(command string) error {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if p, ok := FirstBlockedShellPattern(cmd); ok {
		return fmt.Errorf("command contains disallowed shell pattern %q; use a direct executable command (e.g. \"ls gamemodes\")", p)
	}
	if strings.Contains(cmd, ";") {
		return fmt.Errorf("command contains disallowed shell pattern %q; use a direct executable command (e.g. \"ls gamemodes\")", ";")
	}
	return nil
}
