package cli

import (
	"strings"

	"github.com/klantle/watchdogs-sub000/pkg/config"
)

// maxSuggestDistance is the largest edit distance still offered as a typo fix
const maxSuggestDistance = 2

// levenshtein returns the edit distance between a and b
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// suggestCommand returns the closest shell command to name when it is
// within maxSuggestDistance. Ties go to the earlier command.
func suggestCommand(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", false
	}
	best, bestDist := "", maxSuggestDistance+1
	for _, c := range shellCommands() {
		if d := levenshtein(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" || bestDist == 0 {
		return "", false
	}
	return best, true
}

// shellCommands are the subcommands plus the shell builtins
func shellCommands() []string {
	return append(append([]string{}, commandNames...), shellBuiltins...)
}

// validateDirectCommand checks a line the shell is about to run as a plain
// command
func validateDirectCommand(line string) error {
	return config.ValidateDirectCommand(line)
}
