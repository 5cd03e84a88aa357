package cause

import "strings"

// MaxLineLength bounds the lines considered for lookup
const MaxLineLength = 4096

// Match is a successful catalogue lookup
type Match struct {
	Entry
	// Offset is the byte offset of Trigger within the line.
	Offset int
}

// LookupFirstMatch returns the first entry, in catalogue order, whose trigger
// occurs in line. Empty and overlong lines never match.
func (c Catalogue) LookupFirstMatch(line string) (Match, bool) {
	if line == "" || len(line) > MaxLineLength {
		return Match{}, false
	}
	for _, e := range c {
		if e.Trigger == "" {
			continue
		}
		if idx := strings.Index(line, e.Trigger); idx >= 0 {
			return Match{Entry: e, Offset: idx}, true
		}
	}
	return Match{}, false
}

// LookupFirstMatch searches the built-in catalogue
func LookupFirstMatch(line string) (Match, bool) {
	return defaultCatalogue.LookupFirstMatch(line)
}
