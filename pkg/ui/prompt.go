package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// IsYes applies the default-to-yes rule: an empty answer or one starting
// with Y/y is a yes, anything else is a no.
func IsYes(answer string) bool {
	a := strings.TrimSpace(answer)
	if a == "" {
		return true
	}
	return a[0] == 'Y' || a[0] == 'y'
}

// LinePrompter asks questions on out and reads answers from in
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter creates a prompter over a line-oriented input
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// Confirm prints question and applies IsYes to the reply. A closed input
// counts as no.
func (lp *LinePrompter) Confirm(question string) bool {
	answer, err := lp.readLine(question + " ")
	if err != nil {
		return false
	}
	return IsYes(answer)
}

// Input prints question and returns the trimmed reply
func (lp *LinePrompter) Input(question string) string {
	answer, _ := lp.readLine(question + " ")
	return strings.TrimSpace(answer)
}

// ReadLine reads one raw line after printing prompt
func (lp *LinePrompter) ReadLine(prompt string) (string, error) {
	return lp.readLine(prompt)
}

func (lp *LinePrompter) readLine(prompt string) (string, error) {
	fmt.Fprint(lp.out, prompt)
	line, err := lp.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// FixedPrompter answers every confirmation the same way without reading input
type FixedPrompter struct {
	Answer bool
}

func (fp FixedPrompter) Confirm(string) bool { return fp.Answer }

func (fp FixedPrompter) Input(string) string { return "" }
