package process

import (
	"reflect"
	"testing"
)

func TestParseCommandArgs(t *testing.T) {
	t.Parallel()

	got, err := ParseCommandArgs(`pawncc "gamemodes/my mode.pwn" -ogamemodes/bare.amx -d3`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	want := []string{"pawncc", "gamemodes/my mode.pwn", "-ogamemodes/bare.amx", "-d3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected argv: got %#v want %#v", got, want)
	}
}

func TestParseCommandArgs_UnterminatedQuote(t *testing.T) {
	t.Parallel()

	if _, err := ParseCommandArgs(`ls "gamemodes`); err == nil {
		t.Fatal("expected unterminated quote error")
	}
}
