package serverconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/jsonc"
)

// ErrNoPawnSection means an open.mp config has no "pawn" object
var ErrNoPawnSection = errors.New("missing 'pawn' section in config")

type span struct {
	start, end int
}

// memberSpans maps each member of the JSON object in data to the byte span
// of its value. data must be plain JSON; offsets are relative to data.
func memberSpans(data []byte) (map[string]span, span, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, span{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, span{}, fmt.Errorf("expected a JSON object")
	}
	open := int(dec.InputOffset()) - 1

	spans := make(map[string]span)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, span{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, span{}, fmt.Errorf("expected an object key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, span{}, err
		}
		end := int(dec.InputOffset())
		spans[key] = span{start: end - len(raw), end: end}
	}
	if _, err := dec.Token(); err != nil {
		return nil, span{}, err
	}
	return spans, span{start: open, end: int(dec.InputOffset())}, nil
}

type edit struct {
	at   span
	text []byte
}

func applyEdits(data []byte, edits []edit) []byte {
	sort.Slice(edits, func(i, j int) bool { return edits[i].at.start > edits[j].at.start })
	out := append([]byte{}, data...)
	for _, e := range edits {
		tail := append([]byte{}, out[e.at.end:]...)
		out = append(append(out[:e.at.start], e.text...), tail...)
	}
	return out
}

// pawnMembers locates the "pawn" object. Comments and trailing commas are
// tolerated; jsonc keeps byte offsets stable so spans index the raw input.
func pawnMembers(raw []byte) (map[string]span, span, error) {
	plain := jsonc.ToJSON(raw)
	top, _, err := memberSpans(plain)
	if err != nil {
		return nil, span{}, fmt.Errorf("JSON parse error: %w", err)
	}
	pawn, ok := top["pawn"]
	if !ok {
		return nil, span{}, ErrNoPawnSection
	}
	members, obj, err := memberSpans(plain[pawn.start:pawn.end])
	if err != nil {
		return nil, span{}, fmt.Errorf("%w: %v", ErrNoPawnSection, err)
	}
	for k, s := range members {
		members[k] = span{start: s.start + pawn.start, end: s.end + pawn.start}
	}
	obj = span{start: obj.start + pawn.start, end: obj.end + pawn.start}
	return members, obj, nil
}

// insertMember adds "key": value right after the opening brace of obj
func insertMember(members map[string]span, obj span, key string, value []byte) edit {
	text := fmt.Sprintf("\n\t\t%q: %s", key, value)
	if len(members) > 0 {
		text += ","
	}
	at := obj.start + 1
	return edit{at: span{start: at, end: at}, text: []byte(text)}
}

// SetMainScripts sets pawn.main_scripts to [name]. A legacy "msj" array is
// rewritten as well when present. Bytes outside those arrays are untouched.
func SetMainScripts(raw []byte, name string) ([]byte, error) {
	members, obj, err := pawnMembers(raw)
	if err != nil {
		return nil, err
	}
	value, err := json.Marshal([]string{name})
	if err != nil {
		return nil, err
	}

	var edits []edit
	for _, key := range []string{"main_scripts", "msj"} {
		if s, ok := members[key]; ok {
			edits = append(edits, edit{at: s, text: value})
		}
	}
	if len(edits) == 0 {
		edits = append(edits, insertMember(members, obj, "main_scripts", value))
	}
	return applyEdits(raw, edits), nil
}

// MainScripts returns the pawn.main_scripts (or legacy msj) entries
func MainScripts(raw []byte) ([]string, error) {
	return stringArray(raw, "main_scripts", "msj")
}

func stringArray(raw []byte, keys ...string) ([]string, error) {
	members, _, err := pawnMembers(raw)
	if err != nil {
		return nil, err
	}
	plain := jsonc.ToJSON(raw)
	for _, key := range keys {
		s, ok := members[key]
		if !ok {
			continue
		}
		var out []string
		if err := json.Unmarshal(plain[s.start:s.end], &out); err != nil {
			return nil, fmt.Errorf("pawn.%s: %w", key, err)
		}
		return out, nil
	}
	return nil, nil
}

// AddLegacyPlugins appends missing names to pawn.legacy_plugins
func AddLegacyPlugins(raw []byte, names []string) ([]byte, bool, error) {
	members, obj, err := pawnMembers(raw)
	if err != nil {
		return nil, false, err
	}
	current, err := stringArray(raw, "legacy_plugins")
	if err != nil {
		return nil, false, err
	}

	have := make(map[string]bool, len(current))
	for _, c := range current {
		have[c] = true
	}
	merged := append([]string{}, current...)
	for _, n := range names {
		if !have[n] {
			merged = append(merged, n)
			have[n] = true
		}
	}
	if len(merged) == len(current) {
		return raw, false, nil
	}

	value, err := json.Marshal(merged)
	if err != nil {
		return nil, false, err
	}
	if s, ok := members["legacy_plugins"]; ok {
		return applyEdits(raw, []edit{{at: s, text: value}}), true, nil
	}
	return applyEdits(raw, []edit{insertMember(members, obj, "legacy_plugins", value)}), true, nil
}
