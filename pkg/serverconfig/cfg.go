package serverconfig

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// splitLines splits data keeping each line's terminator
func splitLines(data []byte) [][]byte {
	var lines [][]byte
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			lines = append(lines, data)
			break
		}
		lines = append(lines, data[:i+1])
		data = data[i+1:]
	}
	return lines
}

func lineEnding(line []byte) string {
	switch {
	case bytes.HasSuffix(line, []byte("\r\n")):
		return "\r\n"
	case bytes.HasSuffix(line, []byte("\n")):
		return "\n"
	}
	return ""
}

// SetGamemode0 rewrites every line that mentions gamemode0 to
// "gamemode0 <name>". Other lines are copied byte for byte.
func SetGamemode0(data []byte, name string) []byte {
	var out bytes.Buffer
	out.Grow(len(data) + len(name))
	for _, line := range splitLines(data) {
		if bytes.Contains(bytes.ToLower(line), []byte("gamemode0")) {
			fmt.Fprintf(&out, "gamemode0 %s%s", name, lineEnding(line))
			continue
		}
		out.Write(line)
	}
	return out.Bytes()
}

// CfgValue returns the value of the first "key value" line in a server.cfg
func CfgValue(data []byte, key string) (string, bool) {
	for _, line := range splitLines(data) {
		fields := strings.Fields(string(line))
		if len(fields) == 0 || fields[0] != key {
			continue
		}
		return strings.Join(fields[1:], " "), true
	}
	return "", false
}

// AddCfgPlugins appends names missing from the "plugins" line, adding the
// line when there is none. It reports whether anything changed.
func AddCfgPlugins(data []byte, names []string) ([]byte, bool) {
	lines := splitLines(data)
	for i, line := range lines {
		fields := strings.Fields(string(line))
		if len(fields) == 0 || fields[0] != "plugins" {
			continue
		}
		have := make(map[string]bool, len(fields))
		for _, f := range fields[1:] {
			have[f] = true
		}
		changed := false
		for _, n := range names {
			if !have[n] {
				fields = append(fields, n)
				have[n] = true
				changed = true
			}
		}
		if !changed {
			return data, false
		}
		lines[i] = []byte(strings.Join(fields, " ") + lineEnding(line))
		return bytes.Join(lines, nil), true
	}

	if len(names) == 0 {
		return data, false
	}
	out := append([]byte{}, data...)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	out = append(out, "plugins "+strings.Join(names, " ")+"\n"...)
	return out, true
}

// RegisterPlugins adds plugin names to a server.cfg or config.json in place
func RegisterPlugins(path string, names []string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var (
		updated []byte
		changed bool
	)
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		updated, changed, err = AddLegacyPlugins(data, names)
		if err != nil {
			return false, err
		}
	} else {
		updated, changed = AddCfgPlugins(data, names)
	}
	if !changed {
		return false, nil
	}
	if err := os.WriteFile(path, updated, 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
