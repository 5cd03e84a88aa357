package serverconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

// DefaultPort is the port both servers listen on when none is configured
const DefaultPort = 7777

// Port reads the listen port from sv_port of a server.cfg or network.port
// of an open.mp config.json. A missing key yields DefaultPort.
func Port(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if IsJSONPath(path) {
		port, ok, err := JSONPort(data)
		if err != nil {
			return 0, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if !ok {
			return DefaultPort, nil
		}
		return port, nil
	}

	v, ok := CfgValue(data, "sv_port")
	if !ok {
		return DefaultPort, nil
	}
	port, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid sv_port %q", v)
	}
	return port, nil
}

// IsJSONPath reports whether path names an open.mp JSON config
func IsJSONPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// JSONPort returns network.port of an open.mp config; ok is false when the
// key is absent.
func JSONPort(data []byte) (port int, ok bool, err error) {
	var doc struct {
		Network struct {
			Port *int `json:"port"`
		} `json:"network"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return 0, false, err
	}
	if doc.Network.Port == nil {
		return 0, false, nil
	}
	return *doc.Network.Port, true, nil
}
