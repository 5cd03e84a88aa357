package crash

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klantle/watchdogs-sub000/pkg/hashutil"
	"github.com/klantle/watchdogs-sub000/pkg/serverconfig"
)

// ErrRconLiteralAbsent means server.cfg has no "rcon_password changeme" line
var ErrRconLiteralAbsent = errors.New("rcon_password changeme not found")

const rconDefault = "rcon_password changeme"

// ConfiguredPort returns the listen port set in cfgPath: sv_port of a
// server.cfg or network.port of an open.mp config.json. It is "" when the
// key is missing or not numeric.
func ConfiguredPort(cfgPath string) (string, error) {
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return "", err
	}
	if serverconfig.IsJSONPath(cfgPath) {
		port, ok, err := serverconfig.JSONPort(data)
		if err != nil || !ok {
			return "", err
		}
		return strconv.Itoa(port), nil
	}

	v, ok := serverconfig.CfgValue(data, "sv_port")
	if !ok {
		return "", nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return "", nil
	}
	return strconv.Itoa(n), nil
}

func (sc *Scanner) checkVoicePort(sess *Session, out *Outcome) {
	configured, err := ConfiguredPort(sc.ServerCfg)
	if err != nil {
		sc.logger().Debug("voice port check skipped", "path", sc.ServerCfg, "err", err)
		out.record(RemedyVoicePort, Skipped, "")
		return
	}
	if configured == sess.VoicePort {
		return
	}
	shown := configured
	if shown == "" {
		shown = "(unset)"
	}
	cfgName := filepath.Base(sc.ServerCfg)
	p := sc.Printer
	p.Headerf("SampVoice port")
	p.Highlight(fmt.Sprintf("\tin %s: %s in server logs: %s", cfgName, shown, sess.VoicePort))
	p.Printf("\tThe sampvoice port in %s does not match the one in the server log (mismatch).\n", cfgName)
	p.Printf("\t* Make sure the port in %s is set correctly.\n", cfgName)
	out.record(RemedyVoicePort, Reported, fmt.Sprintf("%s != %s", shown, sess.VoicePort))
}

func (sc *Scanner) offerRconRotation(out *Outcome) {
	p := sc.Printer
	p.Headerf("Rcon Pass Error found")
	p.Printf("\t* Error: Your password must be changed from the default password..\n")
	if !sc.Prompter.Confirm("Auto-fix? (Y/n):") {
		out.record(RemedyRconRotate, Declined, "")
		return
	}
	if _, err := os.Stat(sc.ServerCfg); err != nil {
		sc.logger().Debug("rcon rotation skipped", "path", sc.ServerCfg, "err", err)
		out.record(RemedyRconRotate, Skipped, "")
		return
	}
	sum, err := RotateRconPassword(sc.ServerCfg, sc.rng())
	if err != nil {
		if errors.Is(err, ErrRconLiteralAbsent) {
			p.Errorf("Replacement failed! server.cfg does not contain %q.", rconDefault)
		} else {
			p.Errorf("Cannot write to server.cfg: %v", err)
		}
		out.record(RemedyRconRotate, Failed, err.Error())
		return
	}
	p.Printf("done! * server.cfg - rcon_password from changeme to %08X.\n", sum)
	out.record(RemedyRconRotate, Accepted, fmt.Sprintf("%08X", sum))
}

// RotateRconPassword replaces the first "rcon_password changeme" in cfgPath
// with "rcon_password XXXXXXXX", the CRC-32 of a random decimal drawn from r.
// The result is a development convenience and not suitable as a production
// credential. The file is replaced as a whole; when the literal is absent it
// is left untouched and ErrRconLiteralAbsent is returned.
func RotateRconPassword(cfgPath string, r *rand.Rand) (uint32, error) {
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", cfgPath, err)
	}
	content := string(data)
	idx := strings.Index(content, rconDefault)
	if idx < 0 {
		return 0, ErrRconLiteralAbsent
	}

	seed := strconv.Itoa(r.IntN(10000000))
	sum := hashutil.CRC32([]byte(seed))
	rotated := content[:idx] + fmt.Sprintf("rcon_password %08X", sum) + content[idx+len(rconDefault):]

	if err := replaceFile(cfgPath, []byte(rotated)); err != nil {
		return 0, err
	}
	return sum, nil
}

// replaceFile writes data next to path and renames it over path
func replaceFile(path string, data []byte) error {
	mode := os.FileMode(0644)
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
