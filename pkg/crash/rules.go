// Package crash classifies server log output and drives the auto-fixes
// offered after a server run.
package crash

import (
	"strconv"
	"strings"

	"github.com/klantle/watchdogs-sub000/pkg/models"
)

// Action is an inline remediation a finding asks for
type Action int

const (
	ActionNone Action = iota
	ActionRecompile
	ActionDowngradeVoice
)

// Finding is one classified server log line
type Finding struct {
	Header   string
	Line     string
	Guidance string
	Action   Action
}

const (
	voicePortMarker = "voice server running on port"
	rconMarker      = "your password must be changed from the default password"
)

// rule is a case-insensitive substring test. A rule matches when the line
// holds any of anyOf (or anyOf is empty) and all of allOf. Nested rules are
// only evaluated when their parent matched.
type rule struct {
	anyOf    []string
	allOf    []string
	header   string
	guidance string
	action   Action
	gated    bool
	sampOnly bool
	effect   func(s *Session, line, lower string)
	within   []rule
}

const wslGuidance = `	Are you running the server inside WSL from a Windows drive?
	Move the open.mp server folder out of /mnt (your Windows directories) into
	your WSL home directory. The open.mp filesystem layer cannot read
	directories under /mnt correctly.
`

const noGamemodeGuidance = `	Make sure the name in the server configuration matches a script in
	gamemodes/ and that its .amx file exists. For example, "gamemode0 main"
	in server.cfg needs gamemodes/main.amx.
`

const gamemode0Guidance = `	The .amx named by gamemode0 in server.cfg must exist in gamemodes/.
	If only the .pwn source is there, compile it first.
`

const boundsGuidance = `	new array[3];
	main() {
	  for (new i = 0; i < 4; i++) < 4 is past the end of array[3]
	                      ^ sizeof(array)   for array[this] and array[this][]
	                      ^ sizeof(array[]) for array[][this]
	                      * use sizeof instead of a literal bound
	     array[i] = 0;
	}
`

const voiceGuidance = `	Both SampVoice and Pawn.Raknet show up in the crash backtrace.
	SampVoice 3.1 is known to crash next to Pawn.Raknet. Downgrade SampVoice
	to 3.0 or remove one of the two plugins.
	Changes between the two versions:
	https://github.com/CyberMor/sampvoice/compare/v3.0-alpha...v3.1
`

const pluginFailedGuidance = `	Reinstall a plugin that failed to load with:
		install user/repo?tag
	Example:
		install Y-Less/sscanf?newer
`

const pluginUnloadedGuidance = `	LOADED: the plugin is running and its natives are available.
	UNLOADED: the plugin was shut down and removed from memory, its natives
	are gone and its resources were released.
`

var crashdetectTriggers = []string{
	"[debug]",
	"crashdetect",
	"amx backtrace",
	"native stack trace",
	"heap",
	"native backtrace",
}

// rules is evaluated top to bottom on every line. Order matters: the runtime
// error rule must run before the gated rules so a single line can open the
// gate for itself.
var rules = []rule{
	{anyOf: []string{"unable to load filterscript"}, header: "Unable to load filterscript detected - recompile your filterscripts"},
	{anyOf: []string{"invalid index parameter (bad entry point)"}, header: "Invalid index parameter (bad entry point) detected - forgot 'main'?"},
	{
		anyOf:  []string{"run time error"},
		header: "Runtime error detected",
		effect: func(s *Session, _, _ string) { s.RuntimeErrorSeen = true },
		within: []rule{
			{anyOf: []string{"division by zero"}, header: "Division by zero error found"},
			{anyOf: []string{"invalid index"}, header: "Invalid index error found"},
		},
	},
	{
		anyOf:  []string{"the script might need to be recompiled with the latest include file."},
		header: "Script needs to be recompiled",
		action: ActionRecompile,
	},
	{
		anyOf:    []string{"terminate called after throwing an instance of 'ghc::filesystem::filesystem_error"},
		header:   "Filesystem C++ error detected",
		guidance: wslGuidance,
	},
	{anyOf: []string{voicePortMarker}, effect: recordVoicePort},
	{
		anyOf:    []string{"i couldn't load any gamemode scripts."},
		header:   "No gamemode script could be loaded",
		guidance: noGamemodeGuidance,
	},
	{anyOf: []string{"0x"}, header: "Hexadecimal address found"},
	{anyOf: []string{"address"}, header: "Memory address reference found"},
	{
		anyOf:  crashdetectTriggers,
		gated:  true,
		header: "Crashdetect: debug information found",
		effect: func(s *Session, _, _ string) { s.CrashdetectSeen++ },
		within: []rule{
			{anyOf: []string{"amx backtrace"}, header: "Crashdetect: AMX backtrace detected"},
			{anyOf: []string{"native stack trace"}, header: "Crashdetect: native stack trace detected"},
			{anyOf: []string{"heap"}, header: "Crashdetect: heap-related issue mentioned"},
			{anyOf: []string{"[debug]"}, header: "Crashdetect: debug output detected"},
			{
				anyOf:  []string{"native backtrace"},
				header: "Crashdetect: native backtrace detected",
				within: []rule{{
					allOf:    []string{"sampvoice", "pawnraknet"},
					header:   "Crashdetect: potential crash cause detected",
					guidance: voiceGuidance,
					action:   ActionDowngradeVoice,
				}},
			},
		},
	},
	{anyOf: []string{"stack"}, gated: true, header: "Stack-related issue detected"},
	{anyOf: []string{"memory"}, gated: true, header: "Memory-related issue detected"},
	{anyOf: []string{"access violation"}, gated: true, header: "Access violation detected"},
	{anyOf: []string{"buffer overrun", "buffer overflow"}, gated: true, header: "Buffer overflow detected"},
	{anyOf: []string{"null pointer"}, gated: true, header: "Null pointer exception detected"},
	{
		anyOf:    []string{"out of bounds", "out-of-bounds"},
		header:   "Out-of-bounds access detected",
		guidance: boundsGuidance,
	},
	{
		anyOf:    []string{rconMarker},
		sampOnly: true,
		effect:   func(s *Session, _, _ string) { s.RconDefaultCount++ },
	},
	{
		anyOf:    []string{"it needs a gamemode0"},
		header:   "Critical message found",
		guidance: gamemode0Guidance,
	},
	{anyOf: []string{"warning"}, header: "Warning message found"},
	{anyOf: []string{"failed"}, header: "Failure message detected"},
	{anyOf: []string{"timeout"}, header: "Timeout event detected"},
	{
		anyOf: []string{"plugin"},
		within: []rule{
			{anyOf: []string{"failed to load", "failed."}, header: "Plugin failed to load", guidance: pluginFailedGuidance},
			{anyOf: []string{"unloaded"}, header: "Plugin unloaded detected", guidance: pluginUnloadedGuidance},
		},
	},
	{
		anyOf: []string{"database", "mysql"},
		within: []rule{
			{anyOf: []string{"connection failed", "can't connect"}, header: "Database connection failure detected"},
			{anyOf: []string{"error", "failed"}, header: "Database error or failure found"},
		},
	},
	{anyOf: []string{"out of memory", "memory allocation"}, header: "Memory allocation failure detected"},
	{anyOf: []string{"malloc", "free", "realloc", "calloc"}, header: "Memory management function referenced"},
}

// Classify runs every rule against line, updates the session counters and
// returns the findings in rule order.
func (s *Session) Classify(line string) []Finding {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil
	}
	lower := strings.ToLower(line)
	return s.apply(rules, line, lower, nil)
}

func (s *Session) apply(rs []rule, line, lower string, out []Finding) []Finding {
	for _, r := range rs {
		if r.gated && !s.RuntimeErrorSeen {
			continue
		}
		if r.sampOnly && s.Server != models.ServerSAMP {
			continue
		}
		if !r.matches(lower) {
			continue
		}
		if r.effect != nil {
			r.effect(s, line, lower)
		}
		if r.header != "" {
			out = append(out, Finding{Header: r.header, Line: line, Guidance: r.guidance, Action: r.action})
		}
		out = s.apply(r.within, line, lower, out)
	}
	return out
}

func (r rule) matches(lower string) bool {
	if len(r.anyOf) > 0 && !containsAny(lower, r.anyOf) {
		return false
	}
	for _, sub := range r.allOf {
		if !strings.Contains(lower, sub) {
			return false
		}
	}
	return true
}

// recordVoicePort keeps the port number that follows the voice marker.
// Lines without digits after the marker are ignored.
func recordVoicePort(s *Session, _, lower string) {
	idx := strings.Index(lower, voicePortMarker)
	rest := strings.TrimLeft(lower[idx+len(voicePortMarker):], " \t")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	port, err := strconv.Atoi(rest[:end])
	if err != nil {
		return
	}
	s.VoiceSeen++
	s.VoicePort = strconv.Itoa(port)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
