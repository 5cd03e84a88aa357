package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/klantle/watchdogs-sub000/pkg/models"
)

func TestWatchFollowToggle(t *testing.T) {
	t.Parallel()

	m := newWatchModel("server_log.txt", models.ServerSAMP)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	updated, ok := next.(watchModel)
	if !ok {
		t.Fatalf("expected watchModel, got %T", next)
	}
	if updated.follow {
		t.Fatalf("expected follow to be off after 'f'")
	}

	next, _ = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	if !next.(watchModel).follow {
		t.Fatalf("expected follow to be back on after second 'f'")
	}
}

func TestWatchScrollUpStopsFollowing(t *testing.T) {
	t.Parallel()

	m := newWatchModel("server_log.txt", models.ServerSAMP)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if next.(watchModel).follow {
		t.Fatalf("expected follow to be off after scrolling up")
	}
}

func TestWatchQuitKeys(t *testing.T) {
	t.Parallel()

	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
	} {
		_, cmd := newWatchModel("server_log.txt", models.ServerSAMP).Update(key)
		if cmd == nil {
			t.Fatalf("expected a command for %q", key.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("expected quit for %q", key.String())
		}
	}
}

func TestWatchClassifiesCompleteLines(t *testing.T) {
	t.Parallel()

	m := newWatchModel("server_log.txt", models.ServerSAMP)
	chunk := logChunkMsg{
		data:   []byte("[12:00:01] [debug] Run time error 4: \"Array index out of bounds\"\r\n[12:00:01] [debug] AMX backtrace:\npartial li"),
		offset: 120,
	}
	next, cmd := m.Update(chunk)
	require.NotNil(t, cmd)
	updated := next.(watchModel)

	require.Equal(t, int64(120), updated.offset)
	require.Equal(t, "partial li", updated.partial)
	require.True(t, updated.session.RuntimeErrorSeen)
	require.Positive(t, updated.session.CrashdetectSeen)
	require.Positive(t, updated.findings)
	require.Equal(t, `[12:00:01] [debug] Run time error 4: "Array index out of bounds"`, updated.lines[0])

	var headers []string
	for _, l := range updated.lines {
		if strings.Contains(l, "@ ") {
			headers = append(headers, l)
		}
	}
	require.NotEmpty(t, headers)

	// the rest of the partial line arrives with the next chunk
	next, _ = updated.Update(logChunkMsg{data: []byte("ne\n"), offset: 123})
	updated = next.(watchModel)
	require.Equal(t, "", updated.partial)
	require.Contains(t, updated.lines, "partial line")
}

func TestWatchResetStartsNewSession(t *testing.T) {
	t.Parallel()

	m := newWatchModel("server_log.txt", models.ServerSAMP)
	next, _ := m.Update(logChunkMsg{data: []byte("Run time error 1\n"), offset: 17})
	require.True(t, next.(watchModel).session.RuntimeErrorSeen)

	next, _ = next.(watchModel).Update(logChunkMsg{data: []byte("ok\n"), offset: 3, reset: true})
	updated := next.(watchModel)
	require.False(t, updated.session.RuntimeErrorSeen)
	require.Equal(t, int64(3), updated.offset)
}

func TestReadLogChunk(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "server_log.txt")
	msg := readLogChunk(path, 0)
	require.ErrorIs(t, msg.err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0644))
	msg = readLogChunk(path, 0)
	require.NoError(t, msg.err)
	require.Equal(t, "one\ntwo\n", string(msg.data))
	require.Equal(t, int64(8), msg.offset)

	msg = readLogChunk(path, 4)
	require.Equal(t, "two\n", string(msg.data))
	require.False(t, msg.reset)

	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0644))
	msg = readLogChunk(path, 8)
	require.True(t, msg.reset)
	require.Equal(t, "x\n", string(msg.data))
	require.Equal(t, int64(2), msg.offset)
}

func TestFitLinePadsToWidth(t *testing.T) {
	t.Parallel()

	require.Equal(t, "ab  ", fitLine("ab", 4))
	require.Equal(t, "abcdef", fitLine("abcdef", 4))
	require.Equal(t, "ab", fitLine("ab", 0))
}
