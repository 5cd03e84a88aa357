package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/klantle/watchdogs-sub000/pkg/crash"
	"github.com/klantle/watchdogs-sub000/pkg/models"
)

// maxWatchLines bounds the lines kept in the watch view
const maxWatchLines = 2000

// WatchCmd follows the server log full screen, annotating known problems
func (a *App) WatchCmd() error {
	model := newWatchModel(a.serverLogPath(), a.cfg.ServerType())
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

type watchModel struct {
	logPath string
	server  models.ServerType
	session *crash.Session

	offset   int64
	partial  string
	lines    []string
	findings int
	follow   bool

	viewport   viewport.Model
	width      int
	height     int
	lastUpdate time.Time
	err        error
}

func newWatchModel(logPath string, server models.ServerType) watchModel {
	return watchModel{
		logPath:  logPath,
		server:   server,
		session:  crash.NewSession(server),
		follow:   true,
		viewport: viewport.New(120, 30),
	}
}

func (m watchModel) Init() tea.Cmd {
	return readLogCmd(m.logPath, m.offset)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "f":
			m.follow = !m.follow
			if m.follow {
				m.viewport.GotoBottom()
			}
			return m, nil
		case "up", "k", "pgup", "b", "u", "ctrl+u":
			m.follow = false
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-5, 3)
		if m.follow {
			m.viewport.GotoBottom()
		}
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		if !m.viewport.AtBottom() {
			m.follow = false
		}
		return m, cmd

	case logChunkMsg:
		m.lastUpdate = time.Now()
		m.err = msg.err
		if msg.err == nil {
			m.ingest(msg)
		}
		return m, tickCmd()

	case tickMsg:
		return m, readLogCmd(m.logPath, m.offset)
	}
	return m, nil
}

// ingest appends the complete lines of a chunk and classifies them
func (m *watchModel) ingest(chunk logChunkMsg) {
	if chunk.reset {
		m.session = crash.NewSession(m.server)
		m.partial = ""
		m.lines = append(m.lines, mutedStyle.Render("-- log truncated, restarting --"))
	}
	m.offset = chunk.offset
	if len(chunk.data) == 0 && !chunk.reset {
		return
	}

	text := m.partial + string(chunk.data)
	parts := strings.Split(text, "\n")
	m.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		line = strings.TrimRight(line, "\r")
		m.lines = append(m.lines, line)
		for _, fd := range m.session.Classify(line) {
			m.findings++
			m.lines = append(m.lines, findingStyle.Render("  @ "+fd.Header))
		}
	}
	if over := len(m.lines) - maxWatchLines; over > 0 {
		m.lines = m.lines[over:]
	}

	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	findingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

func (m watchModel) View() string {
	width := m.width
	if width <= 0 {
		width = 120
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Watchdogs - %s (q quit, f follow:%t)", m.logPath, m.follow)))
	b.WriteString("\n\n")

	switch {
	case errors.Is(m.err, os.ErrNotExist):
		b.WriteString(fitLine("Waiting for the server to create its log...", width))
		b.WriteString("\n")
	case m.err != nil:
		b.WriteString(fitLine(fmt.Sprintf("Error: %v", m.err), width))
		b.WriteString("\n")
	case len(m.lines) == 0:
		b.WriteString(fitLine("(no log output yet)", width))
		b.WriteString("\n")
	default:
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	s := m.session
	footer := fmt.Sprintf("Last updated: %s | Lines: %d | Findings: %d | Runtime error: %t | Crashdetect: %d | up/down scroll",
		m.lastUpdate.Format("15:04:05"), len(m.lines), m.findings, s.RuntimeErrorSeen, s.CrashdetectSeen)
	b.WriteString(footerStyle.Render(fitLine(footer, width)))
	b.WriteString("\n")
	return b.String()
}

type tickMsg time.Time

type logChunkMsg struct {
	data   []byte
	offset int64
	reset  bool
	err    error
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func readLogCmd(path string, offset int64) tea.Cmd {
	return func() tea.Msg {
		return readLogChunk(path, offset)
	}
}

// readLogChunk reads path from offset to its end. A file shorter than
// offset was truncated or replaced and is read from the start.
func readLogChunk(path string, offset int64) logChunkMsg {
	f, err := os.Open(path)
	if err != nil {
		return logChunkMsg{offset: offset, err: err}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return logChunkMsg{offset: offset, err: err}
	}
	msg := logChunkMsg{}
	if fi.Size() < offset {
		offset = 0
		msg.reset = true
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return logChunkMsg{offset: offset, err: err}
	}
	data, err := io.ReadAll(io.LimitReader(f, fi.Size()-offset))
	if err != nil {
		return logChunkMsg{offset: offset, err: err}
	}
	msg.data = data
	msg.offset = offset + int64(len(data))
	return msg
}

func fitLine(line string, width int) string {
	if width <= 0 {
		return line
	}
	lineWidth := runewidth.StringWidth(line)
	if lineWidth == width {
		return line
	}
	if lineWidth > width {
		// Let the terminal wrap long lines to the viewport instead of truncating.
		return line
	}
	return line + strings.Repeat(" ", width-lineWidth)
}
