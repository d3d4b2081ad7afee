package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/nomdev/corbo/internal/models"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// syncFunc fetches the history of one session.
type syncFunc func(ctx context.Context, session models.Session) error

// syncedMsg reports that the session at index finished.
type syncedMsg struct {
	index int
	err   error
}

// progressModel is the bubbletea model for a history sync.
type progressModel struct {
	ctx      context.Context
	sessions []models.Session
	fetch    syncFunc
	next     int
	failed   []string
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
}

func newProgressModel(ctx context.Context, sessions []models.Session, fetch syncFunc) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		ctx:      ctx,
		sessions: sessions,
		fetch:    fetch,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init starts fetching the first session.
func (m progressModel) Init() tea.Cmd {
	if len(m.sessions) == 0 {
		return tea.Quit
	}
	return tea.Batch(m.syncNext(), m.progress.Init())
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case syncedMsg:
		if msg.err != nil {
			m.failed = append(m.failed, fmt.Sprintf("%s: %v", m.sessions[msg.index].DisplayTitle(), msg.err))
		}
		m.next = msg.index + 1
		if m.next >= len(m.sessions) {
			m.done = true
			return m, tea.Quit
		}
		return m, m.syncNext()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	var pct float64
	if len(m.sessions) > 0 {
		pct = float64(m.next) / float64(len(m.sessions))
	}

	current := m.sessions[m.next].DisplayTitle()
	status := m.theme.statusStyle().Render("[syncing]")
	counts := fmt.Sprintf("%d/%d sessions", m.next, len(m.sessions))
	hint := m.theme.hintStyle().Render(current)

	return fmt.Sprintf("%s %s %s\n%s\n", status, m.progress.ViewAs(pct), counts, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render(
			fmt.Sprintf("\nStopped after %d of %d sessions.\n", m.next, len(m.sessions)))
	}

	var b strings.Builder
	b.WriteString(m.theme.completedStyle().Render("✓ Synced"))
	fmt.Fprintf(&b, " %d sessions\n", len(m.sessions)-len(m.failed))
	if len(m.failed) > 0 {
		b.WriteString(m.theme.errorStyle().Render(fmt.Sprintf("\nFailed (%d):\n", len(m.failed))))
		for _, f := range m.failed {
			fmt.Fprintf(&b, "  • %s\n", f)
		}
	}
	return b.String()
}

// syncNext fetches the next session in a command so Update never blocks.
func (m progressModel) syncNext() tea.Cmd {
	i := m.next
	return func() tea.Msg {
		return syncedMsg{index: i, err: m.fetch(m.ctx, m.sessions[i])}
	}
}

// runSyncProgress runs the interactive progress UI and returns the number
// of sessions that failed.
func runSyncProgress(ctx context.Context, sessions []models.Session, fetch syncFunc) (int, error) {
	p := tea.NewProgram(newProgressModel(ctx, sessions, fetch), tea.WithContext(ctx))

	finalModel, err := p.Run()
	if err != nil {
		return 0, fmt.Errorf("progress UI error: %w", err)
	}
	m, ok := finalModel.(progressModel)
	if !ok {
		return 0, nil
	}
	return len(m.failed), nil
}
