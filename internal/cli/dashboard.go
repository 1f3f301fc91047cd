package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/agentboard/internal/observability"
	"github.com/valter-silva-au/agentboard/pkg/models"
)

// Dashboard panel indices.
const (
	panelBoards = iota
	panelThroughput
	panelEvents
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	boardCounts map[string]map[models.TaskStatus]int
	throughput  *throughputSnapshot
	recent      []eventSnapshot

	// State.
	loading bool
	err     error
}

type throughputSnapshot struct {
	created   int
	claimed   int
	completed int
	failed    int
	archived  int
	events    int
}

type eventSnapshot struct {
	taskID    string
	newStatus string
	time      string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	boardCounts map[string]map[models.TaskStatus]int
	throughput  *throughputSnapshot
	recent      []eventSnapshot
	err         error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	statusWorkingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusCompletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusBlockedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusReviewStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	statusUnclaimedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusArchivedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusFailedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelBoards,
		loading:     true,
		boardCounts: make(map[string]map[models.TaskStatus]int),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadDashboardData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadDashboardData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.boardCounts = msg.boardCounts
		m.throughput = msg.throughput
		m.recent = msg.recent
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" agentboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	boardsPanel := m.renderBoardsPanel()
	throughputPanel := m.renderThroughputPanel()
	eventsPanel := m.renderEventsPanel()

	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		colWidth := availableWidth / 3
		boardsPanel = m.applyPanelStyle(panelBoards, boardsPanel, colWidth-4)
		throughputPanel = m.applyPanelStyle(panelThroughput, throughputPanel, colWidth-4)
		eventsPanel = m.applyPanelStyle(panelEvents, eventsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, boardsPanel, throughputPanel, eventsPanel)
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		boardsPanel = m.applyPanelStyle(panelBoards, boardsPanel, panelWidth)
		throughputPanel = m.applyPanelStyle(panelThroughput, throughputPanel, panelWidth)
		eventsPanel = m.applyPanelStyle(panelEvents, eventsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, boardsPanel, throughputPanel, eventsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderBoardsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Boards"))
	b.WriteString("\n")

	if len(m.boardCounts) == 0 {
		b.WriteString("  No tasks found.")
		return b.String()
	}

	total := 0
	for _, name := range []string{"backlog", "working", "archive"} {
		counts, ok := m.boardCounts[name]
		if !ok {
			continue
		}
		boardTotal := 0
		for _, c := range counts {
			boardTotal += c
		}
		b.WriteString(fmt.Sprintf("  %s (%d)\n", name, boardTotal))
		for _, status := range models.AllStatuses() {
			count := counts[status]
			if count == 0 {
				continue
			}
			label := fmt.Sprintf("    %-26s %d", status, count)
			b.WriteString(styleForStatus(status).Render(label))
			b.WriteString("\n")
		}
		total += boardTotal
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d", total))

	return b.String()
}

func (m dashboardModel) renderThroughputPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Throughput (7d)"))
	b.WriteString("\n")

	if m.throughput == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	ts := m.throughput
	lines := []struct {
		label string
		value int
	}{
		{"Events", ts.events},
		{"Created", ts.created},
		{"Claimed", ts.claimed},
		{"Completed", ts.completed},
		{"Failed", ts.failed},
		{"Archived", ts.archived},
	}
	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", l.label, l.value))
	}

	return b.String()
}

func (m dashboardModel) renderEventsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Recent transitions"))
	b.WriteString("\n")

	if len(m.recent) == 0 {
		b.WriteString("  No recent activity.")
		return b.String()
	}

	for _, e := range m.recent {
		status := styleForStatus(models.TaskStatus(e.newStatus)).Render(e.newStatus)
		b.WriteString(fmt.Sprintf("  %s  %s -> %s\n", e.time, e.taskID, status))
	}

	return b.String()
}

func styleForStatus(status models.TaskStatus) lipgloss.Style {
	switch status {
	case models.StatusWorking, models.StatusClaimed:
		return statusWorkingStyle
	case models.StatusCompleted:
		return statusCompletedStyle
	case models.StatusBlocked:
		return statusBlockedStyle
	case models.StatusPendingReview:
		return statusReviewStyle
	case models.StatusUnclaimed:
		return statusUnclaimedStyle
	case models.StatusArchived:
		return statusArchivedStyle
	case models.StatusFailed:
		return statusFailedStyle
	default:
		return lipgloss.NewStyle()
	}
}

// maxRecentEvents bounds the events panel.
const maxRecentEvents = 10

func loadDashboardData() tea.Msg {
	result := dataLoadedMsg{
		boardCounts: make(map[string]map[models.TaskStatus]int),
	}

	if Coord != nil {
		snaps, err := Coord.Boards()
		if err != nil {
			result.err = fmt.Errorf("loading boards: %w", err)
			return result
		}
		for name, board := range snaps {
			result.boardCounts[name] = board.CountByStatus()
		}
	}

	if MetricsCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.throughput = &throughputSnapshot{
			created:   metrics.TasksCreated,
			claimed:   metrics.TasksClaimed,
			completed: metrics.TasksCompleted,
			failed:    metrics.TasksFailed,
			archived:  metrics.TasksArchived,
			events:    metrics.EventCount,
		}
	}

	if EventLog != nil {
		events, err := EventLog.Read(observability.EventFilter{})
		if err != nil {
			result.err = fmt.Errorf("loading events: %w", err)
			return result
		}
		start := 0
		if len(events) > maxRecentEvents {
			start = len(events) - maxRecentEvents
		}
		for _, e := range events[start:] {
			result.recent = append(result.recent, eventSnapshot{
				taskID:    e.TaskID,
				newStatus: string(e.NewStatus),
				time:      e.Time.Format("15:04:05"),
			})
		}
	}

	return result
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for board state and throughput",
	Long: `Launch an interactive terminal dashboard showing per-board task
counts, seven-day throughput, and the most recent transitions.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coord == nil {
			return fmt.Errorf("coordinator not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
