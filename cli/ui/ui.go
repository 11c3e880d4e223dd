// Package ui provides interactive terminal components for the orderflow CLI.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/orderflow-io/orderflow/cli/styles"
	"github.com/orderflow-io/orderflow/fulfillment"
)

// SimpleBanner returns the one-line CLI banner.
func SimpleBanner() string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.Primary).
		Render("orderflow") +
		" " +
		styles.Muted.Render("- event-sourced order fulfillment")
}

// StatusBadge returns a styled badge for a saga or order state.
func StatusBadge(status string) string {
	switch status {
	case string(fulfillment.StateCompleted):
		return lipgloss.NewStyle().
			Background(styles.Success).
			Foreground(lipgloss.Color("#000000")).
			Padding(0, 1).
			Render(status)
	case string(fulfillment.StateFailed):
		return lipgloss.NewStyle().
			Background(styles.Error).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1).
			Render(status)
	case string(fulfillment.StateCompensating):
		return lipgloss.NewStyle().
			Background(styles.Warning).
			Foreground(lipgloss.Color("#000000")).
			Padding(0, 1).
			Render(status)
	default:
		return lipgloss.NewStyle().
			Background(styles.Surface).
			Foreground(styles.Text).
			Padding(0, 1).
			Render(status)
	}
}

const watchInterval = 2 * time.Second

// SagaFetcher loads the sagas shown by the watch UI.
type SagaFetcher func(ctx context.Context) ([]*fulfillment.Saga, error)

// sagasMsg carries a refresh result into the model.
type sagasMsg struct {
	sagas []*fulfillment.Saga
	err   error
}

type tickMsg struct{}

// SagaWatchModel is an auto-refreshing saga table.
type SagaWatchModel struct {
	fetch    SagaFetcher
	table    table.Model
	spinner  spinner.Model
	loaded   bool
	err      error
	quitting bool
}

// NewSagaWatch creates the watch UI over the given fetcher.
func NewSagaWatch(fetch SagaFetcher) SagaWatchModel {
	columns := []table.Column{
		{Title: "SAGA", Width: 36},
		{Title: "ORDER", Width: 36},
		{Title: "STATE", Width: 20},
		{Title: "RETRIES", Width: 7},
		{Title: "UPDATED", Width: 19},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	tableStyles := table.DefaultStyles()
	tableStyles.Header = styles.TableHeader
	tableStyles.Selected = styles.TableSelected
	t.SetStyles(tableStyles)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return SagaWatchModel{
		fetch:   fetch,
		table:   t,
		spinner: s,
	}
}

func (m SagaWatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh())
}

func (m SagaWatchModel) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), watchInterval)
		defer cancel()

		sagas, err := m.fetch(ctx)
		return sagasMsg{sagas: sagas, err: err}
	}
}

func scheduleTick() tea.Cmd {
	return tea.Tick(watchInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m SagaWatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}

	case sagasMsg:
		m.loaded = true
		m.err = msg.err
		if msg.err == nil {
			m.table.SetRows(sagaRows(msg.sagas))
		}
		return m, scheduleTick()

	case tickMsg:
		return m, m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m SagaWatchModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.loaded {
		return m.spinner.View() + " " + styles.Muted.Render("Loading sagas...") + "\n"
	}

	var sb strings.Builder
	sb.WriteString(styles.Title.Render("Fulfillment Sagas"))
	sb.WriteString("\n")

	if m.err != nil {
		sb.WriteString(styles.FormatError(m.err.Error()))
		sb.WriteString("\n")
	}

	sb.WriteString(m.table.View())
	sb.WriteString("\n")
	sb.WriteString(styles.Muted.Render("r refresh  q quit"))
	sb.WriteString("\n")
	return sb.String()
}

func sagaRows(sagas []*fulfillment.Saga) []table.Row {
	rows := make([]table.Row, 0, len(sagas))
	for _, saga := range sagas {
		rows = append(rows, table.Row{
			saga.ID,
			saga.OrderID,
			string(saga.State),
			fmt.Sprintf("%d", saga.RetryCount),
			saga.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return rows
}

// RunSagaWatch starts the watch UI and blocks until it exits.
func RunSagaWatch(fetch SagaFetcher) error {
	_, err := tea.NewProgram(NewSagaWatch(fetch)).Run()
	return err
}

// SpinnerDoneMsg signals that a spinner-wrapped operation finished.
type SpinnerDoneMsg struct {
	Result string
	Err    error
}

// SpinnerModel shows a spinner with a message until SpinnerDoneMsg arrives.
type SpinnerModel struct {
	spinner  spinner.Model
	message  string
	quitting bool
	done     bool
	result   string
	err      error
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(message string) SpinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return SpinnerModel{
		spinner: s,
		message: message,
	}
}

func (m SpinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m SpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case SpinnerDoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m SpinnerModel) View() string {
	if m.done {
		if m.err != nil {
			return styles.FormatError(m.result) + "\n"
		}
		return styles.FormatSuccess(m.result) + "\n"
	}
	if m.quitting {
		return styles.FormatWarning("Cancelled") + "\n"
	}
	return m.spinner.View() + " " + styles.Normal.Render(m.message) + "\n"
}
