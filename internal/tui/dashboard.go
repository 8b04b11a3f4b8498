package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/potwatch/potwatch/internal/models"
)

type balancesMsg struct {
	entries []models.BalanceEntry
}

type fetchErrMsg struct {
	err error
}

// dashboardKeyMap holds key bindings for the dashboard actions.
type dashboardKeyMap struct {
	refresh key.Binding
	quit    key.Binding
}

// newDashboardKeyMap creates a new dashboardKeyMap with default bindings.
func newDashboardKeyMap() *dashboardKeyMap {
	return &dashboardKeyMap{
		refresh: key.NewBinding(
			key.WithKeys("r", "R"),
			key.WithHelp("r", "Refresh"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "Quit"),
		),
	}
}

// DashboardModel shows the pot balances reported by a potwatch server
type DashboardModel struct {
	client  *Client
	list    list.Model
	keys    *dashboardKeyMap
	loading bool
	err     error
}

// NewDashboardModel creates the dashboard for the given client
func NewDashboardModel(client *Client) DashboardModel {
	keys := newDashboardKeyMap()

	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = titleStyle.Render("potwatch balances")
	l.SetShowFilter(true)
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{
			keys.refresh,
			keys.quit,
		}
	}

	return DashboardModel{client: client, list: l, keys: keys, loading: true}
}

// Init starts the first balance fetch
func (m DashboardModel) Init() tea.Cmd {
	return m.fetchBalances()
}

// fetchBalances loads entries in the background
func (m DashboardModel) fetchBalances() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		entries, err := client.Balances(context.Background())
		if err != nil {
			return fetchErrMsg{err: err}
		}
		return balancesMsg{entries: entries}
	}
}

// Update handles dashboard messages
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case balancesMsg:
		m.loading = false
		m.err = nil
		cmd := m.list.SetItems(balanceItems(msg.entries))
		statusCmd := m.list.NewStatusMessage(statusMessageStyle("Updated", time.Now().Format("15:04:05")))
		return m, tea.Batch(cmd, statusCmd)

	case fetchErrMsg:
		m.loading = false
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.refresh):
			m.loading = true
			m.err = nil
			return m, m.fetchBalances()
		}

	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the dashboard
func (m DashboardModel) View() string {
	if m.err != nil {
		return docStyle.Render(errorStyle.Render("Error: "+m.err.Error()) + "\n\nPress r to retry, q to quit")
	}
	if m.loading && len(m.list.Items()) == 0 {
		return docStyle.Render("Loading balances...")
	}
	return docStyle.Render(m.list.View())
}

// balanceItems converts entries into list rows
func balanceItems(entries []models.BalanceEntry) []list.Item {
	items := make([]list.Item, len(entries))
	for i, entry := range entries {
		items[i] = BalanceItem{Entry: entry}
	}
	return items
}
