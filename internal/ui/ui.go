package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/tasks"
)

// PlayWindow is how far back the summary counts plays.
const PlayWindow = 7 * 24 * time.Hour

// StatsSource is the read side the dashboard renders.
type StatsSource interface {
	Summary(ctx context.Context, window string, from, to time.Time) (*models.Summary, error)
	TopTracks(ctx context.Context, window string, limit int) ([]models.TopTrackRow, error)
	TopArtists(ctx context.Context, window string, limit int) ([]models.TopArtistRow, error)
	RecentPlays(ctx context.Context, limit int) ([]models.ListeningHistoryEvent, error)
}

// SyncFunc runs the pipeline for window, reporting progress through report.
type SyncFunc func(ctx context.Context, window string, report tasks.Reporter) (*models.Run, error)

type windowStats struct {
	summary *models.Summary
	tracks  []models.TopTrackRow
	artists []models.TopArtistRow
	plays   []models.ListeningHistoryEvent
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	source       StatsSource
	sync         SyncFunc
	windows      []string
	active       int
	view         ViewKind
	limit        int
	stats        map[string]*windowStats
	loading      bool
	syncing      bool
	progressChan chan tasks.ProgressUpdate
	syncResult   chan syncComplete
	progress     tasks.ProgressUpdate
	lastRun      *models.Run
	err          error
	table        table.Model
	help         help.Model
	keys         keyMap
	width        int
	height       int
	now          func() time.Time
	loc          *time.Location
}

// NewModel creates a dashboard over source. sync may be nil to disable in-app syncing.
func NewModel(ctx context.Context, source StatsSource, sync SyncFunc, windows []string, limit int) *Model {
	if len(windows) == 0 {
		windows = shared.TimeWindows
	}
	if limit <= 0 {
		limit = 50
	}

	t := table.New(table.WithColumns(trackColumns()), table.WithFocused(true), table.WithHeight(15))
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#1DB954"))
	t.SetStyles(s)

	return &Model{
		ctx:     ctx,
		source:  source,
		sync:    sync,
		windows: windows,
		limit:   limit,
		stats:   make(map[string]*windowStats, len(windows)),
		table:   t,
		help:    help.New(),
		keys:    newKeyMap(),
		now:     time.Now,
		loc:     time.Local,
	}
}

// Window returns the active time range.
func (m *Model) Window() string {
	return m.windows[m.active]
}

// Init loads the first time range.
func (m *Model) Init() tea.Cmd {
	m.loading = true
	return m.load(m.Window())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(max(msg.Width-4, 20))
		m.table.SetHeight(max(msg.Height-12, 5))
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.next):
		return m, m.selectWindow((m.active + 1) % len(m.windows))
	case key.Matches(msg, m.keys.prev):
		return m, m.selectWindow((m.active + len(m.windows) - 1) % len(m.windows))
	case key.Matches(msg, m.keys.tracks):
		m.setView(TracksView)
		return m, nil
	case key.Matches(msg, m.keys.artists):
		m.setView(ArtistsView)
		return m, nil
	case key.Matches(msg, m.keys.plays):
		m.setView(PlaysView)
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		m.loading = true
		return m, m.load(m.Window())
	case key.Matches(msg, m.keys.sync):
		if m.sync == nil || m.syncing {
			return m, nil
		}
		return m, m.startSync()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStatsLoaded:
		data := msg.data.(statsLoaded)
		m.loading = false
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.stats[data.window] = data.stats
		if data.window == m.Window() {
			m.refreshTable()
		}
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSyncComplete:
		data := msg.data.(syncComplete)
		m.syncing = false
		m.progressChan, m.syncResult = nil, nil
		m.lastRun = data.run
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		clear(m.stats)
		m.loading = true
		return m, m.load(m.Window())
	}
	return m, nil
}

func (m *Model) selectWindow(i int) tea.Cmd {
	m.active = i
	if _, ok := m.stats[m.Window()]; ok {
		m.refreshTable()
		return nil
	}
	m.loading = true
	m.refreshTable()
	return m.load(m.Window())
}

func (m *Model) setView(v ViewKind) {
	m.view = v
	m.refreshTable()
}

// refreshTable swaps columns and rows for the active window and view.
//
// Rows are cleared before columns change so no row is rendered against a
// column set of a different width.
func (m *Model) refreshTable() {
	m.table.SetRows(nil)

	st := m.stats[m.Window()]
	switch m.view {
	case ArtistsView:
		m.table.SetColumns(artistColumns())
		if st != nil {
			m.table.SetRows(artistRows(st.artists))
		}
	case PlaysView:
		m.table.SetColumns(playColumns())
		if st != nil {
			m.table.SetRows(playRows(st.plays, m.loc))
		}
	default:
		m.table.SetColumns(trackColumns())
		if st != nil {
			m.table.SetRows(trackRows(st.tracks))
		}
	}
	m.table.SetCursor(0)
}

func (m *Model) load(window string) tea.Cmd {
	ctx, source, limit := m.ctx, m.source, m.limit
	to := m.now()
	from := to.Add(-PlayWindow)

	return func() tea.Msg {
		var (
			st  = &windowStats{}
			err error
		)
		if st.summary, err = source.Summary(ctx, window, from, to); err != nil {
			return statsLoadedMsg(window, nil, err)
		}
		if st.tracks, err = source.TopTracks(ctx, window, limit); err != nil {
			return statsLoadedMsg(window, nil, err)
		}
		if st.artists, err = source.TopArtists(ctx, window, limit); err != nil {
			return statsLoadedMsg(window, nil, err)
		}
		if st.plays, err = source.RecentPlays(ctx, limit); err != nil {
			return statsLoadedMsg(window, nil, err)
		}
		return statsLoadedMsg(window, st, nil)
	}
}

// startSync runs the pipeline on its own goroutine and streams progress through a channel.
func (m *Model) startSync() tea.Cmd {
	m.syncing = true
	m.err = nil
	m.progress = tasks.ProgressUpdate{Message: "Starting sync..."}

	ch := make(chan tasks.ProgressUpdate, 32)
	result := make(chan syncComplete, 1)
	m.progressChan, m.syncResult = ch, result
	ctx, window, sync := m.ctx, m.Window(), m.sync

	go func() {
		run, err := sync(ctx, window, func(u tasks.ProgressUpdate) {
			select {
			case ch <- u:
			case <-ctx.Done():
			}
		})
		result <- syncComplete{run, err}
		close(ch)
	}()

	return waitForProgress(ch, result)
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.progressChan == nil {
		return nil
	}
	return waitForProgress(m.progressChan, m.syncResult)
}

// waitForProgress blocks for the next update. Once the channel closes the
// pipeline result is delivered instead.
func waitForProgress(ch <-chan tasks.ProgressUpdate, result <-chan syncComplete) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			res := <-result
			return syncCompleteMsg(res.run, res.err)
		}
		return progressUpdateMsg(update)
	}
}

// View renders the dashboard.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("spotstats"))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(m.renderSummary())
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	case m.loading && m.stats[m.Window()] == nil:
		b.WriteString(styles.muted.Render("Loading..."))
		b.WriteString("\n\n")
	}

	b.WriteString(styles.header.Render(m.view.String()))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	if status := m.renderStatus(); status != "" {
		b.WriteString(status)
		b.WriteString("\n")
	}
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) renderTabs() string {
	tabs := make([]string, len(m.windows))
	for i, w := range m.windows {
		style := styles.tab
		if i == m.active {
			style = styles.activeTab
		}
		tabs[i] = style.Render(WindowLabel(w))
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)
}

func (m *Model) renderSummary() string {
	st := m.stats[m.Window()]
	if st == nil || st.summary == nil {
		return styles.muted.Render("No data loaded")
	}
	return SummaryLine(st.summary)
}

func (m *Model) renderStatus() string {
	switch {
	case m.syncing:
		msg := m.progress.Message
		if msg == "" {
			msg = m.progress.Phase.String()
		}
		return styles.warn.Render("⟳ " + msg)
	case m.lastRun != nil && m.lastRun.Status == models.RunSucceeded:
		return styles.ok.Render(fmt.Sprintf("✓ Synced %d rows in %s", m.lastRun.Result.Total(), m.lastRun.Duration().Round(time.Second)))
	case m.lastRun != nil && m.lastRun.Status == models.RunFailed:
		return styles.err.Render("✗ Sync failed")
	}
	return ""
}
