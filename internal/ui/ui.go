package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/desertthunder/spotsync/internal/formatter"
	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RunningView ViewState = iota
	ResultView
)

const (
	progressBuffer = 64
	recentResults  = 5
)

// Runner executes one batch and reports through progress. It must not close progress.
type Runner func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.Summary, error)

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	runner Runner
	title  string
	view   ViewState
	width  int
	height int

	progressChan chan tasks.ProgressUpdate
	done         chan batchResult

	status     string
	step       int
	total      int
	active     map[string]string
	activeIDs  []string
	recent     []string
	counts     map[models.Outcome]int
	cancelling bool
	aborted    bool

	summary  *tasks.Summary
	err      error
	failures list.Model

	spinner spinner.Model
	bar     progress.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model that runs the batch when started.
func NewModel(ctx context.Context, title string, runner Runner) *Model {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		runner:  runner,
		title:   title,
		view:    RunningView,
		status:  "Starting...",
		active:  map[string]string{},
		counts:  map[models.Outcome]int{},
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Run starts the program and blocks until the user quits.
//
// The returned summary and error are the engine's; quitting before the batch ends reports
// [context.Canceled].
func Run(ctx context.Context, title string, runner Runner) (*tasks.Summary, error) {
	m := NewModel(ctx, title, runner)
	final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	m.cancel()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return nil, fmt.Errorf("terminal UI failed: %w", err)
	}

	fm, ok := final.(*Model)
	if !ok || fm.aborted || fm.view != ResultView {
		return nil, context.Canceled
	}
	return fm.summary, fm.err
}

// Init starts the spinner and the batch.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startBatch())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-16, 10), 60)
		if m.view == ResultView {
			m.failures.SetSize(msg.Width-4, max(msg.Height-12, 5))
		}
		return m, nil

	case spinner.TickMsg:
		if m.view != RunningView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case RunningView:
			return m.handleRunningKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.apply(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgBatchComplete:
			r := msg.data.(batchResult)
			m.finish(r.summary, r.err)
			return m, nil
		}
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case RunningView:
		return m.renderRunning()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleRunningKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keys.cancel) && msg.String() != "q" {
		return m, nil
	}
	if m.cancelling {
		m.aborted = true
		return m, tea.Quit
	}
	m.cancelling = true
	m.status = "Cancelling, waiting for in-flight tracks..."
	m.cancel()
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.failures, cmd = m.failures.Update(msg)
	return m, cmd
}

func (m *Model) startBatch() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, progressBuffer)
	m.done = make(chan batchResult, 1)

	go func(progress chan tasks.ProgressUpdate, done chan<- batchResult) {
		summary, err := m.runner(m.ctx, progress)
		done <- batchResult{summary: summary, err: err}
		close(progress)
	}(m.progressChan, m.done)

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			r := <-done
			return batchCompleteMsg(r.summary, r.err)
		}
		return progressUpdateMsg(update)
	}
}

// apply folds one engine update into the running view.
func (m *Model) apply(u tasks.ProgressUpdate) {
	if r, ok := u.Data.(models.JobResult); ok {
		m.step, m.total = u.Step, u.Total
		m.counts[r.Outcome]++
		m.untrack(u.TrackID)
		m.recent = append(m.recent, u.Message)
		if len(m.recent) > recentResults {
			m.recent = m.recent[len(m.recent)-recentResults:]
		}
		return
	}

	switch {
	case u.Phase == tasks.Filtering:
		m.total = u.Total
		m.status = u.Message
	case u.TrackID == "" || u.Phase == tasks.Waiting:
		if !m.cancelling {
			m.status = u.Message
		}
	case u.Phase.Terminal():
		m.untrack(u.TrackID)
	default:
		if _, seen := m.active[u.TrackID]; !seen {
			m.activeIDs = append(m.activeIDs, u.TrackID)
		}
		m.active[u.TrackID] = u.Message
	}
}

func (m *Model) untrack(id string) {
	if _, ok := m.active[id]; !ok {
		return
	}
	delete(m.active, id)
	for i, a := range m.activeIDs {
		if a == id {
			m.activeIDs = append(m.activeIDs[:i], m.activeIDs[i+1:]...)
			break
		}
	}
}

func (m *Model) finish(summary *tasks.Summary, err error) {
	m.summary = summary
	m.err = err
	m.view = ResultView
	m.progressChan = nil

	if summary == nil {
		return
	}
	m.failures = list.New(failureItems(summary), list.NewDefaultDelegate(), 0, 0)
	m.failures.Title = "Not downloaded"
	m.failures.SetShowHelp(false)
	m.failures.SetSize(max(m.width-4, 20), max(m.height-12, 5))
}

func (m *Model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.step) / float64(m.total)
}

func (m *Model) renderCounts() string {
	return strings.Join([]string{
		styles.ok.Render(fmt.Sprintf("✓ %d", m.counts[models.Completed])),
		styles.muted.Render(fmt.Sprintf("= %d", m.counts[models.SkippedAlreadyPresent])),
		styles.warn.Render(fmt.Sprintf("- %d", m.counts[models.SkippedUnavailable])),
		styles.err.Render(fmt.Sprintf("✗ %d", m.counts[models.Failed])),
	}, "  ")
}

func (m *Model) renderRunning() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(m.title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), m.status)
	fmt.Fprintf(&b, "%s %d/%d\n", m.bar.ViewAs(m.percent()), m.step, m.total)
	fmt.Fprintf(&b, "%s\n", m.renderCounts())

	if len(m.activeIDs) > 0 {
		b.WriteString("\n")
		for _, id := range m.activeIDs {
			fmt.Fprintf(&b, "  • %s\n", m.active[id])
		}
	}

	if len(m.recent) > 0 {
		b.WriteString("\n")
		for _, line := range m.recent {
			fmt.Fprintf(&b, "  %s\n", styles.muted.Render(line))
		}
	}

	helpKeys := []key.Binding{m.keys.cancel}
	if m.cancelling {
		helpKeys = []key.Binding{key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit now"))}
	}
	fmt.Fprintf(&b, "\n%s", m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.quit})

	if m.summary == nil {
		msg := "Batch failed"
		if m.err != nil {
			msg = fmt.Sprintf("Batch failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	s := m.summary
	var title string
	switch {
	case m.err != nil:
		title = styles.err.Render(fmt.Sprintf("✗ Batch finished: %v", m.err))
	case s.Failed > 0 || s.SkippedUnavailable > 0:
		title = styles.warn.Render("! Batch finished with skipped tracks")
	default:
		title = styles.ok.Render("✓ Batch complete")
	}

	info := fmt.Sprintf("\nDestination: %s\n%s\nWritten %s in %s\n",
		s.Destination,
		s.String(),
		humanize.Bytes(uint64(max(s.BytesWritten, 0))),
		formatter.FormatElapsed(s.Elapsed),
	)

	var extra strings.Builder
	for _, w := range s.Warnings {
		fmt.Fprintf(&extra, "\n%s", styles.warn.Render("! "+w))
	}
	if len(s.Failures)+len(s.Unavailable) > 0 {
		fmt.Fprintf(&extra, "\n\n%s", m.failures.View())
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, extra.String(), helpView)
}
