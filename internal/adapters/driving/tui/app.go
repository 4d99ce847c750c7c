package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui/views/page"
	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui/views/search"
)

// StatusInterval is how often the pipeline status is refreshed.
const StatusInterval = 5 * time.Second

// App is the TUI application following the Elm architecture.
type App struct {
	ports *Ports
	ctx   context.Context

	searchView *search.View
	pageView   *page.View

	currentView messages.ViewType
	err         error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a TUI application over ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	return &App{
		ports:       ports,
		ctx:         context.Background(),
		searchView:  search.NewView(s, km, ports.Search),
		pageView:    page.NewView(s, km),
		currentView: messages.ViewSearch,
	}, nil
}

// WithContext sets the context for service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("pagesift"),
		a.searchView.Init(),
		a.loadStatus(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

	case messages.StatusTick:
		return a, a.loadStatus()

	case messages.StatusLoaded:
		if msg.Err != nil {
			a.err = msg.Err
		}
		a.searchView, _ = a.searchView.Update(msg)
		a.pageView, _ = a.pageView.Update(msg)
		return a, a.scheduleStatus()

	case messages.PageOpened:
		a.pageView.SetResult(msg.Result)
		a.currentView = messages.ViewPage
		return a, nil

	case messages.ViewChanged:
		a.currentView = msg.View
		return a, nil

	case messages.ErrorOccurred:
		a.err = msg.Err
	}

	switch a.currentView {
	case messages.ViewPage:
		a.pageView, cmd = a.pageView.Update(msg)
	default:
		a.searchView, cmd = a.searchView.Update(msg)
	}
	return a, cmd
}

// loadStatus fetches the pipeline status when a control port is set.
func (a *App) loadStatus() tea.Cmd {
	if a.ports.Control == nil {
		return nil
	}
	ctx, ctl := a.ctx, a.ports.Control
	return func() tea.Msg {
		st, err := ctl.Status(ctx)
		return messages.StatusLoaded{Status: st, Err: err}
	}
}

func (a *App) scheduleStatus() tea.Cmd {
	return tea.Tick(StatusInterval, func(time.Time) tea.Msg { return messages.StatusTick{} })
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}
	if a.currentView == messages.ViewPage {
		return a.pageView.View()
	}
	return a.searchView.View()
}

// Run starts the TUI in the alternate screen and blocks until it exits.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the active view.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// SearchView returns the search view.
func (a *App) SearchView() *search.View {
	return a.searchView
}

// PageView returns the page view.
func (a *App) PageView() *page.View {
	return a.pageView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has received its dimensions.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sizes every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.searchView.SetDimensions(width, height)
	a.pageView.SetDimensions(width, height)
}
