package ui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/desertthunder/cosmic/internal/formatter"
	"github.com/desertthunder/cosmic/internal/galaxy"
	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/render/scene"
	"github.com/desertthunder/cosmic/internal/shared"
	"github.com/desertthunder/cosmic/internal/tasks"
	"github.com/desertthunder/cosmic/internal/viz"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	GalaxyView ViewState = iota
	ListView
)

const (
	frameInterval = time.Second / 30
	// maxFrameDelta caps dt after the program was suspended.
	maxFrameDelta = 0.25
	panStep       = 4 * CellWidth
	statusLines   = 2
)

// Options configures a [Model].
type Options struct {
	Galaxy shared.GalaxyConfig
	// Sync feeds the galaxy. Nil shows Artists without polling.
	Sync        *tasks.GroupSync
	Code        string
	Artists     []models.ArtistRecord
	SnapshotDir string
	Open        func(url string) error
	Now         func() time.Time
	Rand        *rand.Rand
	Logger      *log.Logger
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	logger *log.Logger

	view    ViewState
	width   int
	height  int
	stage   *scene.Stage
	canvas  *Canvas
	session *viz.Session
	origin  r2.Vec
	last    time.Time

	artists []models.ArtistRecord
	members int
	status  tasks.SyncUpdate
	updates chan tasks.SyncUpdate
	syncErr chan error

	cursor  r2.Vec
	focusID string
	flash   string
	err     error

	list list.Model
	help help.Model
	keys keyMap
}

// NewModel creates the galaxy viewer. The visualization starts on the first window size message.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Open == nil {
		opts.Open = shared.OpenBrowser
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SnapshotDir == "" {
		opts.SnapshotDir = "."
	}
	ctx, cancel := context.WithCancel(ctx)

	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Artists"

	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		opts:    opts,
		logger:  opts.Logger.WithPrefix("ui"),
		view:    GalaxyView,
		stage:   scene.New(0, 0),
		canvas:  NewCanvas(0, 0),
		artists: opts.Artists,
		list:    l,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the frame clock and the polling loop.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.startSync())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width, max(msg.Height-2, 1))
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if m.view == ListView {
			return m.handleListKeys(msg)
		}
		return m.handleGalaxyKeys(msg)

	case tea.MouseMsg:
		if m.view == GalaxyView {
			return m.handleMouse(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgFrame:
			m.advance(msg.data.(time.Time))
			return m, m.tick()

		case MsgSyncUpdate:
			m.applyUpdate(msg.data.(tasks.SyncUpdate))
			return m, m.waitForUpdate()

		case MsgSyncStopped:
			m.updates = nil
			if err, _ := msg.data.(error); err != nil {
				m.err = err
				m.logger.Error("polling stopped", "error", err)
			}
			return m, nil

		case MsgSnapshotSaved:
			data := msg.data.(struct {
				path string
				err  error
			})
			if data.err != nil {
				m.flash = styles.err.Render(fmt.Sprintf("Snapshot failed: %v", data.err))
				return m, nil
			}
			m.flash = styles.ok.Render("Saved " + data.path)
			return m, nil

		case MsgOpened:
			data := msg.data.(struct {
				url string
				err error
			})
			if data.err != nil {
				m.flash = styles.err.Render(fmt.Sprintf("Could not open %s: %v", data.url, data.err))
			}
			return m, nil
		}
	}

	if m.view == ListView {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the current view.
func (m *Model) View() string {
	if m.session == nil {
		if m.err != nil {
			return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
		}
		return "Loading galaxy..."
	}

	if m.view == ListView {
		helpView := m.help.ShortHelpView([]key.Binding{m.keys.open, m.keys.back, m.keys.quit})
		return fmt.Sprintf("%s\n\n%s", m.list.View(), helpView)
	}

	m.canvas.Draw(m.stage)
	return strings.Join([]string{m.canvas.Render(), m.renderStatus(), m.renderInfo(), m.help.View(m.keys)}, "\n")
}

// Close stops polling and disposes the visualization.
func (m *Model) Close() {
	m.cancel()
	if m.session != nil {
		m.session.Dispose()
	}
}

// Session returns the running visualization, nil before the first window size message.
func (m *Model) Session() *viz.Session { return m.session }

func (m *Model) footerLines() int {
	if m.help.ShowAll {
		lines := 0
		for _, col := range m.keys.FullHelp() {
			lines = max(lines, len(col))
		}
		return statusLines + lines
	}
	return statusLines + 1
}

// layout sizes the canvas to the window and creates the session on first use. Later calls move
// the layout center to the middle of the new canvas.
func (m *Model) layout() {
	cols, rows := m.width, max(m.height-m.footerLines(), 1)
	m.canvas.Resize(cols, rows)
	w, h := m.canvas.Bounds()
	m.stage.Resize(w, h)

	if m.session != nil {
		m.origin = r2.Vec{X: w / 2, Y: h / 2}
		if err := m.session.Resize(w, h); err != nil {
			m.logger.Debug("resize after dispose", "error", err)
		}
		return
	}
	session, err := viz.Initialize(m.stage, m.artists, viz.Options{Galaxy: m.opts.Galaxy, Rand: m.opts.Rand, Logger: m.opts.Logger})
	if err != nil {
		m.err = err
		m.logger.Error("could not start visualization", "error", err)
		return
	}
	m.session = session
	m.origin = r2.Vec{X: w / 2, Y: h / 2}
	m.cursor = m.origin
}

func (m *Model) screenCenter() r2.Vec {
	w, h := m.canvas.Bounds()
	return r2.Vec{X: w / 2, Y: h / 2}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m *Model) advance(now time.Time) {
	dt := frameInterval.Seconds()
	if !m.last.IsZero() {
		if d := now.Sub(m.last).Seconds(); d > 0 && d < maxFrameDelta {
			dt = d
		}
	}
	m.last = now

	if m.session == nil {
		return
	}
	if err := m.session.Advance(dt); err != nil {
		m.logger.Debug("frame skipped", "error", err)
		return
	}
	if n, ok := m.focused(); ok {
		m.cursor = m.session.Camera().ToScreen(n.Pos)
	}
}

func (m *Model) startSync() tea.Cmd {
	if m.opts.Sync == nil {
		return nil
	}
	updates := make(chan tasks.SyncUpdate, 16)
	errc := make(chan error, 1)
	m.updates, m.syncErr = updates, errc

	go func() {
		errc <- m.opts.Sync.Run(m.ctx, updates)
		close(updates)
	}()

	return m.waitForUpdate()
}

func (m *Model) waitForUpdate() tea.Cmd {
	updates, errc := m.updates, m.syncErr
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return syncStoppedMsg(<-errc)
		}
		return syncUpdateMsg(update)
	}
}

func (m *Model) applyUpdate(u tasks.SyncUpdate) {
	m.status = u
	switch u.Phase {
	case tasks.Merged:
		m.artists = u.Artists
		m.members = u.Members
		if m.session != nil {
			if err := m.session.SetArtists(u.Artists); err != nil {
				m.logger.Warn("could not update galaxy", "error", err)
			}
		}
		if m.view == ListView {
			m.list.SetItems(artistItems(m.graph()))
		}
		m.logger.Info("galaxy updated", "iteration", u.Iteration, "artists", len(u.Artists), "members", u.Members)
	case tasks.Failed:
		m.logger.Warn("polling iteration failed", "iteration", u.Iteration, "error", u.Err)
	case tasks.Unauthenticated:
		m.err = u.Err
	}
}

func (m *Model) graph() *galaxy.Graph {
	if m.session == nil {
		return nil
	}
	return m.session.Graph()
}

func (m *Model) focused() (*galaxy.Node, bool) {
	g := m.graph()
	if g == nil || m.focusID == "" {
		return nil, false
	}
	return g.Node(m.focusID)
}

// hovered returns the focused artist, or the one under the pointer.
func (m *Model) hovered() (*galaxy.Node, bool) {
	if n, ok := m.focused(); ok {
		return n, true
	}
	if m.session == nil {
		return nil, false
	}
	return m.session.Hover(m.cursor)
}

// cycle moves the focus by step through the nodes in graph order.
func (m *Model) cycle(step int) {
	g := m.graph()
	if g == nil || len(g.Nodes) == 0 {
		return
	}
	i := -1
	for j, n := range g.Nodes {
		if n.ID() == m.focusID {
			i = j
			break
		}
	}
	if i < 0 && step < 0 {
		i = 0
	}
	i = (i + step + len(g.Nodes)) % len(g.Nodes)
	m.focus(g.Nodes[i])
}

func (m *Model) focus(n *galaxy.Node) {
	m.focusID = n.ID()
	m.cursor = m.session.Camera().ToScreen(n.Pos)
}

// centerOn moves the camera so world point p sits in the middle of the canvas.
func (m *Model) centerOn(p r2.Vec) {
	cam := m.session.Camera()
	cam.Pivot = p
	cam.Position = m.screenCenter()
}

func (m *Model) handleGalaxyKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.session == nil {
		if key.Matches(msg, m.keys.quit) {
			m.Close()
			return m, tea.Quit
		}
		return m, nil
	}
	cam := m.session.Camera()

	switch {
	case key.Matches(msg, m.keys.quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.up):
		cam.Nudge(r2.Vec{Y: panStep})
	case key.Matches(msg, m.keys.down):
		cam.Nudge(r2.Vec{Y: -panStep})
	case key.Matches(msg, m.keys.left):
		cam.Nudge(r2.Vec{X: panStep})
	case key.Matches(msg, m.keys.right):
		cam.Nudge(r2.Vec{X: -panStep})
	case key.Matches(msg, m.keys.zoomIn):
		m.zoom(-1)
	case key.Matches(msg, m.keys.zoomOut):
		m.zoom(1)
	case key.Matches(msg, m.keys.center):
		cam.Zoom = 1
		m.centerOn(m.origin)
	case key.Matches(msg, m.keys.next):
		m.cycle(1)
	case key.Matches(msg, m.keys.prev):
		m.cycle(-1)
	case key.Matches(msg, m.keys.back):
		m.focusID = ""
		m.flash = ""
	case key.Matches(msg, m.keys.open):
		if n, ok := m.hovered(); ok {
			return m, m.openArtist(n.ID())
		}
	case key.Matches(msg, m.keys.list):
		m.view = ListView
		m.list.ResetFilter()
		return m, m.list.SetItems(artistItems(m.graph()))
	case key.Matches(msg, m.keys.save):
		return m, m.saveSnapshot()
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
	}
	return m, nil
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			m.Close()
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			m.view = GalaxyView
			return m, nil
		case msg.String() == "enter":
			if item, ok := m.list.SelectedItem().(artistItem); ok {
				if n, ok := m.graph().Node(item.node.ID()); ok {
					m.centerOn(n.Pos)
					m.focus(n)
				}
			}
			m.view = GalaxyView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// zoom steps the camera around the focused artist, or the canvas center.
func (m *Model) zoom(deltaY float64) {
	anchor := m.screenCenter()
	if _, ok := m.focused(); ok {
		anchor = m.cursor
	}
	if _, err := m.session.Wheel(anchor, deltaY); err != nil {
		m.logger.Debug("zoom ignored", "error", err)
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.session == nil {
		return m, nil
	}
	p := CellCenter(msg.X, msg.Y)

	var err error
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		_, err = m.session.Wheel(p, -1)
	case msg.Button == tea.MouseButtonWheelDown:
		_, err = m.session.Wheel(p, 1)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.focusID = ""
		m.cursor = p
		_, err = m.session.PointerDown(p)
	case msg.Action == tea.MouseActionMotion:
		m.cursor = p
		err = m.session.PointerMove(p)
	case msg.Action == tea.MouseActionRelease:
		err = m.session.PointerUp()
	}
	if err != nil {
		m.logger.Debug("pointer ignored", "error", err)
	}
	return m, nil
}

func (m *Model) openArtist(id string) tea.Cmd {
	url := viz.ArtistURL(id)
	open := m.opts.Open
	return func() tea.Msg {
		return openedMsg(url, open(url))
	}
}

// saveSnapshot captures the frame now and writes it to disk off the update loop.
func (m *Model) saveSnapshot() tea.Cmd {
	var buf bytes.Buffer
	if err := m.session.Snapshot(&buf); err != nil {
		return func() tea.Msg { return snapshotSavedMsg("", err) }
	}

	name := m.opts.Code
	if name == "" {
		name = formatter.SoloName
	}
	path := filepath.Join(m.opts.SnapshotDir, fmt.Sprintf("galaxy-%s-%s.svg", name, m.opts.Now().Format("20060102-150405")))
	logger := m.logger

	return func() tea.Msg {
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return snapshotSavedMsg(path, fmt.Errorf("failed to write snapshot: %w", err))
		}
		logger.Info("snapshot saved", "path", path)
		return snapshotSavedMsg(path, nil)
	}
}

func (m *Model) renderStatus() string {
	mode := "solo"
	if m.opts.Code != "" {
		mode = fmt.Sprintf("group %s · %d members", m.opts.Code, m.members)
	}

	nodes := 0
	if g := m.graph(); g != nil {
		nodes = len(g.Nodes)
	}

	phase := ""
	switch {
	case m.err != nil:
		phase = styles.err.Render(m.err.Error())
	case m.status.Phase == tasks.Failed:
		phase = styles.warn.Render(m.status.Message)
	case m.status.Message != "":
		phase = styles.help.Render(m.status.Message)
	}

	line := fmt.Sprintf("%s · %s · %d artists · %.1fx", styles.title.Render("Cosmic Tunes"), mode, nodes, m.session.Camera().Zoom)
	if phase != "" {
		line += " · " + phase
	}
	return line
}

func (m *Model) renderInfo() string {
	if m.flash != "" {
		return m.flash
	}
	n, ok := m.hovered()
	if !ok {
		return styles.help.Render("tab to browse artists, or point at a star")
	}

	info := fmt.Sprintf("%s · popularity %d · %d links", styles.title.Render(n.Artist.Name), n.Artist.Popularity, m.graph().Degree(n.ID()))
	if len(n.Artist.Genres) > 0 {
		info += " · " + NewStyle(n.Color.Hex()).Render(strings.Join(n.Artist.Genres, ", "))
	}
	return info
}

// Run starts the viewer on the alternate screen with mouse support and blocks until it quits.
func Run(ctx context.Context, opts Options) error {
	model := NewModel(ctx, opts)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
