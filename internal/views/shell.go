package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ccugym/gymdash/internal/backend"
	"github.com/ccugym/gymdash/internal/config"
	"github.com/ccugym/gymdash/internal/metrics"
	"github.com/ccugym/gymdash/internal/poller"
	"github.com/ccugym/gymdash/internal/session"
)

// Tab ids
const (
	TabOverview = "overview"
	TabList     = "list"
	TabAI       = "ai"
	TabAdmin    = "admin"
	TabUpgrade  = "upgrade"
)

// TabInfo is one entry of the tab bar
type TabInfo struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// ShellState is the header, tab bar and preferences
type ShellState struct {
	Title        string     `json:"title"`
	Pro          bool       `json:"pro"`
	ShowUpgrade  bool       `json:"show_upgrade"`
	ProExpiresAt *time.Time `json:"pro_expires_at,omitempty"`
	DarkMode     bool       `json:"dark_mode"`
	ActiveTab    string     `json:"active_tab"`
	Tabs         []TabInfo  `json:"tabs"`
	PeopleInGym  int        `json:"people_in_gym"`
}

// Deps are the collaborators a Shell is built from
type Deps struct {
	Backend  Backend
	Store    *session.Store
	Config   config.Config
	Metrics  *metrics.Metrics
	Bus      *Bus
	Images   *ImageRegistry
	OnUpdate func(UpdateResult)
}

// Shell owns the tabs. Exactly one view is mounted at a time; the header's
// occupancy count is polled independently of the active tab.
type Shell struct {
	store   *session.Store
	backend Backend
	metrics *metrics.Metrics
	bus     *Bus
	images  *ImageRegistry
	poll    time.Duration
	log     *slog.Logger

	equipment  *EquipmentView
	overview   *OverviewView
	admin      *AdminView
	suggestion *SuggestionView
	upgrade    *UpgradeView

	// lifecycle serializes mount and unmount; mu guards the fields below
	lifecycle sync.Mutex
	mu        sync.Mutex
	ctx       context.Context
	started   bool
	pro       bool
	proExpiry time.Time
	darkMode  bool
	active    string
	people    int
	occupancy *poller.Fetcher[backend.Occupancy]
}

// NewShell wires every view to the same backend, store and bus
func NewShell(d Deps) *Shell {
	s := &Shell{
		store:   d.Store,
		backend: d.Backend,
		metrics: d.Metrics,
		bus:     d.Bus,
		images:  d.Images,
		poll:    d.Config.Backend.PollInterval,
		log:     slog.Default().With("component", "shell"),
		active:  TabOverview,
	}
	if s.images == nil {
		s.images = NewImageRegistry(d.Metrics)
	}

	s.equipment = NewEquipmentView(d.Backend, s.poll, d.Metrics, d.Bus)
	s.overview = NewOverviewView(d.Backend, d.Store, d.Config.Overview, s.poll, s.images, d.Metrics, d.Bus)
	s.admin = NewAdminView(d.Backend, d.Store, d.Bus, d.OnUpdate)
	s.suggestion = NewSuggestionView(d.Backend, d.Store, d.Config.Suggestions.DefaultPrompt, s.IsPro, s.Reload, d.Bus)
	s.upgrade = NewUpgradeView(d.Backend, d.Store, s.Reload, d.Bus)
	return s
}

// Equipment returns the equipment list view
func (s *Shell) Equipment() *EquipmentView { return s.equipment }

// Overview returns the gym floor view
func (s *Shell) Overview() *OverviewView { return s.overview }

// Admin returns the admin panel
func (s *Shell) Admin() *AdminView { return s.admin }

// Suggestion returns the AI suggestions view
func (s *Shell) Suggestion() *SuggestionView { return s.suggestion }

// Upgrade returns the Pro upgrade view
func (s *Shell) Upgrade() *UpgradeView { return s.upgrade }

// Images returns the registry holding the frames on display
func (s *Shell) Images() *ImageRegistry { return s.images }

// Start validates the Pro session, starts the occupancy poller and mounts
// the persisted tab. ctx bounds every background fetch for the shell's
// lifetime.
func (s *Shell) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("shell already started")
	}
	s.started = true
	s.ctx = ctx
	s.mu.Unlock()

	s.refreshPro(ctx)

	dark := s.store.DarkMode(ctx)
	tab := s.store.ActiveTab(ctx)
	if !s.knownTab(tab) || (tab == TabAI && !s.IsPro()) {
		tab = TabOverview
	}

	occupancy, err := poller.New(poller.Config[backend.Occupancy]{
		Name:     "shell-occupancy",
		Interval: s.poll,
		Fetch:    s.backend.GymCount,
		Key:      poller.JSONKey[backend.Occupancy],
		OnChange: s.setOccupancy,
		Metrics:  s.metrics,
	})
	if err != nil {
		return fmt.Errorf("occupancy poller: %w", err)
	}

	s.mu.Lock()
	s.darkMode = dark
	s.active = tab
	s.occupancy = occupancy
	s.mu.Unlock()

	occupancy.Start(ctx)

	if err := s.viewFor(tab).Mount(ctx); err != nil {
		s.log.Warn("mount failed", "tab", tab, "error", err)
	}
	s.log.Info("shell started", "tab", tab, "pro", s.IsPro(), "dark_mode", dark)
	s.bus.Publish(ViewShell)
	return nil
}

// Stop unmounts the active view and stops the occupancy poller
func (s *Shell) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	active := s.active
	occupancy := s.occupancy
	s.occupancy = nil
	s.mu.Unlock()

	s.viewFor(active).Unmount()
	if occupancy != nil {
		occupancy.Stop()
	}
	s.log.Info("shell stopped")
}

// SelectTab switches the mounted view. The upgrade tab is transient and is
// not persisted.
func (s *Shell) SelectTab(ctx context.Context, tab string) error {
	if !s.knownTab(tab) {
		return ErrUnknownTab
	}
	if tab == TabAI && !s.IsPro() {
		return ErrProRequired
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if tab != TabUpgrade {
		if err := s.store.SetActiveTab(ctx, tab); err != nil {
			return fmt.Errorf("persist tab: %w", err)
		}
	}

	s.mu.Lock()
	prev := s.active
	s.active = tab
	started, mountCtx := s.started, s.ctx
	s.mu.Unlock()

	if started {
		s.viewFor(prev).Unmount()
		if err := s.viewFor(tab).Mount(mountCtx); err != nil {
			s.log.Warn("mount failed", "tab", tab, "error", err)
		}
	}
	s.bus.Publish(ViewShell)
	return nil
}

// ToggleDarkMode flips and persists the dark-mode preference
func (s *Shell) ToggleDarkMode(ctx context.Context) (bool, error) {
	s.mu.Lock()
	on := !s.darkMode
	s.mu.Unlock()

	if err := s.store.SetDarkMode(ctx, on); err != nil {
		return !on, err
	}

	s.mu.Lock()
	s.darkMode = on
	s.mu.Unlock()
	s.bus.Publish(ViewShell)
	return on, nil
}

// Reload re-validates the Pro session and remounts the active tab. The
// transient upgrade tab gives way to the persisted one, and a tab that is no
// longer allowed falls back to the overview.
func (s *Shell) Reload(ctx context.Context) error {
	s.refreshPro(ctx)
	persisted := s.store.ActiveTab(ctx)

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	prev := s.active
	next := prev
	if next == TabUpgrade {
		next = persisted
	}
	if !s.knownTab(next) || next == TabUpgrade || (next == TabAI && !s.pro) {
		next = TabOverview
	}
	s.active = next
	started, mountCtx := s.started, s.ctx
	s.mu.Unlock()

	if started {
		s.viewFor(prev).Unmount()
		if err := s.viewFor(next).Mount(mountCtx); err != nil {
			s.log.Warn("mount failed", "tab", next, "error", err)
		}
	}
	s.bus.Publish(ViewShell)
	return nil
}

func (s *Shell) refreshPro(ctx context.Context) {
	status, err := s.store.ValidateToken(ctx, session.KindPro)
	if err != nil {
		s.log.Error("pro validation failed", "error", err)
	}

	var expiry time.Time
	if status.Valid {
		if token, ok, _ := s.store.LoadToken(ctx, session.KindPro); ok {
			expiry, _ = session.ProExpiry(token)
		}
	}

	s.mu.Lock()
	s.pro = status.Valid
	s.proExpiry = expiry
	s.mu.Unlock()
}

func (s *Shell) setOccupancy(o backend.Occupancy) {
	s.mu.Lock()
	s.people = o.PeopleInGym
	s.mu.Unlock()
	s.bus.Publish(ViewShell)
}

// IsPro reports whether the last validation found a Pro session
func (s *Shell) IsPro() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pro
}

// ActiveTab returns the mounted tab id
func (s *Shell) ActiveTab() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Shell) knownTab(tab string) bool {
	switch tab {
	case TabOverview, TabList, TabAI, TabAdmin, TabUpgrade:
		return true
	}
	return false
}

func (s *Shell) viewFor(tab string) View {
	switch tab {
	case TabList:
		return s.equipment
	case TabAI:
		return s.suggestion
	case TabAdmin:
		return s.admin
	case TabUpgrade:
		return s.upgrade
	default:
		return s.overview
	}
}

// State returns the header and tab bar as rendered
func (s *Shell) State() ShellState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := ShellState{
		Title:       "CCU Gym",
		Pro:         s.pro,
		ShowUpgrade: !s.pro,
		DarkMode:    s.darkMode,
		ActiveTab:   s.active,
		PeopleInGym: s.people,
	}
	if s.pro {
		st.Title = "CCU Gym Pro"
		if !s.proExpiry.IsZero() {
			exp := s.proExpiry
			st.ProExpiresAt = &exp
		}
	}

	tabs := []TabInfo{
		{ID: TabOverview, Label: fmt.Sprintf("Overview (%d)", s.people)},
		{ID: TabList, Label: "Equipment"},
	}
	if s.pro {
		tabs = append(tabs, TabInfo{ID: TabAI, Label: "AI Suggestions"})
	}
	tabs = append(tabs, TabInfo{ID: TabAdmin, Label: "Admin"})
	for i := range tabs {
		tabs[i].Active = tabs[i].ID == s.active
	}
	st.Tabs = tabs
	return st
}
