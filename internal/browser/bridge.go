package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"webpilot/internal/domain"
	"webpilot/internal/metrics"
)

// Bridge manages a Chrome instance and its open tabs. The active tab is the
// context browser tools act on.
type Bridge struct {
	profileDir string
	headless   bool
	width      int
	height     int
	navTimeout time.Duration
	logger     *slog.Logger

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabs        []*Tab
	active      int
	started     bool

	subMu      sync.Mutex
	subs       map[int]chan struct{}
	nextSub    int
	toolDriven bool // navigation initiated by a tool, not the user
}

// BridgeConfig holds configuration for the browser bridge.
type BridgeConfig struct {
	ProfileDir        string // Chrome user data directory (persists cookies/sessions)
	Headless          bool
	WindowWidth       int
	WindowHeight      int
	NavigationTimeout time.Duration
	Logger            *slog.Logger
}

// Tab is one open browser tab.
type Tab struct {
	ID     string
	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	url string
}

func (t *Tab) URL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url
}

func (t *Tab) setURL(u string) {
	t.mu.Lock()
	t.url = u
	t.mu.Unlock()
}

// TabRef identifies a tab and the page it showed when the ref was taken. It
// is the opaque handle tools receive.
type TabRef struct {
	TabID string
	URL   string
}

// Fingerprint changes when either the tab or its page changes.
func (r TabRef) Fingerprint() string {
	return r.TabID + "|" + r.URL
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.ProfileDir == "" {
		home, _ := os.UserHomeDir()
		cfg.ProfileDir = filepath.Join(home, ".webpilot", "chrome-profiles", "default")
	}
	if cfg.WindowWidth <= 0 {
		cfg.WindowWidth = 1280
	}
	if cfg.WindowHeight <= 0 {
		cfg.WindowHeight = 900
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{
		profileDir: cfg.ProfileDir,
		headless:   cfg.Headless,
		width:      cfg.WindowWidth,
		height:     cfg.WindowHeight,
		navTimeout: cfg.NavigationTimeout,
		logger:     cfg.Logger,
		subs:       make(map[int]chan struct{}),
	}
}

// Start launches Chrome and opens the first tab.
func (b *Bridge) Start(parent context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir %s: %w", b.profileDir, err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(b.profileDir),
		chromedp.WindowSize(b.width, b.height),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
	)
	if b.headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(parent, opts...)

	tab, err := b.openTabLocked()
	if err != nil {
		b.allocCancel()
		return err
	}
	b.tabs = []*Tab{tab}
	b.active = 0
	b.started = true
	metrics.OpenTabs.Set(1)
	b.logger.Info("browser started", "headless", b.headless, "profile", b.profileDir)
	return nil
}

// Close shuts down all tabs and the browser process.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil
	}
	for _, t := range b.tabs {
		t.cancel()
	}
	b.allocCancel()
	b.tabs = nil
	b.started = false
	metrics.OpenTabs.Set(0)
	return nil
}

func (b *Bridge) openTabLocked() (*Tab, error) {
	ctx, cancel := chromedp.NewContext(b.allocCtx)
	// Starting the target eagerly surfaces launch failures here instead of
	// on the first tool call.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	tab := &Tab{
		ID:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
	}
	b.watchNavigation(tab)
	return tab, nil
}

// watchNavigation tracks the tab's URL and reports navigations that did not
// come from a tool as user interruptions.
func (b *Bridge) watchNavigation(tab *Tab) {
	chromedp.ListenTarget(tab.ctx, func(ev any) {
		nav, ok := ev.(*page.EventFrameNavigated)
		if !ok || nav.Frame.ParentID != "" {
			return
		}
		tab.setURL(nav.Frame.URL)

		b.mu.Lock()
		driven := b.toolDriven
		b.mu.Unlock()
		if !driven {
			b.notifyInterruption()
		}
	})
}

// beginToolNavigation marks navigations as tool-driven until the returned
// func runs.
func (b *Bridge) beginToolNavigation() func() {
	b.mu.Lock()
	b.toolDriven = true
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.toolDriven = false
		b.mu.Unlock()
	}
}

// NewTab opens a tab and makes it active.
func (b *Bridge) NewTab() (*Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil, fmt.Errorf("browser not started")
	}
	tab, err := b.openTabLocked()
	if err != nil {
		return nil, err
	}
	b.tabs = append(b.tabs, tab)
	b.active = len(b.tabs) - 1
	metrics.OpenTabs.Set(int64(len(b.tabs)))
	return tab, nil
}

// Tabs returns the open tabs in order.
func (b *Bridge) Tabs() []*Tab {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Tab, len(b.tabs))
	copy(out, b.tabs)
	return out
}

// ActiveTab returns the tab tools currently act on, or nil before Start.
func (b *Bridge) ActiveTab() *Tab {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started || len(b.tabs) == 0 {
		return nil
	}
	return b.tabs[b.active]
}

// SwitchTo makes the tab with the given ID or 1-based index active.
func (b *Bridge) SwitchTo(idOrIndex string) (*Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, t := range b.tabs {
		if t.ID == idOrIndex || fmt.Sprintf("%d", i+1) == idOrIndex {
			b.active = i
			return t, nil
		}
	}
	return nil, fmt.Errorf("no tab %q", idOrIndex)
}

// tabByRef resolves a ContextRef to a tab, falling back to the active tab.
func (b *Bridge) tabByRef(ref domain.ContextRef) *Tab {
	tr, ok := ref.(TabRef)
	if !ok {
		return b.ActiveTab()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.tabs {
		if t.ID == tr.TabID {
			return t
		}
	}
	if len(b.tabs) == 0 {
		return nil
	}
	return b.tabs[b.active]
}

// run executes chromedp actions against a tab with the navigation timeout
// applied.
func (b *Bridge) run(ctx context.Context, tab *Tab, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(tab.ctx, b.navTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Current implements domain.ContextProvider: a snapshot ref of the active
// tab.
func (b *Bridge) Current() domain.ContextRef {
	tab := b.ActiveTab()
	if tab == nil {
		return nil
	}
	return TabRef{TabID: tab.ID, URL: tab.URL()}
}

// Subscribe implements domain.InterruptionSource. The returned channel
// signals when the user drives the browser outside tool calls; unsubscribe
// is safe to call more than once.
func (b *Bridge) Subscribe(ref domain.ContextRef) (<-chan struct{}, func()) {
	b.subMu.Lock()
	id := b.nextSub
	b.nextSub++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch
	b.subMu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.subMu.Lock()
			delete(b.subs, id)
			b.subMu.Unlock()
		})
	}
	return ch, unsub
}

func (b *Bridge) notifyInterruption() {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
