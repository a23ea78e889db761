package views

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/ccugym/gymdash/internal/config"
	"github.com/ccugym/gymdash/internal/metrics"
	"github.com/ccugym/gymdash/internal/poller"
	"github.com/ccugym/gymdash/internal/session"
)

// OverviewSnapshot is what the overview tab renders
type OverviewSnapshot struct {
	Percent    int    `json:"percent"`
	MinPercent int    `json:"min_percent"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	ImageID    string `json:"image_id,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	Loading    bool   `json:"loading"`
}

// OverviewView shows the periodically refreshed gym floor image at a
// user-selected scale. Identical frames are not re-adopted; each adopted
// frame supersedes and releases the previous one.
type OverviewView struct {
	backend  Backend
	store    *session.Store
	cfg      config.OverviewConfig
	interval time.Duration
	images   *ImageRegistry
	metrics  *metrics.Metrics
	bus      *Bus

	mu      sync.Mutex
	percent int
	current string
	mounted bool
	ctx     context.Context
	fetcher *poller.Fetcher[Frame]
	// gen identifies the live fetcher; frames from older ones are dropped
	gen uint64
}

// NewOverviewView creates an unmounted view
func NewOverviewView(b Backend, store *session.Store, cfg config.OverviewConfig, interval time.Duration, images *ImageRegistry, m *metrics.Metrics, bus *Bus) *OverviewView {
	return &OverviewView{
		backend:  b,
		store:    store,
		cfg:      cfg,
		interval: interval,
		images:   images,
		metrics:  m,
		bus:      bus,
		percent:  cfg.DefaultPercent,
	}
}

// ClampPercent bounds a scale to [MinPercent, 100]
func (v *OverviewView) ClampPercent(p int) int {
	if p < v.cfg.MinPercent {
		return v.cfg.MinPercent
	}
	if p > 100 {
		return 100
	}
	return p
}

// Resolution maps a percent onto the maximum resolution
func (v *OverviewView) Resolution(percent int) (width, height int) {
	p := float64(v.ClampPercent(percent)) / 100
	return int(math.Round(p * float64(v.cfg.MaxWidth))), int(math.Round(p * float64(v.cfg.MaxHeight)))
}

// Mount restores the persisted scale and starts polling
func (v *OverviewView) Mount(ctx context.Context) error {
	percent := v.ClampPercent(v.store.GymFloorScale(ctx, v.cfg.DefaultPercent))

	v.mu.Lock()
	v.percent = percent
	v.mounted = true
	v.ctx = ctx
	v.mu.Unlock()

	return v.restart(ctx, percent)
}

// Unmount stops polling and releases the frame on display
func (v *OverviewView) Unmount() {
	v.mu.Lock()
	fetcher := v.fetcher
	v.fetcher = nil
	v.mounted = false
	v.gen++
	current := v.current
	v.current = ""
	v.mu.Unlock()

	if fetcher != nil {
		fetcher.Stop()
	}
	if current != "" {
		v.images.Release(current)
	}
}

// SetPercent persists a new scale and, when mounted, restarts polling at
// the matching resolution. It returns the scale actually applied.
func (v *OverviewView) SetPercent(ctx context.Context, percent int) (int, error) {
	percent = v.ClampPercent(percent)
	if err := v.store.SetGymFloorScale(ctx, percent); err != nil {
		return 0, err
	}

	v.mu.Lock()
	v.percent = percent
	mounted, mountCtx := v.mounted, v.ctx
	v.mu.Unlock()

	v.bus.Publish(ViewOverview)
	if !mounted {
		return percent, nil
	}
	return percent, v.restart(mountCtx, percent)
}

func (v *OverviewView) restart(ctx context.Context, percent int) error {
	width, height := v.Resolution(percent)

	var gen uint64
	fetcher, err := poller.New(poller.Config[Frame]{
		Name:     "gym-floor",
		Interval: v.interval,
		Fetch: func(ctx context.Context) (Frame, error) {
			data, contentType, err := v.backend.GymFloor(ctx, width, height)
			return Frame{Data: data, ContentType: contentType}, err
		},
		Key:      func(f Frame) (string, error) { return poller.BytesKey(f.Data) },
		OnChange: func(f Frame) { v.adopt(gen, f) },
		Metrics:  v.metrics,
	})
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.gen++
	gen = v.gen
	prev := v.fetcher
	v.fetcher = fetcher
	v.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	fetcher.Start(ctx)
	return nil
}

func (v *OverviewView) adopt(gen uint64, f Frame) {
	id := v.images.Adopt(f)

	v.mu.Lock()
	if !v.mounted || gen != v.gen {
		v.mu.Unlock()
		v.images.Release(id)
		return
	}
	prev := v.current
	v.current = id
	v.mu.Unlock()

	if prev != "" {
		v.images.Release(prev)
	}
	v.bus.Publish(ViewOverview)
}

// Snapshot returns the current scale and frame handle
func (v *OverviewView) Snapshot() OverviewSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	w, h := v.Resolution(v.percent)
	snap := OverviewSnapshot{
		Percent:    v.percent,
		MinPercent: v.cfg.MinPercent,
		Width:      w,
		Height:     h,
		Loading:    v.current == "",
	}
	if v.current != "" {
		snap.ImageID = v.current
		snap.ImageURL = "/overview/image/" + v.current
	}
	return snap
}
