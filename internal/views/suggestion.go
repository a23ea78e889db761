package views

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/ccugym/gymdash/internal/backend"
	"github.com/ccugym/gymdash/internal/session"
)

const (
	msgEmptyPrompt      = "Please enter a prompt."
	msgSuggestionFailed = "Failed to get suggestion."
	msgAIUnreachable    = "Error communicating with AI server."
	msgProExpired       = "Pro session expired. Upgrade to continue."
)

// SuggestionSnapshot is what the AI suggestions tab renders
type SuggestionSnapshot struct {
	Placeholder string `json:"placeholder"`
	Suggestion  string `json:"suggestion,omitempty"`
	Error       string `json:"error,omitempty"`
	Loading     bool   `json:"loading"`
}

// SuggestionView asks the AI endpoint for workout suggestions. Exactly one
// request is dispatched per trigger (mount or submit); each carries a
// sequence number and only the newest request's answer is shown.
type SuggestionView struct {
	backend       Backend
	store         *session.Store
	isPro         func() bool
	onAuthFailure func(ctx context.Context) error
	bus           *Bus
	log           *slog.Logger

	mu          sync.Mutex
	placeholder string
	suggestion  string
	errMsg      string
	loading     bool
	seq         uint64

	inflight sync.WaitGroup
}

// NewSuggestionView creates an unmounted view. isPro reports the shell's
// current Pro status; onAuthFailure runs after a refused Pro token has been
// discarded.
func NewSuggestionView(b Backend, store *session.Store, defaultPrompt string, isPro func() bool, onAuthFailure func(ctx context.Context) error, bus *Bus) *SuggestionView {
	return &SuggestionView{
		backend:       b,
		store:         store,
		isPro:         isPro,
		onAuthFailure: onAuthFailure,
		bus:           bus,
		log:           slog.Default().With("view", ViewSuggestion),
		placeholder:   defaultPrompt,
	}
}

// Mount requests a suggestion for the current placeholder prompt in the
// background. Without Pro nothing is sent.
func (v *SuggestionView) Mount(ctx context.Context) error {
	if !v.isPro() {
		return ErrProRequired
	}

	v.mu.Lock()
	prompt := v.placeholder
	seq := v.begin()
	v.mu.Unlock()
	v.bus.Publish(ViewSuggestion)

	v.inflight.Add(1)
	go func() {
		defer v.inflight.Done()
		v.request(ctx, seq, prompt)
	}()
	return nil
}

// Unmount makes any in-flight answer stale
func (v *SuggestionView) Unmount() {
	v.mu.Lock()
	v.seq++
	v.loading = false
	v.mu.Unlock()
}

// Submit requests a suggestion for prompt and waits for the answer. The
// prompt becomes the new placeholder; that alone triggers no request.
func (v *SuggestionView) Submit(ctx context.Context, prompt string) (SuggestionSnapshot, error) {
	if !v.isPro() {
		return v.Snapshot(), ErrProRequired
	}

	v.mu.Lock()
	if v.loading {
		v.mu.Unlock()
		return v.Snapshot(), ErrBusy
	}
	if strings.TrimSpace(prompt) == "" {
		v.errMsg = msgEmptyPrompt
		v.mu.Unlock()
		v.bus.Publish(ViewSuggestion)
		return v.Snapshot(), ErrEmptyInput
	}
	v.placeholder = prompt
	seq := v.begin()
	v.mu.Unlock()
	v.bus.Publish(ViewSuggestion)

	err := v.request(ctx, seq, prompt)
	return v.Snapshot(), err
}

// begin starts a new request; the caller holds mu
func (v *SuggestionView) begin() uint64 {
	v.seq++
	v.loading = true
	v.errMsg = ""
	v.suggestion = ""
	return v.seq
}

func (v *SuggestionView) request(ctx context.Context, seq uint64, prompt string) error {
	token, ok, err := v.store.LoadToken(ctx, session.KindPro)
	if err == nil && !ok {
		err = ErrProRequired
	}

	var text string
	if err == nil {
		text, err = v.backend.Suggestion(ctx, token, prompt)
	}
	refused := backend.IsAuth(err) || errors.Is(err, ErrProRequired)
	if refused {
		defer v.expire(ctx)
	}

	v.mu.Lock()
	if seq != v.seq {
		v.mu.Unlock()
		v.log.Debug("dropping superseded suggestion", "seq", seq)
		return err
	}
	v.loading = false
	switch {
	case err == nil:
		v.suggestion = text
	case refused:
		v.errMsg = msgProExpired
	case backend.IsNetwork(err):
		v.errMsg = msgAIUnreachable
	default:
		v.errMsg = backend.Message(err, msgSuggestionFailed)
	}
	v.mu.Unlock()

	if err != nil {
		v.log.Warn("suggestion request failed", "error", err)
	}
	v.bus.Publish(ViewSuggestion)
	return err
}

// expire discards the Pro token the backend refused so no further request
// carries it
func (v *SuggestionView) expire(ctx context.Context) {
	if err := v.store.ClearToken(ctx, session.KindPro); err != nil {
		v.log.Error("failed to discard pro token", "error", err)
	}
	if v.onAuthFailure == nil {
		return
	}
	if err := v.onAuthFailure(ctx); err != nil {
		v.log.Warn("reload after pro expiry failed", "error", err)
	}
}

// Snapshot returns the rendered state
func (v *SuggestionView) Snapshot() SuggestionSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return SuggestionSnapshot{
		Placeholder: v.placeholder,
		Suggestion:  v.suggestion,
		Error:       v.errMsg,
		Loading:     v.loading,
	}
}
