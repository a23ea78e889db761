package views

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ccugym/gymdash/internal/backend"
	"github.com/ccugym/gymdash/internal/session"
)

// MaxProCodeLength fits the XXXX-XXXX-XXXX-XXXX format
const MaxProCodeLength = 19

const (
	msgEmptyCode    = "❌ Please enter a Pro code."
	msgInvalidCode  = "Invalid Pro code"
	msgUpgradeError = "❌ Error applying Pro code. Try again later."
	msgUpgradeDone  = "✅ Pro code applied successfully! You are now a Pro for 2 hours."
	msgCodeTooLong  = "❌ Pro codes are at most 19 characters."
	msgSaveFailed   = "❌ Pro code accepted, but the Pro session could not be saved."
)

// UpgradeSnapshot is what the upgrade tab renders
type UpgradeSnapshot struct {
	Message string `json:"message,omitempty"`
	Loading bool   `json:"loading"`
}

// UpgradeView redeems a Pro code for a time-limited Pro token
type UpgradeView struct {
	backend    Backend
	store      *session.Store
	onUpgraded func(ctx context.Context) error
	bus        *Bus
	log        *slog.Logger

	mu      sync.Mutex
	message string
	loading bool
}

// NewUpgradeView creates the view. onUpgraded runs after a token has been
// stored so every other view re-evaluates Pro status.
func NewUpgradeView(b Backend, store *session.Store, onUpgraded func(ctx context.Context) error, bus *Bus) *UpgradeView {
	return &UpgradeView{
		backend:    b,
		store:      store,
		onUpgraded: onUpgraded,
		bus:        bus,
		log:        slog.Default().With("view", ViewUpgrade),
	}
}

// Mount clears the previous status
func (v *UpgradeView) Mount(context.Context) error {
	v.mu.Lock()
	v.message = ""
	v.mu.Unlock()
	return nil
}

// Unmount is a no-op; redemption is never cancelled
func (v *UpgradeView) Unmount() {}

// NormalizeCode trims and upper-cases a Pro code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeem submits a code. On success the Pro token is stored and the shell
// reloaded; on failure nothing is stored. There is no retry.
func (v *UpgradeView) Redeem(ctx context.Context, code string) (UpgradeSnapshot, error) {
	code = NormalizeCode(code)

	v.mu.Lock()
	if v.loading {
		v.mu.Unlock()
		return v.Snapshot(), ErrBusy
	}
	switch {
	case code == "":
		v.message = msgEmptyCode
		v.mu.Unlock()
		v.bus.Publish(ViewUpgrade)
		return v.Snapshot(), ErrEmptyInput
	case utf8.RuneCountInString(code) > MaxProCodeLength:
		v.message = msgCodeTooLong
		v.mu.Unlock()
		v.bus.Publish(ViewUpgrade)
		return v.Snapshot(), ErrInvalidInput
	}
	v.loading = true
	v.message = ""
	v.mu.Unlock()
	v.bus.Publish(ViewUpgrade)

	token, err := v.backend.RedeemPro(ctx, code)
	if err != nil {
		msg := "❌ " + backend.Message(err, msgInvalidCode)
		if backend.IsNetwork(err) {
			msg = msgUpgradeError
		}
		v.finish(msg)
		v.log.Info("pro code rejected", "error", err)
		return v.Snapshot(), err
	}
	if err := v.store.SetToken(ctx, session.KindPro, token); err != nil {
		v.finish(msgSaveFailed)
		v.log.Error("failed to persist pro token", "error", err)
		return v.Snapshot(), fmt.Errorf("store pro token: %w", err)
	}

	v.log.Info("pro code redeemed")
	if v.onUpgraded != nil {
		if err := v.onUpgraded(ctx); err != nil {
			v.log.Warn("reload after upgrade failed", "error", err)
		}
	}
	v.finish(msgUpgradeDone)
	return v.Snapshot(), nil
}

func (v *UpgradeView) finish(msg string) {
	v.mu.Lock()
	v.loading = false
	v.message = msg
	v.mu.Unlock()
	v.bus.Publish(ViewUpgrade)
}

// Snapshot returns the rendered state
func (v *UpgradeView) Snapshot() UpgradeSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return UpgradeSnapshot{Message: v.message, Loading: v.loading}
}
