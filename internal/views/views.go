// Package views holds the dashboard's view models: each view owns the state a
// browser renders, the backend calls that feed it, and the rules for when that
// state changes.
package views

import (
	"context"
	"errors"

	"github.com/ccugym/gymdash/internal/backend"
)

// Backend is the subset of the gym backend the views consume
type Backend interface {
	GymCount(ctx context.Context) (backend.Occupancy, error)
	Equipment(ctx context.Context, adminToken string) ([]backend.EquipmentRecord, error)
	UpdateEquipment(ctx context.Context, adminToken string, item backend.EquipmentRecord) error
	GymFloor(ctx context.Context, width, height int) ([]byte, string, error)
	Suggestion(ctx context.Context, proToken, prompt string) (string, error)
	AdminLogin(ctx context.Context, password string) (string, error)
	RedeemPro(ctx context.Context, code string) (string, error)
}

// View is a tab the shell can mount and unmount
type View interface {
	Mount(ctx context.Context) error
	Unmount()
}

var (
	// ErrProRequired is returned when a Pro-only action runs without a valid Pro session
	ErrProRequired = errors.New("pro session required")
	// ErrUnauthenticated is returned when an admin action runs before login
	ErrUnauthenticated = errors.New("admin login required")
	// ErrBusy is returned while a previous request of the same view is in flight
	ErrBusy = errors.New("request already in progress")
	// ErrNotFound is returned for an unknown equipment name
	ErrNotFound = errors.New("equipment not found")
	// ErrEmptyInput is returned for an empty prompt, code or password
	ErrEmptyInput = errors.New("input required")
	// ErrInvalidInput is returned for input the backend would never accept
	ErrInvalidInput = errors.New("invalid input")
	// ErrLoggedIn is returned by Login while an admin session is active
	ErrLoggedIn = errors.New("admin already logged in")
	// ErrUnknownTab is returned for a tab id the shell does not know
	ErrUnknownTab = errors.New("unknown tab")
)
