// Package session holds the dashboard's process-wide session: the visitor
// Pro token, the admin token, and UI preferences, kept in a durable KV.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ccugym/gymdash/internal/backend"
	"github.com/ccugym/gymdash/internal/metrics"
)

// Kind selects which bearer token an operation applies to
type Kind string

const (
	KindPro   Kind = "pro"
	KindAdmin Kind = "admin"
)

// Storage keys
const (
	KeyProToken      = "proToken"
	KeyAdminToken    = "adminToken"
	KeyDarkMode      = "darkMode"
	KeyActiveTab     = "activeTab"
	KeyGymFloorScale = "gymFloorScale"
)

// DefaultTab is used when no tab has been persisted
const DefaultTab = "overview"

func (k Kind) key() string {
	if k == KindAdmin {
		return KeyAdminToken
	}
	return KeyProToken
}

// TokenValidator checks a token against the backend
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (backend.TokenInfo, error)
}

// TokenStatus is the outcome of a validation
type TokenStatus struct {
	Kind  Kind   `json:"kind"`
	Valid bool   `json:"valid"`
	Role  string `json:"role,omitempty"`
}

// Session is a snapshot of everything the store holds
type Session struct {
	ProToken      string `json:"-"`
	AdminToken    string `json:"-"`
	DarkMode      bool   `json:"dark_mode"`
	ActiveTab     string `json:"active_tab"`
	GymFloorScale int    `json:"gym_floor_scale,omitempty"`
}

// Store is the single source of truth for session state. Views receive it
// by reference and never touch the KV directly.
type Store struct {
	kv        KV
	validator TokenValidator
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewStore creates a store over kv. m may be nil.
func NewStore(kv KV, validator TokenValidator, m *metrics.Metrics) *Store {
	return &Store{
		kv:        kv,
		validator: validator,
		metrics:   m,
		log:       slog.Default().With("component", "session"),
	}
}

// LoadToken reads a token; an absent key reports ok=false
func (s *Store) LoadToken(ctx context.Context, kind Kind) (string, bool, error) {
	v, ok, err := s.kv.Get(ctx, kind.key())
	if err != nil {
		return "", false, err
	}
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// SetToken stores token, or removes the entry when token is empty
func (s *Store) SetToken(ctx context.Context, kind Kind, token string) error {
	if token == "" {
		return s.ClearToken(ctx, kind)
	}
	return s.kv.Set(ctx, kind.key(), token)
}

// ClearToken removes a token
func (s *Store) ClearToken(ctx context.Context, kind Kind) error {
	return s.kv.Delete(ctx, kind.key())
}

// ValidateToken checks the stored token of the given kind with the backend.
// Validation is fail-closed: a network error, a refused request, an invalid
// answer or the wrong role all discard the stored token. There is no retry.
func (s *Store) ValidateToken(ctx context.Context, kind Kind) (TokenStatus, error) {
	status := TokenStatus{Kind: kind}

	token, ok, err := s.LoadToken(ctx, kind)
	if err != nil {
		return status, fmt.Errorf("load %s token: %w", kind, err)
	}
	if !ok {
		return status, nil
	}

	info, err := s.validator.ValidateToken(ctx, token)
	switch {
	case err != nil:
		s.log.Warn("token validation failed, discarding token", "kind", kind, "error", err)
	case !info.Valid:
		s.log.Info("token reported invalid, discarding", "kind", kind)
	case !roleMatches(kind, info):
		s.log.Warn("token has wrong role, discarding", "kind", kind, "type", info.Type, "user_id", info.UserID)
	default:
		status.Valid = true
		status.Role = roleOf(kind, info)
	}

	s.metrics.ObserveValidation(string(kind), status.Valid)

	if !status.Valid {
		if err := s.ClearToken(ctx, kind); err != nil {
			s.log.Error("failed to discard token", "kind", kind, "error", err)
		}
	}
	return status, nil
}

func roleMatches(kind Kind, info backend.TokenInfo) bool {
	if kind == KindAdmin {
		return info.UserID == backend.AdminUserID
	}
	return info.Type == backend.TokenTypePro
}

func roleOf(kind Kind, info backend.TokenInfo) string {
	if kind == KindAdmin {
		return info.UserID
	}
	return info.Type
}

// DarkMode reports the dark-mode preference
func (s *Store) DarkMode(ctx context.Context) bool {
	v, _, err := s.kv.Get(ctx, KeyDarkMode)
	if err != nil {
		s.log.Warn("could not read preference", "key", KeyDarkMode, "error", err)
	}
	return v == "true"
}

// SetDarkMode persists the dark-mode preference
func (s *Store) SetDarkMode(ctx context.Context, on bool) error {
	return s.kv.Set(ctx, KeyDarkMode, strconv.FormatBool(on))
}

// ActiveTab returns the persisted tab id, or DefaultTab
func (s *Store) ActiveTab(ctx context.Context) string {
	v, ok, err := s.kv.Get(ctx, KeyActiveTab)
	if err != nil {
		s.log.Warn("could not read preference", "key", KeyActiveTab, "error", err)
	}
	if !ok || v == "" {
		return DefaultTab
	}
	return v
}

// SetActiveTab persists the active tab id
func (s *Store) SetActiveTab(ctx context.Context, tab string) error {
	return s.kv.Set(ctx, KeyActiveTab, tab)
}

// GymFloorScale returns the persisted overview percent, or def when unset
// or unreadable
func (s *Store) GymFloorScale(ctx context.Context, def int) int {
	v, ok, err := s.kv.Get(ctx, KeyGymFloorScale)
	if err != nil {
		s.log.Warn("could not read preference", "key", KeyGymFloorScale, "error", err)
	}
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// SetGymFloorScale persists the overview percent
func (s *Store) SetGymFloorScale(ctx context.Context, percent int) error {
	return s.kv.Set(ctx, KeyGymFloorScale, strconv.Itoa(percent))
}

// Snapshot reads the whole session
func (s *Store) Snapshot(ctx context.Context) Session {
	pro, _, _ := s.LoadToken(ctx, KindPro)
	admin, _, _ := s.LoadToken(ctx, KindAdmin)
	return Session{
		ProToken:      pro,
		AdminToken:    admin,
		DarkMode:      s.DarkMode(ctx),
		ActiveTab:     s.ActiveTab(ctx),
		GymFloorScale: s.GymFloorScale(ctx, 0),
	}
}
