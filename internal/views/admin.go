package views

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ccugym/gymdash/internal/backend"
	"github.com/ccugym/gymdash/internal/session"
)

// AdminState is the admin panel's authentication state
type AdminState string

const (
	AdminUnauthenticated AdminState = "unauthenticated"
	AdminLoading         AdminState = "loading"
	AdminReady           AdminState = "ready"
)

// Admin panel messages
const (
	msgVerifying      = "Verifying password..."
	msgAccessGranted  = "✅ Access granted!"
	msgWrongPassword  = "❌ Incorrect password, please try again."
	msgLoginError     = "❌ Error during login, please try again."
	msgFetchError     = "Error fetching data or unauthorized. Admin access required."
	msgApplying       = "Applying all updates..."
	msgAllApplied     = "✅ All updates applied successfully!"
	msgSessionExpired = "Admin session expired, please log in again."
)

// UpdateResult is the outcome of pushing one row to the backend
type UpdateResult struct {
	Name      string    `json:"name"`
	Total     int       `json:"total"`
	Available int       `json:"available"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// BatchReport is the outcome of ApplyAll. Rows succeed or fail
// independently; there is no rollback.
type BatchReport struct {
	Results   []UpdateResult `json:"results"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}

// AdminSnapshot is what the admin tab renders. Items is empty unless the
// panel is ready.
type AdminSnapshot struct {
	State   AdminState                `json:"state"`
	Message string                    `json:"message,omitempty"`
	Busy    bool                      `json:"busy"`
	Items   []backend.EquipmentRecord `json:"items"`
}

// AdminView is the password-gated equipment editor.
//
// Unauthenticated -> (login or valid stored token) -> Loading -> Ready.
// Any authentication failure afterwards drops back to Unauthenticated and
// discards the admin token.
type AdminView struct {
	backend  Backend
	store    *session.Store
	bus      *Bus
	onUpdate func(UpdateResult)
	log      *slog.Logger

	mu      sync.Mutex
	state   AdminState
	message string
	items   []backend.EquipmentRecord
	token   string
	busy    bool
	gen     uint64

	inflight sync.WaitGroup
}

// NewAdminView creates an unmounted view. onUpdate, if set, observes every
// row pushed to the backend.
func NewAdminView(b Backend, store *session.Store, bus *Bus, onUpdate func(UpdateResult)) *AdminView {
	return &AdminView{
		backend:  b,
		store:    store,
		bus:      bus,
		onUpdate: onUpdate,
		log:      slog.Default().With("view", ViewAdmin),
		state:    AdminUnauthenticated,
	}
}

// Mount checks for a stored admin token. Without one the panel asks for a
// password; with one it validates it and loads equipment in the background.
func (v *AdminView) Mount(ctx context.Context) error {
	token, ok, err := v.store.LoadToken(ctx, session.KindAdmin)
	if err != nil {
		return fmt.Errorf("load admin token: %w", err)
	}

	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.items = nil
	v.token = ""
	v.message = ""
	if !ok {
		v.state = AdminUnauthenticated
		v.mu.Unlock()
		v.bus.Publish(ViewAdmin)
		return nil
	}
	v.state = AdminLoading
	v.mu.Unlock()
	v.bus.Publish(ViewAdmin)

	v.inflight.Add(1)
	go func() {
		defer v.inflight.Done()

		status, err := v.store.ValidateToken(ctx, session.KindAdmin)
		if err != nil || !status.Valid {
			v.mu.Lock()
			if v.gen == gen {
				v.state = AdminUnauthenticated
			}
			v.mu.Unlock()
			v.bus.Publish(ViewAdmin)
			return
		}
		v.load(ctx, gen, token)
	}()
	return nil
}

// Unmount invalidates background work started by Mount
func (v *AdminView) Unmount() {
	v.mu.Lock()
	v.gen++
	v.mu.Unlock()
}

// Login exchanges a password for an admin token. Failed attempts are not
// limited. An active session must expire before another login.
func (v *AdminView) Login(ctx context.Context, password string) error {
	v.mu.Lock()
	if v.state == AdminReady {
		v.mu.Unlock()
		return ErrLoggedIn
	}
	v.message = msgVerifying
	gen := v.gen
	v.mu.Unlock()
	v.bus.Publish(ViewAdmin)

	token, err := v.backend.AdminLogin(ctx, password)
	if err != nil {
		msg := msgWrongPassword
		if backend.IsNetwork(err) {
			msg = msgLoginError
		}
		v.mu.Lock()
		v.state = AdminUnauthenticated
		v.message = msg
		v.mu.Unlock()
		v.bus.Publish(ViewAdmin)
		v.log.Info("admin login rejected", "error", err)
		return err
	}

	if err := v.store.SetToken(ctx, session.KindAdmin, token); err != nil {
		v.log.Error("failed to persist admin token", "error", err)
	}

	v.mu.Lock()
	v.state = AdminLoading
	v.message = msgAccessGranted
	v.mu.Unlock()
	v.bus.Publish(ViewAdmin)

	v.load(ctx, gen, token)
	return nil
}

func (v *AdminView) load(ctx context.Context, gen uint64, token string) {
	items, err := v.backend.Equipment(ctx, token)

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		return
	}
	if err != nil {
		if backend.IsAuth(err) {
			v.mu.Unlock()
			v.demote(ctx, msgFetchError)
			return
		}
		// reachable but failing: stay logged in with an empty table
		v.token = token
		v.items = []backend.EquipmentRecord{}
		v.state = AdminReady
		v.message = msgFetchError
		v.mu.Unlock()
		v.bus.Publish(ViewAdmin)
		v.log.Warn("equipment fetch failed", "error", err)
		return
	}
	v.token = token
	v.items = items
	v.state = AdminReady
	v.mu.Unlock()
	v.bus.Publish(ViewAdmin)
}

// demote returns to password entry and discards the admin token
func (v *AdminView) demote(ctx context.Context, message string) {
	if err := v.store.ClearToken(ctx, session.KindAdmin); err != nil {
		v.log.Error("failed to discard admin token", "error", err)
	}
	v.mu.Lock()
	v.state = AdminUnauthenticated
	v.items = nil
	v.token = ""
	v.message = message
	v.mu.Unlock()
	v.bus.Publish(ViewAdmin)
}

// Edit changes the local copy of a row. Counts are clamped to
// total >= 0 and 0 <= available <= total. Nothing is sent to the backend.
func (v *AdminView) Edit(name string, total, available int) (backend.EquipmentRecord, error) {
	v.mu.Lock()
	if v.state != AdminReady {
		v.mu.Unlock()
		return backend.EquipmentRecord{}, ErrUnauthenticated
	}
	i := v.indexOf(name)
	if i < 0 {
		v.mu.Unlock()
		return backend.EquipmentRecord{}, ErrNotFound
	}

	total = max(total, 0)
	available = min(max(available, 0), total)
	v.items[i].Total = total
	v.items[i].Available = available
	item := v.items[i]
	v.mu.Unlock()

	v.bus.Publish(ViewAdmin)
	return item, nil
}

// Update pushes one row's local copy to the backend. On failure the local
// edit is kept.
func (v *AdminView) Update(ctx context.Context, name string) (UpdateResult, error) {
	v.mu.Lock()
	if v.state != AdminReady {
		v.mu.Unlock()
		return UpdateResult{}, ErrUnauthenticated
	}
	if v.busy {
		v.mu.Unlock()
		return UpdateResult{}, ErrBusy
	}
	i := v.indexOf(name)
	if i < 0 {
		v.mu.Unlock()
		return UpdateResult{}, ErrNotFound
	}
	v.busy = true
	item := v.items[i]
	v.mu.Unlock()

	res := v.push(ctx, item)

	v.mu.Lock()
	v.busy = false
	v.mu.Unlock()
	v.bus.Publish(ViewAdmin)
	return res, nil
}

// ApplyAll pushes every row in order, one at a time. A failing row does not
// stop the rest; the report lists each row's outcome.
func (v *AdminView) ApplyAll(ctx context.Context) (BatchReport, error) {
	v.mu.Lock()
	if v.state != AdminReady {
		v.mu.Unlock()
		return BatchReport{}, ErrUnauthenticated
	}
	if v.busy {
		v.mu.Unlock()
		return BatchReport{}, ErrBusy
	}
	v.busy = true
	v.message = msgApplying
	rows := append([]backend.EquipmentRecord(nil), v.items...)
	v.mu.Unlock()
	v.bus.Publish(ViewAdmin)

	report := BatchReport{Results: make([]UpdateResult, 0, len(rows))}
	for _, item := range rows {
		res := v.push(ctx, item)
		report.Results = append(report.Results, res)
		if res.OK {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	v.mu.Lock()
	v.busy = false
	if v.state == AdminReady {
		if report.Failed == 0 {
			v.message = msgAllApplied
		} else {
			v.message = fmt.Sprintf("⚠️ %d of %d updates failed", report.Failed, len(rows))
		}
	}
	v.mu.Unlock()
	v.bus.Publish(ViewAdmin)
	return report, nil
}

func (v *AdminView) push(ctx context.Context, item backend.EquipmentRecord) UpdateResult {
	res := UpdateResult{Name: item.Name, Total: item.Total, Available: item.Available}

	v.mu.Lock()
	token := v.token
	ready := v.state == AdminReady
	if ready {
		v.message = fmt.Sprintf("Updating %s...", item.Name)
	}
	v.mu.Unlock()

	if !ready {
		res.Error = ErrUnauthenticated.Error()
		res.At = time.Now()
		v.record(res)
		return res
	}
	v.bus.Publish(ViewAdmin)

	err := v.backend.UpdateEquipment(ctx, token, item)
	res.At = time.Now()

	switch {
	case err == nil:
		res.OK = true
		v.setMessage(fmt.Sprintf("✅ %s updated successfully", item.Name))
	case backend.IsAuth(err):
		res.Error = backend.Message(err, "unauthorized")
		v.demote(ctx, msgSessionExpired)
	case backend.IsNetwork(err):
		res.Error = err.Error()
		v.setMessage(fmt.Sprintf("⚠️ Error updating %s", item.Name))
	default:
		msg := backend.Message(err, "update rejected")
		res.Error = msg
		v.setMessage("⚠️ Error: " + msg)
	}

	if !res.OK {
		v.log.Warn("equipment update failed", "name", item.Name, "error", err)
	}
	v.record(res)
	return res
}

func (v *AdminView) record(res UpdateResult) {
	if v.onUpdate != nil {
		v.onUpdate(res)
	}
}

func (v *AdminView) setMessage(msg string) {
	v.mu.Lock()
	v.message = msg
	v.mu.Unlock()
}

func (v *AdminView) indexOf(name string) int {
	for i, it := range v.items {
		if it.Name == name {
			return i
		}
	}
	return -1
}

// Snapshot returns the panel state. Equipment is only included when ready.
func (v *AdminView) Snapshot() AdminSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := AdminSnapshot{
		State:   v.state,
		Message: v.message,
		Busy:    v.busy,
		Items:   []backend.EquipmentRecord{},
	}
	if v.state == AdminReady {
		snap.Items = append(snap.Items, v.items...)
	}
	return snap
}
