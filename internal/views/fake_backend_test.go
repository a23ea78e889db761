package views

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ccugym/gymdash/internal/backend"
	"github.com/ccugym/gymdash/internal/session"
)

const (
	testInterval   = 20 * time.Millisecond
	testAdminToken = "admin-tok"
	testPassword   = "letmein"
)

// fakeGym is an in-process gym backend
type fakeGym struct {
	mu          sync.Mutex
	people      int
	equipment   []backend.EquipmentRecord
	image       []byte
	proTokens   map[string]bool
	codes       map[string]string
	updateFail  map[string]int
	suggestErr  int
	suggestGate chan struct{}

	calls      map[string]int
	updates    []backend.EquipmentRecord
	prompts    []string
	redeemed   []string
	floorQuery []string
}

func newFakeGym() *fakeGym {
	return &fakeGym{
		people: 7,
		equipment: []backend.EquipmentRecord{
			{Name: "Treadmill", Section: backend.SectionCardio, Total: 6, Available: 3},
			{Name: "Bench Press", Section: backend.SectionWeight, Total: 2, Available: 0},
		},
		image:      []byte("frame-1"),
		proTokens:  map[string]bool{},
		codes:      map[string]string{},
		updateFail: map[string]int{},
		calls:      map[string]int{},
	}
}

func (g *fakeGym) count(endpoint string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[endpoint]
}

func (g *fakeGym) set(fn func(g *fakeGym)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (g *fakeGym) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.calls[r.URL.Path]++
	g.mu.Unlock()

	switch r.URL.Path {
	case "/api/validate-token":
		var req struct{ Token string }
		json.NewDecoder(r.Body).Decode(&req)
		g.mu.Lock()
		pro := g.proTokens[req.Token]
		g.mu.Unlock()
		switch {
		case pro:
			reply(w, http.StatusOK, map[string]any{"valid": true, "type": "pro"})
		case req.Token == testAdminToken:
			reply(w, http.StatusOK, map[string]any{"valid": true, "user_id": backend.AdminUserID})
		default:
			reply(w, http.StatusOK, map[string]any{"valid": false})
		}

	case "/api/gym-count":
		g.mu.Lock()
		n := g.people
		g.mu.Unlock()
		reply(w, http.StatusOK, map[string]int{"people_in_gym": n})

	case "/api/equipment":
		g.mu.Lock()
		items := append([]backend.EquipmentRecord(nil), g.equipment...)
		g.mu.Unlock()
		reply(w, http.StatusOK, items)

	case "/api/equipment/update":
		if r.Header.Get("Authorization") != "Bearer "+testAdminToken {
			reply(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		var rec backend.EquipmentRecord
		json.NewDecoder(r.Body).Decode(&rec)
		g.mu.Lock()
		status := g.updateFail[rec.Name]
		g.updates = append(g.updates, rec)
		g.mu.Unlock()
		if status != 0 {
			reply(w, status, map[string]string{"error": "Cannot update " + rec.Name})
			return
		}
		reply(w, http.StatusOK, map[string]string{})

	case "/api/gym-floor":
		g.mu.Lock()
		img := append([]byte(nil), g.image...)
		g.floorQuery = append(g.floorQuery, r.URL.Query().Get("width")+"x"+r.URL.Query().Get("height"))
		g.mu.Unlock()
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)

	case "/api/ai-suggestions":
		var req struct{ Prompt string }
		json.NewDecoder(r.Body).Decode(&req)
		g.mu.Lock()
		g.prompts = append(g.prompts, req.Prompt)
		gate, failStatus := g.suggestGate, g.suggestErr
		g.mu.Unlock()
		if gate != nil {
			<-gate
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		g.mu.Lock()
		pro := g.proTokens[token]
		g.mu.Unlock()
		switch {
		case !pro:
			reply(w, http.StatusForbidden, map[string]string{"error": "Pro access required"})
		case failStatus != 0:
			reply(w, failStatus, map[string]string{"error": "quota exceeded"})
		default:
			reply(w, http.StatusOK, map[string]string{"suggestion": "Try the treadmill: " + req.Prompt})
		}

	case "/api/admin/login":
		var req struct{ Password string }
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != testPassword {
			reply(w, http.StatusUnauthorized, map[string]string{"error": "Invalid password"})
			return
		}
		reply(w, http.StatusOK, map[string]string{"token": testAdminToken})

	case "/api/pro/upgrade":
		var req struct{ Code string }
		json.NewDecoder(r.Body).Decode(&req)
		g.mu.Lock()
		g.redeemed = append(g.redeemed, req.Code)
		token, ok := g.codes[req.Code]
		if ok {
			g.proTokens[token] = true
		}
		g.mu.Unlock()
		if !ok {
			reply(w, http.StatusOK, map[string]any{"success": false, "error": "Invalid or expired code"})
			return
		}
		reply(w, http.StatusOK, map[string]any{"success": true, "token": token})

	default:
		http.NotFound(w, r)
	}
}

type testEnv struct {
	gym    *fakeGym
	srv    *httptest.Server
	client *backend.Client
	kv     *session.MemoryKV
	store  *session.Store
	bus    *Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gym := newFakeGym()
	srv := httptest.NewServer(gym)
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL, 2*time.Second, nil)
	kv := session.NewMemoryKV()
	return &testEnv{
		gym:    gym,
		srv:    srv,
		client: client,
		kv:     kv,
		store:  session.NewStore(kv, client, nil),
		bus:    NewBus(),
	}
}

// unreachable returns a client whose every call fails at the transport
func unreachable(t *testing.T) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return backend.NewClient(url, time.Second, nil)
}

func (e *testEnv) storedToken(t *testing.T, kind session.Kind) string {
	t.Helper()
	token, _, err := e.store.LoadToken(t.Context(), kind)
	require.NoError(t, err)
	return token
}

// drain counts the buffered events for view
func drain(ch <-chan Event, view string) int {
	n := 0
	for {
		select {
		case ev := <-ch:
			if ev.View == view {
				n++
			}
		default:
			return n
		}
	}
}
