package views

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ccugym/gymdash/internal/backend"
	"github.com/ccugym/gymdash/internal/config"
	"github.com/ccugym/gymdash/internal/session"
)

type ShellSuite struct {
	suite.Suite
	env   *testEnv
	shell *Shell
}

func TestShellSuite(t *testing.T) {
	suite.Run(t, new(ShellSuite))
}

func (s *ShellSuite) SetupTest() {
	s.env = newTestEnv(s.T())
	cfg := config.Default()
	cfg.Backend.PollInterval = testInterval
	s.shell = NewShell(Deps{
		Backend: s.env.client,
		Store:   s.env.store,
		Config:  *cfg,
		Bus:     s.env.bus,
	})
}

func (s *ShellSuite) TearDownTest() {
	s.shell.Stop()
}

func (s *ShellSuite) start() {
	s.Require().NoError(s.shell.Start(s.T().Context()))
}

func (s *ShellSuite) signedProToken(exp time.Time) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	s.Require().NoError(err)
	return token
}

func tabIDs(st ShellState) []string {
	ids := make([]string, 0, len(st.Tabs))
	for _, t := range st.Tabs {
		ids = append(ids, t.ID)
	}
	return ids
}

func (s *ShellSuite) TestStartWithoutPro() {
	s.start()

	st := s.shell.State()
	s.Equal("CCU Gym", st.Title)
	s.True(st.ShowUpgrade)
	s.Nil(st.ProExpiresAt)
	s.Equal(TabOverview, st.ActiveTab)
	s.Equal([]string{TabOverview, TabList, TabAdmin}, tabIDs(st))
	s.Zero(s.env.gym.count("/api/validate-token"), "no token, nothing to validate")
}

func (s *ShellSuite) TestStartWithPro() {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	token := s.signedProToken(exp)
	s.env.gym.set(func(g *fakeGym) { g.proTokens[token] = true })
	s.Require().NoError(s.env.store.SetToken(s.T().Context(), session.KindPro, token))

	s.start()

	st := s.shell.State()
	s.Equal("CCU Gym Pro", st.Title)
	s.False(st.ShowUpgrade)
	s.Require().NotNil(st.ProExpiresAt)
	s.True(exp.Equal(*st.ProExpiresAt))
	s.Contains(tabIDs(st), TabAI)
}

func (s *ShellSuite) TestInvalidProTokenDiscarded() {
	s.Require().NoError(s.env.store.SetToken(s.T().Context(), session.KindPro, "revoked"))
	s.start()

	s.False(s.shell.IsPro())
	s.Empty(s.env.storedToken(s.T(), session.KindPro))
}

func (s *ShellSuite) TestPersistedAIFallsBackWithoutPro() {
	s.Require().NoError(s.env.store.SetActiveTab(s.T().Context(), TabAI))
	s.start()
	s.Equal(TabOverview, s.shell.ActiveTab())
}

func (s *ShellSuite) TestPersistedTabRestored() {
	s.Require().NoError(s.env.store.SetActiveTab(s.T().Context(), TabList))
	s.start()
	s.Equal(TabList, s.shell.ActiveTab())

	s.Eventually(func() bool {
		return s.shell.Equipment().Snapshot().Loaded
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *ShellSuite) TestSelectTab() {
	s.start()
	ctx := s.T().Context()

	s.Require().NoError(s.shell.SelectTab(ctx, TabList))
	s.Equal(TabList, s.env.store.ActiveTab(ctx))

	s.Require().NoError(s.shell.SelectTab(ctx, TabUpgrade))
	s.Equal(TabUpgrade, s.shell.ActiveTab())
	s.Equal(TabList, s.env.store.ActiveTab(ctx), "upgrade is not persisted")

	s.ErrorIs(s.shell.SelectTab(ctx, TabAI), ErrProRequired)
	s.ErrorIs(s.shell.SelectTab(ctx, "settings"), ErrUnknownTab)
	s.Equal(TabUpgrade, s.shell.ActiveTab())
}

func (s *ShellSuite) TestSelectTabSwapsViews() {
	s.start()
	ctx := s.T().Context()

	s.Eventually(func() bool {
		return s.shell.Images().Len() == 1
	}, 2*time.Second, 5*time.Millisecond)

	s.Require().NoError(s.shell.SelectTab(ctx, TabAdmin))
	s.Equal(0, s.shell.Images().Len(), "overview frame released on unmount")
	s.Equal(AdminUnauthenticated, s.shell.Admin().Snapshot().State)
}

func (s *ShellSuite) TestOccupancyLabel() {
	s.start()
	s.Eventually(func() bool {
		return s.shell.State().Tabs[0].Label == "Overview (7)"
	}, 2*time.Second, 5*time.Millisecond)

	s.env.gym.set(func(g *fakeGym) { g.people = 12 })
	s.Eventually(func() bool {
		return s.shell.State().PeopleInGym == 12
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *ShellSuite) TestToggleDarkMode() {
	s.start()
	ctx := s.T().Context()

	on, err := s.shell.ToggleDarkMode(ctx)
	s.Require().NoError(err)
	s.True(on)
	s.True(s.env.store.DarkMode(ctx))
	s.True(s.shell.State().DarkMode)

	on, err = s.shell.ToggleDarkMode(ctx)
	s.Require().NoError(err)
	s.False(on)
	s.False(s.env.store.DarkMode(ctx))
}

func (s *ShellSuite) TestUpgradeUnlocksAI() {
	s.env.gym.set(func(g *fakeGym) { g.codes["GYM-PRO"] = "pro-from-code" })
	s.start()
	ctx := s.T().Context()

	s.Require().NoError(s.shell.SelectTab(ctx, TabUpgrade))
	snap, err := s.shell.Upgrade().Redeem(ctx, "gym-pro")
	s.Require().NoError(err)
	s.Equal("✅ Pro code applied successfully! You are now a Pro for 2 hours.", snap.Message)

	s.True(s.shell.IsPro())
	s.Equal("CCU Gym Pro", s.shell.State().Title)
	s.Equal(TabOverview, s.shell.ActiveTab(), "upgrade tab left after reload")
	s.Require().NoError(s.shell.SelectTab(ctx, TabAI))

	s.Eventually(func() bool {
		return s.shell.Suggestion().Snapshot().Suggestion != ""
	}, 2*time.Second, 5*time.Millisecond)
	s.Equal(1, s.env.gym.count("/api/ai-suggestions"))
}

func (s *ShellSuite) TestUpgradeReturnsToPersistedTab() {
	s.env.gym.set(func(g *fakeGym) { g.codes["GYM-PRO"] = "pro-from-code" })
	ctx := s.T().Context()
	s.Require().NoError(s.env.store.SetActiveTab(ctx, TabList))
	s.start()

	s.Require().NoError(s.shell.SelectTab(ctx, TabUpgrade))
	_, err := s.shell.Upgrade().Redeem(ctx, "gym-pro")
	s.Require().NoError(err)

	s.Equal(TabList, s.shell.ActiveTab())
	s.Equal(TabList, s.shell.State().ActiveTab)
	s.Eventually(func() bool {
		return s.shell.Equipment().Snapshot().Loaded
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *ShellSuite) TestRefusedProTokenDemotes() {
	ctx := s.T().Context()
	s.env.gym.set(func(g *fakeGym) { g.proTokens[testProToken] = true })
	s.Require().NoError(s.env.store.SetToken(ctx, session.KindPro, testProToken))
	s.start()

	s.Require().NoError(s.shell.SelectTab(ctx, TabAI))
	s.Eventually(func() bool {
		return s.shell.Suggestion().Snapshot().Suggestion != ""
	}, 2*time.Second, 5*time.Millisecond)

	// the token expires at the backend mid-session
	s.env.gym.set(func(g *fakeGym) { delete(g.proTokens, testProToken) })

	snap, err := s.shell.Suggestion().Submit(ctx, "legs")
	s.ErrorIs(err, backend.ErrAuth)
	s.Equal("Pro session expired. Upgrade to continue.", snap.Error)

	s.Empty(s.env.storedToken(s.T(), session.KindPro))
	s.False(s.shell.IsPro())
	s.Equal(TabOverview, s.shell.ActiveTab())
	st := s.shell.State()
	s.NotContains(tabIDs(st), TabAI)
	s.True(st.ShowUpgrade)

	_, err = s.shell.Suggestion().Submit(ctx, "legs")
	s.ErrorIs(err, ErrProRequired)
	s.ErrorIs(s.shell.SelectTab(ctx, TabAI), ErrProRequired)
	s.Equal(2, s.env.gym.count("/api/ai-suggestions"), "refused token never sent again")
}

func TestShell_StartTwice(t *testing.T) {
	env := newTestEnv(t)
	cfg := config.Default()
	sh := NewShell(Deps{Backend: env.client, Store: env.store, Config: *cfg, Bus: env.bus})

	require.NoError(t, sh.Start(t.Context()))
	t.Cleanup(sh.Stop)
	assert.Error(t, sh.Start(t.Context()))
}
