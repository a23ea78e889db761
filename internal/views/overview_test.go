package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccugym/gymdash/internal/config"
)

func newOverview(env *testEnv, images *ImageRegistry) *OverviewView {
	return NewOverviewView(env.client, env.store, config.Default().Overview, testInterval, images, nil, env.bus)
}

func TestOverviewView_Resolution(t *testing.T) {
	env := newTestEnv(t)
	v := newOverview(env, NewImageRegistry(nil))

	w, h := v.Resolution(50)
	assert.Equal(t, 960, w)
	assert.Equal(t, 540, h)

	w, h = v.Resolution(100)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	w, h = v.Resolution(3)
	assert.Equal(t, 192, w, "clamped to the minimum")
	assert.Equal(t, 108, h)

	assert.Equal(t, 100, v.ClampPercent(250))
}

func TestOverviewView_AdoptsOnlyChangedFrames(t *testing.T) {
	env := newTestEnv(t)
	images := NewImageRegistry(nil)
	v := newOverview(env, images)

	require.NoError(t, v.Mount(t.Context()))
	t.Cleanup(v.Unmount)

	require.Eventually(t, func() bool { return v.Snapshot().ImageID != "" }, 2*time.Second, 5*time.Millisecond)
	first := v.Snapshot()
	assert.Equal(t, "/overview/image/"+first.ImageID, first.ImageURL)
	assert.False(t, first.Loading)

	require.Eventually(t, func() bool {
		return env.gym.count("/api/gym-floor") >= 4
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, first.ImageID, v.Snapshot().ImageID, "identical bytes keep the handle")
	assert.Equal(t, 1, images.Len())

	env.gym.set(func(g *fakeGym) { g.image = []byte("frame-2") })
	require.Eventually(t, func() bool {
		return v.Snapshot().ImageID != first.ImageID
	}, 2*time.Second, 5*time.Millisecond)

	_, ok := images.Get(first.ImageID)
	assert.False(t, ok, "superseded frame released")
	frame, ok := images.Get(v.Snapshot().ImageID)
	require.True(t, ok)
	assert.Equal(t, []byte("frame-2"), frame.Data)
	assert.Equal(t, "image/png", frame.ContentType)
	assert.Equal(t, 1, images.Len())
}

func TestOverviewView_UnmountReleasesFrame(t *testing.T) {
	env := newTestEnv(t)
	images := NewImageRegistry(nil)
	v := newOverview(env, images)

	require.NoError(t, v.Mount(t.Context()))
	require.Eventually(t, func() bool { return images.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	v.Unmount()
	assert.Equal(t, 0, images.Len())
	assert.True(t, v.Snapshot().Loading)

	// responses still in flight are not adopted
	time.Sleep(3 * testInterval)
	assert.Equal(t, 0, images.Len())
}

func TestOverviewView_SetPercentPersistsAndRefetches(t *testing.T) {
	env := newTestEnv(t)
	v := newOverview(env, NewImageRegistry(nil))

	require.NoError(t, v.Mount(t.Context()))
	t.Cleanup(v.Unmount)

	applied, err := v.SetPercent(t.Context(), 5)
	require.NoError(t, err)
	assert.Equal(t, 10, applied)
	assert.Equal(t, 10, env.store.GymFloorScale(t.Context(), 0))

	require.Eventually(t, func() bool {
		env.gym.mu.Lock()
		defer env.gym.mu.Unlock()
		n := len(env.gym.floorQuery)
		return n > 0 && env.gym.floorQuery[n-1] == "192x108"
	}, 2*time.Second, 5*time.Millisecond)

	snap := v.Snapshot()
	assert.Equal(t, 10, snap.Percent)
	assert.Equal(t, 192, snap.Width)
}

func TestOverviewView_MountRestoresScale(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.SetGymFloorScale(t.Context(), 75))

	v := newOverview(env, NewImageRegistry(nil))
	require.NoError(t, v.Mount(t.Context()))
	t.Cleanup(v.Unmount)

	assert.Equal(t, 75, v.Snapshot().Percent)
	require.Eventually(t, func() bool {
		env.gym.mu.Lock()
		defer env.gym.mu.Unlock()
		return len(env.gym.floorQuery) > 0 && env.gym.floorQuery[0] == "1440x810"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestOverviewView_DropsFramesFromReplacedFetcher(t *testing.T) {
	env := newTestEnv(t)
	images := NewImageRegistry(nil)
	v := newOverview(env, images)

	require.NoError(t, v.Mount(t.Context()))
	t.Cleanup(v.Unmount)
	require.Eventually(t, func() bool { return v.Snapshot().ImageID != "" }, 2*time.Second, 5*time.Millisecond)
	first := v.Snapshot().ImageID

	v.mu.Lock()
	replaced := v.gen
	v.mu.Unlock()

	_, err := v.SetPercent(t.Context(), 80)
	require.NoError(t, err)
	// the new fetcher adopts its first frame even when the bytes match
	require.Eventually(t, func() bool {
		return v.Snapshot().ImageID != first
	}, 2*time.Second, 5*time.Millisecond)
	current := v.Snapshot().ImageID

	// a late answer from the 50% fetcher
	v.adopt(replaced, Frame{Data: []byte("old-resolution"), ContentType: "image/png"})

	assert.Equal(t, current, v.Snapshot().ImageID)
	assert.Equal(t, 1, images.Len())
}
