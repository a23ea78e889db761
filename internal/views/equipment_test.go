package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccugym/gymdash/internal/backend"
)

func TestGroupBySection(t *testing.T) {
	groups := GroupBySection([]backend.EquipmentRecord{
		{Name: "Treadmill", Section: backend.SectionCardio, Total: 6, Available: 3},
		{Name: "Squat Rack", Section: backend.SectionWeight, Total: 2, Available: 0},
		{Name: "Rower", Section: backend.SectionCardio, Total: 2, Available: 2},
		{Name: "Sauna", Section: "Spa", Total: 1, Available: 1},
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "Cardio Equipment", groups[0].Title)
	assert.Equal(t, "Weight Equipment", groups[1].Title)

	require.Len(t, groups[0].Rows, 2)
	assert.Equal(t, "Treadmill", groups[0].Rows[0].Name)
	assert.Equal(t, "3/6 available", groups[0].Rows[0].Status)
	assert.True(t, groups[0].Rows[0].InStock)
	assert.Equal(t, "Rower", groups[0].Rows[1].Name)

	require.Len(t, groups[1].Rows, 1)
	assert.False(t, groups[1].Rows[0].InStock)
}

func TestGroupBySection_Empty(t *testing.T) {
	groups := GroupBySection(nil)
	require.Len(t, groups, 2)
	assert.Empty(t, groups[0].Rows)
	assert.NotNil(t, groups[0].Rows)
}

func TestEquipmentView_UnchangedDataRendersOnce(t *testing.T) {
	env := newTestEnv(t)
	events, unsubscribe := env.bus.Subscribe(64)
	defer unsubscribe()

	v := NewEquipmentView(env.client, testInterval, nil, env.bus)
	require.NoError(t, v.Mount(t.Context()))
	t.Cleanup(v.Unmount)

	require.Eventually(t, func() bool {
		s := v.Snapshot()
		return s.Loaded && s.PeopleInGym == 7
	}, 2*time.Second, 5*time.Millisecond)

	// several more polls return the same payloads
	require.Eventually(t, func() bool {
		return env.gym.count("/api/gym-count") >= 4
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, drain(events, ViewEquipment), "one render per poller")

	env.gym.set(func(g *fakeGym) { g.people = 9 })
	require.Eventually(t, func() bool {
		return v.Snapshot().PeopleInGym == 9
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "People in Gym: 9", v.Snapshot().PeopleLabel)
}

func TestEquipmentView_UnmountStopsPolling(t *testing.T) {
	env := newTestEnv(t)
	v := NewEquipmentView(env.client, testInterval, nil, env.bus)
	require.NoError(t, v.Mount(t.Context()))

	require.Eventually(t, func() bool { return v.Snapshot().Loaded }, 2*time.Second, 5*time.Millisecond)
	v.Unmount()

	// allow a request that was already in flight to land
	time.Sleep(testInterval)
	calls := env.gym.count("/api/equipment")
	time.Sleep(5 * testInterval)
	assert.Equal(t, calls, env.gym.count("/api/equipment"))
}

func TestEquipmentView_RemountReportsAgain(t *testing.T) {
	env := newTestEnv(t)
	events, unsubscribe := env.bus.Subscribe(64)
	defer unsubscribe()

	v := NewEquipmentView(env.client, testInterval, nil, env.bus)
	require.NoError(t, v.Mount(t.Context()))
	require.Eventually(t, func() bool { return v.Snapshot().Loaded }, 2*time.Second, 5*time.Millisecond)
	v.Unmount()
	time.Sleep(testInterval)
	drain(events, ViewEquipment)

	require.NoError(t, v.Mount(t.Context()))
	t.Cleanup(v.Unmount)
	require.Eventually(t, func() bool {
		return drain(events, ViewEquipment) > 0
	}, 2*time.Second, 5*time.Millisecond)
}
