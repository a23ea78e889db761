package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccugym/gymdash/internal/metrics"
)

type count struct {
	PeopleInGym int `json:"people_in_gym"`
}

type recorder[T any] struct {
	mu   sync.Mutex
	seen []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, v)
}

func (r *recorder[T]) values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.seen...)
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Config[int]{Interval: 0, Fetch: func(context.Context) (int, error) { return 0, nil }, Key: JSONKey[int]})
	assert.Error(t, err)

	_, err = New(Config[int]{Interval: time.Second, Key: JSONKey[int]})
	assert.Error(t, err)

	_, err = New(Config[int]{Interval: time.Second, Fetch: func(context.Context) (int, error) { return 0, nil }})
	assert.Error(t, err)
}

func TestFetcher_IdenticalPayloadsNotifyOnce(t *testing.T) {
	var calls atomic.Int32
	rec := &recorder[count]{}

	f, err := New(Config[count]{
		Name:     "gym-count",
		Interval: 5 * time.Millisecond,
		Fetch: func(context.Context) (count, error) {
			calls.Add(1)
			return count{PeopleInGym: 7}, nil
		},
		Key:      JSONKey[count],
		OnChange: rec.add,
	})
	require.NoError(t, err)

	f.Start(context.Background())
	assert.Eventually(t, func() bool { return calls.Load() >= 4 }, time.Second, time.Millisecond)
	f.Stop()

	assert.Equal(t, []count{{PeopleInGym: 7}}, rec.values())
	latest, ok := f.Latest()
	assert.True(t, ok)
	assert.Equal(t, 7, latest.PeopleInGym)
}

func TestFetcher_NotifiesOnChange(t *testing.T) {
	var calls atomic.Int32
	rec := &recorder[count]{}

	f, err := New(Config[count]{
		Name:     "gym-count",
		Interval: 5 * time.Millisecond,
		Fetch: func(context.Context) (count, error) {
			n := calls.Add(1)
			if n < 3 {
				return count{PeopleInGym: 7}, nil
			}
			return count{PeopleInGym: 8}, nil
		},
		Key:      JSONKey[count],
		OnChange: rec.add,
	})
	require.NoError(t, err)

	f.Start(context.Background())
	assert.Eventually(t, func() bool { return len(rec.values()) == 2 }, time.Second, time.Millisecond)
	f.Stop()

	assert.Equal(t, []count{{7}, {8}}, rec.values())
}

func TestFetcher_ErrorsAreSkipped(t *testing.T) {
	var calls atomic.Int32
	rec := &recorder[count]{}

	f, err := New(Config[count]{
		Name:     "gym-count",
		Interval: 5 * time.Millisecond,
		Fetch: func(context.Context) (count, error) {
			if calls.Add(1) == 1 {
				return count{}, errors.New("connection refused")
			}
			return count{PeopleInGym: 3}, nil
		},
		Key:      JSONKey[count],
		OnChange: rec.add,
	})
	require.NoError(t, err)

	f.Start(context.Background())
	assert.Eventually(t, func() bool { return len(rec.values()) == 1 }, time.Second, time.Millisecond)
	f.Stop()

	assert.Equal(t, []count{{3}}, rec.values())
	st := f.Status()
	assert.Empty(t, st.LastError)
	assert.False(t, st.Running)
	assert.False(t, st.LastSuccess.IsZero())
}

func TestFetcher_StaleResponseDiscarded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	rec := &recorder[string]{}

	release := make(chan struct{})
	var calls atomic.Int32

	f, err := New(Config[string]{
		Name:     "equipment",
		Interval: 5 * time.Millisecond,
		Fetch: func(context.Context) (string, error) {
			if calls.Add(1) == 1 {
				<-release
				return "old", nil
			}
			return "new", nil
		},
		Key:      JSONKey[string],
		OnChange: rec.add,
		Metrics:  m,
	})
	require.NoError(t, err)

	f.Start(context.Background())
	assert.Eventually(t, func() bool { return len(rec.values()) == 1 }, time.Second, time.Millisecond)

	close(release)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.PollResults.WithLabelValues("equipment", metrics.PollStale)) == 1
	}, time.Second, time.Millisecond)
	f.Stop()

	assert.Equal(t, []string{"new"}, rec.values())
	latest, _ := f.Latest()
	assert.Equal(t, "new", latest)
}

func TestFetcher_ApplyOrdering(t *testing.T) {
	rec := &recorder[int]{}
	f, err := New(Config[int]{
		Name:     "direct",
		Interval: time.Hour,
		Fetch:    func(context.Context) (int, error) { return 0, nil },
		Key:      JSONKey[int],
		OnChange: rec.add,
	})
	require.NoError(t, err)

	f.apply(2, 20, nil)
	f.apply(1, 10, nil)
	f.apply(3, 20, nil)
	f.apply(4, 40, nil)

	assert.Equal(t, []int{20, 40}, rec.values())
	assert.Equal(t, uint64(4), f.Status().Applied)
}

func TestFetcher_StopDropsInflight(t *testing.T) {
	rec := &recorder[int]{}
	release := make(chan struct{})

	f, err := New(Config[int]{
		Name:     "slow",
		Interval: time.Hour,
		Fetch: func(context.Context) (int, error) {
			<-release
			return 1, nil
		},
		Key:      JSONKey[int],
		OnChange: rec.add,
	})
	require.NoError(t, err)

	f.Start(context.Background())
	f.Stop()
	close(release)
	f.inflight.Wait()

	assert.Empty(t, rec.values())
	_, ok := f.Latest()
	assert.False(t, ok)
}

func TestFetcher_StopHaltsTicks(t *testing.T) {
	var calls atomic.Int32
	f, err := New(Config[int]{
		Name:     "ticks",
		Interval: 2 * time.Millisecond,
		Fetch: func(context.Context) (int, error) {
			return int(calls.Add(1)), nil
		},
		Key: JSONKey[int],
	})
	require.NoError(t, err)

	f.Start(context.Background())
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	f.Stop()
	f.inflight.Wait()

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load())

	// a stopped fetcher stays stopped
	f.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}

func TestBytesKey(t *testing.T) {
	a, _ := BytesKey([]byte{0x89, 0x50, 0x00})
	b, _ := BytesKey([]byte{0x89, 0x50, 0x00})
	c, _ := BytesKey([]byte{0x89, 0x50, 0x01})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
