package push

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrtplugins/wrt/internal/apierr"
	"github.com/wrtplugins/wrt/internal/storage"
)

func TestRegister_PersistsAndReuses(t *testing.T) {
	store := storage.NewMemoryStore()
	s := NewService(store, 0)
	ctx := context.Background()

	id, err := s.Register(ctx, "app")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	again, err := s.Register(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	restarted := NewService(store, 0)
	got, ok := restarted.RegistrationID("app")
	assert.True(t, ok)
	assert.Equal(t, id, got)

	apps, err := restarted.Registered()
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, apps)

	require.NoError(t, restarted.Unregister(ctx, "app"))
	assert.Equal(t, apierr.InvalidState, apierr.KindOf(restarted.Unregister(ctx, "app")))
}

func TestRegister_HonoursCancellation(t *testing.T) {
	s := NewService(storage.NewMemoryStore(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Register(ctx, "app")
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := s.RegistrationID("app")
	assert.False(t, ok)
}

// slowStore widens the window between reading and writing a registration.
type slowStore struct {
	storage.Store
}

func (s slowStore) Get(key string) ([]byte, bool, error) {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Get(key)
}

func TestRegister_Concurrent(t *testing.T) {
	for range 10 {
		store := storage.NewMemoryStore()
		s := NewService(slowStore{store}, 0)

		var wg sync.WaitGroup
		ids := make([]string, 4)
		for i := range ids {
			wg.Go(func() {
				id, err := s.Register(context.Background(), "app")
				assert.NoError(t, err)
				ids[i] = id
			})
		}
		wg.Wait()

		stored, ok := s.RegistrationID("app")
		require.True(t, ok)
		for _, id := range ids {
			assert.Equal(t, stored, id)
		}
	}
}

func TestConnect_ConcurrentDeliver(t *testing.T) {
	s := NewService(storage.NewMemoryStore(), 0)
	_, err := s.Register(context.Background(), "app")
	require.NoError(t, err)
	require.NoError(t, s.Deliver("app", "0", ""))

	var mu sync.Mutex
	var got []string
	var wg sync.WaitGroup
	wg.Go(func() {
		for i := 1; i <= 50; i++ {
			assert.NoError(t, s.Deliver("app", strconv.Itoa(i), ""))
		}
	})
	cancel := s.Connect("app", func(m Message) {
		mu.Lock()
		got = append(got, m.AppData)
		mu.Unlock()
	})
	defer cancel()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	want := make([]string, 51)
	for i := range want {
		want[i] = strconv.Itoa(i)
	}
	assert.Equal(t, want, got)
}

func TestDeliver(t *testing.T) {
	s := NewService(storage.NewMemoryStore(), 0)
	assert.Equal(t, apierr.NotFound, apierr.KindOf(s.Deliver("app", "x", "")))

	_, err := s.Register(context.Background(), "app")
	require.NoError(t, err)

	require.NoError(t, s.Deliver("app", "early", ""))

	var got []string
	cancel := s.Connect("app", func(m Message) { got = append(got, m.AppData) })
	require.NoError(t, s.Deliver("app", "live", "alert"))
	cancel()
	require.NoError(t, s.Deliver("app", "late", ""))

	assert.Equal(t, []string{"early", "live"}, got)
}
