package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-training/integration-broker/pkg/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore()
	s.now = clock.Now
	return s, clock
}

func TestNewMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	if s == nil {
		t.Fatal("NewMemoryStore() returned nil")
	}
	if s.entries == nil {
		t.Error("entries map should be initialized")
	}
}

func TestMemoryStore_Set(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		ttl     time.Duration
		wantErr error
	}{
		{
			name: "valid entry",
			key:  "state:hubspot:org:user",
			ttl:  600 * time.Second,
		},
		{
			name:    "empty key",
			key:     "",
			ttl:     time.Second,
			wantErr: ErrEmptyKey,
		},
		{
			name:    "zero ttl",
			key:     "k",
			ttl:     0,
			wantErr: ErrInvalidTTL,
		},
		{
			name:    "negative ttl",
			key:     "k",
			ttl:     -time.Second,
			wantErr: ErrInvalidTTL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore()
			ctx := context.Background()

			err := s.Set(ctx, tt.key, "value", tt.ttl)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Set() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			got, err := s.Get(ctx, tt.key)
			if err != nil {
				t.Fatalf("Get() after Set() failed: %v", err)
			}
			if got != "value" {
				t.Errorf("Get() = %q, want %q", got, "value")
			}
		})
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, core.ErrKeyNotFound) {
		t.Errorf("Get() error = %v, want %v", err, core.ErrKeyNotFound)
	}

	_, err = s.Get(context.Background(), "")
	if !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Get() error = %v, want %v", err, ErrEmptyKey)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	s, clock := newClockedStore()
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v", 600*time.Second); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	clock.Advance(599 * time.Second)
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("Get() before expiry failed: %v", err)
	}

	clock.Advance(time.Second)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Errorf("Get() after expiry error = %v, want %v", err, core.ErrKeyNotFound)
	}
	if _, err := s.GetDel(ctx, "k"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Errorf("GetDel() after expiry error = %v, want %v", err, core.ErrKeyNotFound)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Set(ctx, "k", "v", time.Minute)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Errorf("Get() after Delete() error = %v, want %v", err, core.ErrKeyNotFound)
	}

	// Deleting again is a no-op.
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
	if err := s.Delete(ctx, ""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Delete(\"\") error = %v, want %v", err, ErrEmptyKey)
	}
}

func TestMemoryStore_GetDel(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Set(ctx, "cred", "token", time.Minute)

	got, err := s.GetDel(ctx, "cred")
	if err != nil {
		t.Fatalf("GetDel() failed: %v", err)
	}
	if got != "token" {
		t.Errorf("GetDel() = %q, want %q", got, "token")
	}

	if _, err := s.GetDel(ctx, "cred"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Errorf("second GetDel() error = %v, want %v", err, core.ErrKeyNotFound)
	}
}

func TestMemoryStore_GetDelSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Set(ctx, "cred", "token", time.Minute)

	var winners, losers atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.GetDel(ctx, "cred"); err == nil {
				winners.Add(1)
			} else if errors.Is(err, core.ErrKeyNotFound) {
				losers.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("GetDel() winners = %d, want 1", winners.Load())
	}
	if losers.Load() != 49 {
		t.Errorf("GetDel() losers = %d, want 49", losers.Load())
	}
}

func TestMemoryStore_Cleanup(t *testing.T) {
	s, clock := newClockedStore()
	ctx := context.Background()

	_ = s.Set(ctx, "short", "v", time.Second)
	_ = s.Set(ctx, "long", "v", time.Hour)

	clock.Advance(time.Minute)
	if removed := s.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() removed = %d, want 1", removed)
	}
	if n := s.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}
