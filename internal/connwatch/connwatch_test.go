package connwatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func fastBackoff() Backoff {
	return Backoff{
		Initial: time.Millisecond,
		Max:     4 * time.Millisecond,
		Poll:    time.Millisecond,
		Timeout: time.Second,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestManager_RecoversAfterFailures(t *testing.T) {
	var calls atomic.Int32
	probe := func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("connection refused")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(nil, nil)
	m.Watch(ctx, "ollama", probe, fastBackoff())

	waitFor(t, func() bool {
		st := m.Status()
		return len(st) == 1 && st[0].Ready
	})
	st := m.Status()[0]
	if st.Name != "ollama" || st.LastError != "" || st.LastCheck.IsZero() {
		t.Errorf("status = %+v", st)
	}

	cancel()
	m.Wait()
}

func TestManager_ReportsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(nil, nil)
	m.Watch(ctx, "homeassistant", func(context.Context) error { return nil }, fastBackoff())
	m.Watch(ctx, "mqtt", func(context.Context) error { return errors.New("no route to host") }, fastBackoff())

	waitFor(t, func() bool {
		st := m.Status()
		return len(st) == 2 && !st[0].LastCheck.IsZero() && !st[1].LastCheck.IsZero()
	})
	st := m.Status()
	if st[0].Name != "homeassistant" || !st[0].Ready {
		t.Errorf("first status = %+v", st[0])
	}
	if st[1].Name != "mqtt" || st[1].Ready || st[1].LastError != "no route to host" {
		t.Errorf("second status = %+v", st[1])
	}

	cancel()
	m.Wait()
}

func TestBackoffDefaults(t *testing.T) {
	b := Backoff{Initial: 90 * time.Second}.withDefaults()
	if b.Max != 90*time.Second {
		t.Errorf("Max = %v, want it raised to Initial", b.Max)
	}
	if b.Poll != DefaultBackoff().Poll || b.Timeout != DefaultBackoff().Timeout {
		t.Errorf("defaults not applied: %+v", b)
	}
}
