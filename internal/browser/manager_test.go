package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

type fakeChrome struct {
	mu       sync.Mutex
	connects int
	releases int
	healthy  bool
	failWith error
}

func newFakeManager(fc *fakeChrome) *Manager {
	m := NewManager(DefaultConfig())
	m.connect = func(ctx context.Context, cfg Config) (*rod.Browser, *launcher.Launcher, error) {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		if fc.failWith != nil {
			return nil, nil, fc.failWith
		}
		fc.connects++
		return rod.New(), nil, nil
	}
	m.alive = func(*rod.Browser) bool {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return fc.healthy
	}
	m.release = func(*rod.Browser, *launcher.Launcher) error {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		fc.releases++
		return nil
	}
	return m
}

func TestAcquireIsLazyAndShared(t *testing.T) {
	fc := &fakeChrome{healthy: true}
	m := newFakeManager(fc)

	if m.Started() {
		t.Fatal("browser should not start before Acquire")
	}

	var wg sync.WaitGroup
	handles := make([]*rod.Browser, 8)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := m.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire: %v", err)
			}
			handles[i] = b
		}(i)
	}
	wg.Wait()

	if fc.connects != 1 {
		t.Fatalf("expected one connect, got %d", fc.connects)
	}
	for _, h := range handles[1:] {
		if h != handles[0] {
			t.Fatal("concurrent acquirers should share one handle")
		}
	}
}

func TestAcquireReconnectsStaleBrowser(t *testing.T) {
	fc := &fakeChrome{healthy: true}
	m := newFakeManager(fc)

	first, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	fc.healthy = false
	second, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after stale: %v", err)
	}
	if first == second {
		t.Error("expected a fresh handle after a failed health check")
	}
	if fc.connects != 2 || fc.releases != 1 {
		t.Errorf("connects=%d releases=%d, want 2 and 1", fc.connects, fc.releases)
	}
}

func TestAcquireConnectError(t *testing.T) {
	boom := errors.New("no chrome")
	m := newFakeManager(&fakeChrome{failWith: boom})

	if _, err := m.Acquire(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected connect error, got %v", err)
	}
	if m.Started() {
		t.Error("failed connect must not leave a handle behind")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	fc := &fakeChrome{healthy: true}
	m := newFakeManager(fc)

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown before start: %v", err)
	}

	m = newFakeManager(fc)
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := m.Shutdown(); err != nil {
			t.Fatalf("Shutdown #%d: %v", i, err)
		}
	}
	if fc.releases != 1 {
		t.Errorf("browser released %d times, want 1", fc.releases)
	}
	if _, err := m.Acquire(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Errorf("Acquire after Shutdown = %v, want ErrShutdown", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	if c.GetViewportWidth() != 1280 || c.GetViewportHeight() != 800 {
		t.Errorf("unexpected viewport defaults %dx%d", c.GetViewportWidth(), c.GetViewportHeight())
	}
	if c.NavigationTimeout() != 20*time.Second {
		t.Errorf("unexpected navigation timeout %v", c.NavigationTimeout())
	}
	c.NavigationTimeoutMs = 1500
	if c.NavigationTimeout() != 1500*time.Millisecond {
		t.Errorf("unexpected navigation timeout %v", c.NavigationTimeout())
	}
	if !DefaultConfig().Headless {
		t.Error("default config should be headless")
	}
}
