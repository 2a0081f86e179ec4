package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(cfg Config) (*Breaker, *clock) {
	c := &clock{now: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	cfg.Now = c.Now
	return New(cfg), c
}

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	b := New(Config{})
	if b.cfg.MaxFailures != DefaultMaxFailures || b.cfg.Cooldown != DefaultCooldown || b.cfg.Probes != DefaultProbes {
		t.Errorf("defaults = %+v", b.cfg)
	}
	if b.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", b.State())
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(Config{MaxFailures: 3, Cooldown: time.Minute})

	for i := range 3 {
		if err := b.Do(fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want errBoom", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen", err)
	}
	if called {
		t.Error("open breaker called fn")
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(Config{MaxFailures: 3})

	_ = b.Do(fail)
	_ = b.Do(fail)
	_ = b.Do(succeed)
	_ = b.Do(fail)
	_ = b.Do(fail)
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed: the success should have reset the count", b.State())
	}
}

func TestBreaker_IsFailure(t *testing.T) {
	t.Parallel()
	errUser := errors.New("not found")
	b, _ := newTestBreaker(Config{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return err != nil && !errors.Is(err, errUser) },
	})

	if err := b.Do(func() error { return errUser }); !errors.Is(err, errUser) {
		t.Fatalf("err = %v, want the call's own error", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %v, ignored errors must not open the breaker", b.State())
	}
	_ = b.Do(fail)
	if b.State() != StateOpen {
		t.Errorf("state = %v, want open", b.State())
	}
}

func TestBreaker_HalfOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		probes []func() error
		want   State
	}{
		{name: "probes succeed", probes: []func() error{succeed, succeed}, want: StateClosed},
		{name: "probe fails", probes: []func() error{succeed, fail}, want: StateOpen},
		{name: "first probe fails", probes: []func() error{fail}, want: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, c := newTestBreaker(Config{MaxFailures: 1, Cooldown: time.Minute, Probes: 2})
			_ = b.Do(fail)

			c.Advance(59 * time.Second)
			if b.State() != StateOpen {
				t.Fatalf("state before cooldown = %v, want open", b.State())
			}
			c.Advance(time.Second)
			if b.State() != StateHalfOpen {
				t.Fatalf("state after cooldown = %v, want half-open", b.State())
			}

			for _, p := range tt.probes {
				_ = b.Do(p)
			}
			if b.State() != tt.want {
				t.Errorf("state = %v, want %v", b.State(), tt.want)
			}
		})
	}
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	t.Parallel()
	b, c := newTestBreaker(Config{MaxFailures: 1, Cooldown: time.Second, Probes: 1})
	_ = b.Do(fail)
	c.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Do(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := b.Do(succeed); !errors.Is(err, ErrOpen) {
		t.Errorf("second probe err = %v, want ErrOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_OnStateChange(t *testing.T) {
	t.Parallel()
	var (
		mu    sync.Mutex
		trail []string
	)
	b, c := newTestBreaker(Config{
		Name:        "cdn.example",
		MaxFailures: 1,
		Cooldown:    time.Second,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			defer mu.Unlock()
			trail = append(trail, name+":"+from.String()+">"+to.String())
		},
	})

	_ = b.Do(fail)
	c.Advance(time.Second)
	_ = b.Do(succeed)
	_ = b.Do(fail)
	b.Reset()

	want := []string{
		"cdn.example:closed>open",
		"cdn.example:open>half-open",
		"cdn.example:half-open>closed",
		"cdn.example:closed>open",
		"cdn.example:open>closed",
	}
	mu.Lock()
	defer mu.Unlock()
	if len(trail) != len(want) {
		t.Fatalf("transitions = %v, want %v", trail, want)
	}
	for i := range want {
		if trail[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, trail[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	for s, want := range map[State]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown"} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
