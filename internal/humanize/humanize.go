// Package humanize produces the randomized timing and pointer motion used to make
// browser automation look less mechanical.
package humanize

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Point is a viewport coordinate in CSS pixels.
type Point struct {
	X, Y float64
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Humanizer is safe for concurrent use.
type Humanizer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
}

type Option func(*Humanizer)

// WithSeed makes the random stream reproducible.
func WithSeed(seed int64) Option {
	return func(h *Humanizer) {
		h.rng = rand.New(rand.NewSource(seed))
	}
}

// WithSleep replaces the real sleeper, mostly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(h *Humanizer) {
		h.sleep = fn
	}
}

// New creates a Humanizer seeded from the clock unless WithSeed is given.
func New(opts ...Option) *Humanizer {
	h := &Humanizer{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: Sleep,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NoSleep returns immediately unless ctx is already done.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Sleep waits for d, returning early with ctx.Err() on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Intn returns a random int in [0, n). n <= 0 yields 0.
func (h *Humanizer) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Intn(n)
}

// Float64 returns a random float in [0, 1).
func (h *Humanizer) Float64() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64()
}

// Chance reports true with probability p.
func (h *Humanizer) Chance(p float64) bool {
	return h.Float64() < p
}

// Between returns a uniformly random duration in [min, max].
func (h *Humanizer) Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return min + time.Duration(h.rng.Int63n(int64(max-min)+1))
}

// Pause sleeps for a random duration in [min, max].
func (h *Humanizer) Pause(ctx context.Context, min, max time.Duration) error {
	return h.sleep(ctx, h.Between(min, max))
}

// Wait sleeps for exactly d through the configured sleeper.
func (h *Humanizer) Wait(ctx context.Context, d time.Duration) error {
	return h.sleep(ctx, d)
}

// KeyDelay is the gap between two typed characters.
func (h *Humanizer) KeyDelay() time.Duration {
	return h.Between(50*time.Millisecond, 100*time.Millisecond)
}

// ShortPause is the small gap between two UI actions.
func (h *Humanizer) ShortPause(ctx context.Context) error {
	return h.Pause(ctx, 300*time.Millisecond, 900*time.Millisecond)
}

// ScrollStep returns a scroll distance in pixels for one smooth-scroll increment.
func (h *Humanizer) ScrollStep() int {
	return 250 + h.Intn(450)
}

// Jitter returns p moved by up to radius pixels in each direction.
func (h *Humanizer) Jitter(p Point, radius float64) Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Point{
		X: p.X + (h.rng.Float64()*2-1)*radius,
		Y: p.Y + (h.rng.Float64()*2-1)*radius,
	}
}

// Path returns a curved pointer trajectory from start to end with the given number
// of intermediate steps. The last point is always end.
func (h *Humanizer) Path(start, end Point, steps int) []Point {
	if steps < 1 {
		steps = 1
	}

	dx, dy := end.X-start.X, end.Y-start.Y
	dist := math.Hypot(dx, dy)

	// Two control points offset perpendicular to the straight line.
	h.mu.Lock()
	spread := dist * (0.1 + h.rng.Float64()*0.2)
	c1 := Point{
		X: start.X + dx*0.3 + (h.rng.Float64()*2-1)*spread,
		Y: start.Y + dy*0.3 + (h.rng.Float64()*2-1)*spread,
	}
	c2 := Point{
		X: start.X + dx*0.7 + (h.rng.Float64()*2-1)*spread,
		Y: start.Y + dy*0.7 + (h.rng.Float64()*2-1)*spread,
	}
	h.mu.Unlock()

	points := make([]Point, 0, steps)
	for i := 1; i <= steps; i++ {
		t := easeInOut(float64(i) / float64(steps))
		points = append(points, cubicBezier(start, c1, c2, end, t))
	}
	points[len(points)-1] = end
	return points
}

func cubicBezier(p0, p1, p2, p3 Point, t float64) Point {
	u := 1 - t
	a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

func easeInOut(t float64) float64 {
	return t * t * (3 - 2*t)
}
