// Package pool provides a generic object pool for transient per-pass
// objects such as command buffers.
//
// Unlike sync.Pool, a Pool never drops idle instances behind the caller's
// back, reuses them in LIFO order and counts what it hands out, so a
// checkout leaked across a frame shows up as pool growth.
//
// Usage:
//
//	buffers := pool.New(cmdbuf.New, pool.WithReset((*cmdbuf.Buffer).Reset))
//	buf := buffers.Get()
//	defer buffers.Release(buf)
//	// record into buf...
package pool

// Pool is a LIFO pool of reusable T values.
//
// Pool is not safe for concurrent use. Get and Release run on the
// rendering goroutine; callers that need to share a pool across
// goroutines must serialize access themselves.
type Pool[T any] struct {
	available []T
	factory   func() T
	onGet     func(T)
	onRelease func(T)
	maxIdle   int

	created int
	dropped int
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithReset sets the action applied to an instance when it is returned to
// the pool.
func WithReset[T any](fn func(T)) Option[T] {
	return func(p *Pool[T]) {
		p.onRelease = fn
	}
}

// WithOnGet sets an action applied to every instance handed out by Get.
func WithOnGet[T any](fn func(T)) Option[T] {
	return func(p *Pool[T]) {
		p.onGet = fn
	}
}

// WithMaxIdle bounds the number of idle instances kept. Instances
// released into a full pool are reset and dropped. Zero means unbounded.
func WithMaxIdle[T any](n int) Option[T] {
	return func(p *Pool[T]) {
		p.maxIdle = max(n, 0)
	}
}

// New creates a pool that builds instances with factory when empty.
func New[T any](factory func() T, opts ...Option[T]) *Pool[T] {
	p := &Pool[T]{factory: factory}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns an idle instance, or a new one from the factory if none is
// idle. The caller owns the instance until it calls Release.
func (p *Pool[T]) Get() T {
	var v T
	if n := len(p.available); n > 0 {
		v = p.available[n-1]
		var zero T
		p.available[n-1] = zero
		p.available = p.available[:n-1]
	} else {
		v = p.factory()
		p.created++
	}
	if p.onGet != nil {
		p.onGet(v)
	}
	return v
}

// Release resets v and makes it available to the next Get. Releasing a
// value not obtained from this pool, or releasing it twice, is a caller
// error that the pool does not detect.
func (p *Pool[T]) Release(v T) {
	if p.onRelease != nil {
		p.onRelease(v)
	}
	if p.maxIdle > 0 && len(p.available) >= p.maxIdle {
		p.dropped++
		return
	}
	p.available = append(p.available, v)
}

// Warmup makes sure at least n instances are idle so that the first
// frames do not allocate.
func (p *Pool[T]) Warmup(n int) {
	for len(p.available) < n {
		if p.maxIdle > 0 && len(p.available) >= p.maxIdle {
			return
		}
		p.available = append(p.available, p.factory())
		p.created++
	}
}

// CountAll returns the number of instances the factory has built.
func (p *Pool[T]) CountAll() int {
	return p.created
}

// CountInactive returns the number of idle instances.
func (p *Pool[T]) CountInactive() int {
	return len(p.available)
}

// CountActive returns the number of instances currently checked out.
// A value that grows from frame to frame means a checkout is leaking.
func (p *Pool[T]) CountActive() int {
	return p.created - p.dropped - len(p.available)
}
