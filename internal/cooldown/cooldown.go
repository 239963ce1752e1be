// Package cooldown throttles how often a user may run the same command.
package cooldown

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Defaults for Options.
const (
	DefaultWindow     = 2 * time.Second
	DefaultEvictAfter = 15 * time.Minute
)

// Options configures a Gate.
type Options struct {
	// Window is the minimum time between two runs of one command by one user.
	Window time.Duration

	// EvictAfter drops idle entries. It must be at least Window.
	EvictAfter time.Duration

	// MaxEntries caps memory use. Zero means unbounded.
	MaxEntries int

	Now func() time.Time
}

type key struct {
	user    string
	command string
}

// Gate remembers the last accepted run per (user, command). It holds no
// durable state; losing it only relaxes throttling.
type Gate struct {
	mu     sync.Mutex
	last   *expirable.LRU[key, time.Time]
	window time.Duration
	now    func() time.Time
}

// New creates a Gate. Entries expire on their own after EvictAfter.
func New(opts Options) *Gate {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.EvictAfter < opts.Window {
		opts.EvictAfter = DefaultEvictAfter
		if opts.EvictAfter < opts.Window {
			opts.EvictAfter = opts.Window
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Gate{
		last:   expirable.NewLRU[key, time.Time](opts.MaxEntries, nil, opts.EvictAfter),
		window: opts.Window,
		now:    opts.Now,
	}
}

// Allow records a run of command by user if the window has passed since the
// last accepted run. When denied it returns the time left to wait.
func (g *Gate) Allow(user, command string) (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := key{user: user, command: command}
	now := g.now()

	if prev, ok := g.last.Get(k); ok {
		if elapsed := now.Sub(prev); elapsed < g.window {
			return g.window - elapsed, false
		}
	}

	g.last.Add(k, now)
	return 0, true
}

// Reset forgets user's last run of command.
func (g *Gate) Reset(user, command string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last.Remove(key{user: user, command: command})
}

// Len returns the number of tracked entries.
func (g *Gate) Len() int {
	return g.last.Len()
}
