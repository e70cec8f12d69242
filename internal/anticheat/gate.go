package anticheat

import (
	"fmt"
	"sync"
	"time"

	"rollcall/internal/geo"
)

// Code identifies why validation rejected an event.
type Code string

const (
	CodeRelayedInput    Code = "RELAYED_INPUT"
	CodeStaleInput      Code = "STALE_INPUT"
	CodeFutureTimestamp Code = "FUTURE_TIMESTAMP"
	CodeRateLimited     Code = "RATE_LIMITED"
)

// Event is an inbound coordinate submission as delivered by the messaging
// gateway. AuthorTime is the time the sender's device produced the payload;
// ServerTime is when the gateway received it.
type Event struct {
	UserID     int64
	Coordinate geo.Point
	ServerTime time.Time
	AuthorTime time.Time
	Relayed    bool
}

// Result is the outcome of running the validation chain.
type Result struct {
	OK      bool
	Code    Code
	Message string
}

func pass() Result { return Result{OK: true} }

func fail(code Code, format string, args ...any) Result {
	return Result{OK: false, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Gate runs the ordered fraud checks over inbound events. It owns the
// per-user sliding rate-limit window; all other checks are stateless.
type Gate struct {
	maxAge      time.Duration
	futureSkew  time.Duration
	maxAttempts int
	now         func() time.Time

	mu      sync.Mutex
	windows map[int64][]time.Time
}

const windowSpan = time.Minute

// New builds a gate. now is the authoritative clock; every time comparison in
// the chain goes through it.
func New(maxAge, futureSkew time.Duration, maxAttempts int, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{
		maxAge:      maxAge,
		futureSkew:  futureSkew,
		maxAttempts: maxAttempts,
		now:         now,
		windows:     make(map[int64][]time.Time),
	}
}

// Evaluate runs provenance, freshness, and rate-limit checks in that order,
// returning the first failure. Only a fully passing evaluation records an
// attempt in the rate-limit window.
func (g *Gate) Evaluate(evt Event) Result {
	if res := g.checkProvenance(evt); !res.OK {
		return res
	}
	if res := g.checkFreshness(evt); !res.OK {
		return res
	}
	return g.checkRateLimit(evt.UserID)
}

func (g *Gate) checkProvenance(evt Event) Result {
	if evt.Relayed {
		return fail(CodeRelayedInput, "forwarded or relayed location rejected for user %d", evt.UserID)
	}
	return pass()
}

func (g *Gate) checkFreshness(evt Event) Result {
	age := evt.ServerTime.Sub(evt.AuthorTime)
	if age > g.maxAge {
		return fail(CodeStaleInput, "location is %.0fs old, max %.0fs", age.Seconds(), g.maxAge.Seconds())
	}
	if age < -g.futureSkew {
		return fail(CodeFutureTimestamp, "location timestamp is %.0fs in the future", (-age).Seconds())
	}
	return pass()
}

func (g *Gate) checkRateLimit(userID int64) Result {
	now := g.now()
	cutoff := now.Add(-windowSpan)

	g.mu.Lock()
	defer g.mu.Unlock()

	recent := g.windows[userID][:0]
	for _, ts := range g.windows[userID] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= g.maxAttempts {
		g.windows[userID] = recent
		return fail(CodeRateLimited, "%d attempts in the last minute, max %d", len(recent), g.maxAttempts)
	}

	g.windows[userID] = append(recent, now)
	return pass()
}

// ClearUser drops a user's rate-limit window, for admin overrides.
func (g *Gate) ClearUser(userID int64) {
	g.mu.Lock()
	delete(g.windows, userID)
	g.mu.Unlock()
}

// Sweep removes windows whose entries have all aged out. Called periodically
// so users who never retry do not leave residue in a long-running process.
func (g *Gate) Sweep() {
	cutoff := g.now().Add(-windowSpan)
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, win := range g.windows {
		live := false
		for _, ts := range win {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(g.windows, id)
		}
	}
}
