package limiters

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// BruteForceConfig holds thresholds for the sliding-window tracker.
type BruteForceConfig struct {
	MaxAttempts   int
	BlockDuration time.Duration
	Now           func() time.Time
	Logger        *zap.Logger
}

// window is the attempt history of one key. Every read-modify-write runs
// under mu, so concurrent failures cannot overshoot the threshold.
type window struct {
	mu           sync.Mutex
	attempts     []time.Time
	blockedUntil time.Time
}

// BruteForceTracker counts failed attempts per client IP and per account
// identifier over a sliding window of BlockDuration. State is process-local
// and starts empty.
type BruteForceTracker struct {
	cfg   BruteForceConfig
	cache *gocache.Cache
	// guards get-or-create of windows
	mu sync.Mutex
}

// NewBruteForceTracker returns a tracker with an empty state.
func NewBruteForceTracker(cfg BruteForceConfig) *BruteForceTracker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	// Idle windows are reclaimed after two block periods of wall time.
	return &BruteForceTracker{
		cfg:   cfg,
		cache: gocache.New(2*cfg.BlockDuration, cfg.BlockDuration),
	}
}

func ipKey(ip string) string { return "ip:" + ip }

func identifierKey(identifier string) string { return "id:" + identifier }

// IsBlocked reports whether either the IP or the identifier is blocked.
// An empty identifier checks the IP only.
func (t *BruteForceTracker) IsBlocked(ip, identifier string) bool {
	now := t.cfg.Now()
	for _, key := range t.keys(ip, identifier) {
		w, ok := t.lookup(key)
		if !ok {
			continue
		}
		w.mu.Lock()
		blocked := t.pruneLocked(w, now)
		w.mu.Unlock()
		if blocked {
			t.cfg.Logger.Warn("attempt from blocked key", zap.String("key", key))
			return true
		}
	}
	return false
}

// RecordAttempt records the outcome of an authentication attempt. A failure
// is appended to both windows and blocks any window whose pruned length
// reaches MaxAttempts. A success clears both windows and their blocks.
// It reports whether either key is blocked afterwards.
func (t *BruteForceTracker) RecordAttempt(ip, identifier string, success bool) bool {
	if success {
		t.ResetAttempts(ip, identifier)
		return false
	}

	now := t.cfg.Now()
	blocked := false
	for _, key := range t.keys(ip, identifier) {
		w := t.window(key)

		w.mu.Lock()
		alreadyBlocked := t.pruneLocked(w, now)
		w.attempts = append(w.attempts, now)
		if !alreadyBlocked && len(w.attempts) >= t.cfg.MaxAttempts {
			w.blockedUntil = now.Add(t.cfg.BlockDuration)
			t.cfg.Logger.Warn("blocking key after repeated failures",
				zap.String("key", key),
				zap.Int("attempts", len(w.attempts)),
				zap.Time("until", w.blockedUntil),
			)
		}
		if w.blockedUntil.After(now) {
			blocked = true
		}
		w.mu.Unlock()

		t.cache.Set(key, w, gocache.DefaultExpiration)
	}
	return blocked
}

// Reserve charges a failed attempt to every key before the caller does its
// work, and reports true without charging when a key is already blocked.
// Keys are charged one at a time under their window lock, so no key admits
// more than MaxAttempts callers per window however many run concurrently.
// A caller that succeeds clears its charge with RecordAttempt(..., true).
func (t *BruteForceTracker) Reserve(ip, identifier string) bool {
	now := t.cfg.Now()
	for _, key := range t.keys(ip, identifier) {
		w := t.window(key)

		w.mu.Lock()
		if t.pruneLocked(w, now) {
			w.mu.Unlock()
			t.cfg.Logger.Warn("attempt from blocked key", zap.String("key", key))
			return true
		}
		w.attempts = append(w.attempts, now)
		if len(w.attempts) >= t.cfg.MaxAttempts {
			w.blockedUntil = now.Add(t.cfg.BlockDuration)
			t.cfg.Logger.Warn("blocking key after repeated failures",
				zap.String("key", key),
				zap.Int("attempts", len(w.attempts)),
				zap.Time("until", w.blockedUntil),
			)
		}
		w.mu.Unlock()

		t.cache.Set(key, w, gocache.DefaultExpiration)
	}
	return false
}

// ResetAttempts clears history and blocks for the given keys. Empty
// arguments are ignored.
func (t *BruteForceTracker) ResetAttempts(ip, identifier string) {
	for _, key := range t.keys(ip, identifier) {
		w, ok := t.lookup(key)
		if !ok {
			continue
		}
		w.mu.Lock()
		w.attempts = nil
		w.blockedUntil = time.Time{}
		w.mu.Unlock()
	}
}

// Attempts returns the pruned failure count for an IP and an identifier.
func (t *BruteForceTracker) Attempts(ip, identifier string) (ipCount, identifierCount int) {
	now := t.cfg.Now()
	count := func(key string) int {
		w, ok := t.lookup(key)
		if !ok {
			return 0
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		t.pruneLocked(w, now)
		return len(w.attempts)
	}
	if ip != "" {
		ipCount = count(ipKey(ip))
	}
	if identifier != "" {
		identifierCount = count(identifierKey(identifier))
	}
	return ipCount, identifierCount
}

func (t *BruteForceTracker) keys(ip, identifier string) []string {
	return keysFor(ip, identifier)
}

// pruneLocked drops attempts older than the window and expired blocks. It
// reports whether the window is still blocked at now.
func (t *BruteForceTracker) pruneLocked(w *window, now time.Time) bool {
	cutoff := now.Add(-t.cfg.BlockDuration)
	kept := w.attempts[:0]
	for _, at := range w.attempts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	w.attempts = kept

	if !w.blockedUntil.IsZero() && !w.blockedUntil.After(now) {
		w.blockedUntil = time.Time{}
	}
	return !w.blockedUntil.IsZero()
}

func (t *BruteForceTracker) lookup(key string) (*window, bool) {
	v, ok := t.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*window), true
}

func (t *BruteForceTracker) window(key string) *window {
	t.mu.Lock()
	defer t.mu.Unlock()

	if w, ok := t.lookup(key); ok {
		return w
	}
	w := &window{}
	t.cache.Set(key, w, gocache.DefaultExpiration)
	return w
}
