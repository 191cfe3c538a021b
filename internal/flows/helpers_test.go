package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/store/memory"
)

var (
	errInvalid     = errors.New("invalid")
	errDisabled    = errors.New("disabled")
	errLimited     = errors.New("limited")
	errWeak        = errors.New("weak")
	errDuplicate   = errors.New("duplicate")
	errUpstream    = errors.New("upstream")
	errExpired     = errors.New("expired")
	errUnavailable = errors.New("unavailable")
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// plainHasher stores "h:" + password; "old:" prefixed hashes verify and ask
// for an upgrade.
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) {
	if pw == "" {
		return "", errors.New("empty")
	}
	return "h:" + pw, nil
}

func (plainHasher) VerifyAndUpgrade(pw, encoded string) (bool, string, error) {
	switch {
	case strings.HasPrefix(encoded, "old:"):
		if encoded[4:] != pw {
			return false, "", nil
		}
		return true, "h:" + pw, nil
	case strings.HasPrefix(encoded, "h:"):
		return encoded[2:] == pw, "", nil
	}
	return false, "", errors.New("bad hash")
}

func strong(pw string) (bool, string) {
	if len(pw) >= 8 && strings.ContainsAny(pw, "!@#") {
		return true, ""
	}
	return false, "rules"
}

type attempt struct {
	ip, id  string
	success bool
}

// fakeTracker blocks once failures for a key reach limit.
type fakeTracker struct {
	mu       sync.Mutex
	limit    int
	failures map[string]int
	attempts []attempt
	reserved []attempt
	resets   []attempt
	err      error
}

func newFakeTracker(limit int) *fakeTracker {
	return &fakeTracker{limit: limit, failures: map[string]int{}}
}

func (f *fakeTracker) keys(ip, id string) []string {
	var out []string
	if ip != "" {
		out = append(out, "ip:"+ip)
	}
	if id != "" {
		out = append(out, "id:"+id)
	}
	return out
}

func (f *fakeTracker) IsBlocked(_ context.Context, ip, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, k := range f.keys(ip, id) {
		if f.failures[k] >= f.limit {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTracker) Reserve(_ context.Context, ip, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, k := range f.keys(ip, id) {
		if f.failures[k] >= f.limit {
			return true, nil
		}
	}
	f.reserved = append(f.reserved, attempt{ip: ip, id: id})
	for _, k := range f.keys(ip, id) {
		f.failures[k]++
	}
	return false, nil
}

func (f *fakeTracker) RecordAttempt(_ context.Context, ip, id string, success bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt{ip, id, success})
	blocked := false
	for _, k := range f.keys(ip, id) {
		if success {
			delete(f.failures, k)
			continue
		}
		f.failures[k]++
		if f.failures[k] >= f.limit {
			blocked = true
		}
	}
	return blocked, nil
}

func (f *fakeTracker) ResetAttempts(_ context.Context, ip, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, attempt{ip: ip, id: id})
	for _, k := range f.keys(ip, id) {
		delete(f.failures, k)
	}
	return nil
}

type counters map[int]uint64

func (c counters) add(id int, n uint64) { c[id] += n }

func seedUser(t *testing.T, users *memory.UserStore, u store.User) *store.User {
	t.Helper()
	if err := users.Create(context.Background(), &u); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return &u
}

func fixedNow() time.Time { return t0 }

func ipFrom(ip string) func(context.Context) string {
	return func(context.Context) string { return ip }
}
