// Package memory provides mutex-guarded in-process implementations of the
// store contracts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/google/uuid"
)

// UserStore keeps users in memory.
type UserStore struct {
	mu        sync.RWMutex
	byID      map[string]store.User
	byEmail   map[string]string
	bySubject map[string]string
}

// NewUserStore returns an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:      make(map[string]store.User),
		byEmail:   make(map[string]string),
		bySubject: make(map[string]string),
	}
}

func (s *UserStore) GetByID(_ context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByOIDCSubject(ctx context.Context, subject string) (*store.User, error) {
	s.mu.RLock()
	id, ok := s.bySubject[subject]
	s.mu.RUnlock()
	if !ok || subject == "" {
		return nil, store.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) Create(_ context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, taken := s.byEmail[email]; taken {
		return store.ErrDuplicateEmail
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	s.byID[u.ID] = *u
	s.byEmail[email] = u.ID
	if u.OIDCSubject != "" {
		s.bySubject[u.OIDCSubject] = u.ID
	}
	return nil
}

func (s *UserStore) Update(_ context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.byID[u.ID]
	if !ok {
		return store.ErrNotFound
	}

	email := strings.ToLower(u.Email)
	if owner, taken := s.byEmail[email]; taken && owner != u.ID {
		return store.ErrDuplicateEmail
	}
	delete(s.byEmail, strings.ToLower(prev.Email))
	if prev.OIDCSubject != "" {
		delete(s.bySubject, prev.OIDCSubject)
	}

	s.byID[u.ID] = *u
	s.byEmail[email] = u.ID
	if u.OIDCSubject != "" {
		s.bySubject[u.OIDCSubject] = u.ID
	}
	return nil
}

// SessionStore keeps sessions in memory. A single mutex serialises every
// write, which makes Create's evict-then-insert atomic.
type SessionStore struct {
	mu      sync.Mutex
	byID    map[string]store.Session
	byToken map[string]string

	// insertion order, breaks CreatedAt ties
	seq     map[string]uint64
	nextSeq uint64
}

// NewSessionStore returns an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		byID:    make(map[string]store.Session),
		byToken: make(map[string]string),
		seq:     make(map[string]uint64),
	}
}

func (s *SessionStore) Create(_ context.Context, sess *store.Session, maxLive int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}

	evicted := 0
	if maxLive > 0 {
		live := s.liveLocked(sess.UserID, sess.CreatedAt)
		s.sortOldestFirst(live)
		for len(live)-evicted >= maxLive {
			s.deleteLocked(live[evicted].ID)
			evicted++
		}
	}

	s.nextSeq++
	s.byID[sess.ID] = *sess
	s.byToken[sess.TokenHash] = sess.ID
	s.seq[sess.ID] = s.nextSeq
	return evicted, nil
}

func (s *SessionStore) sortOldestFirst(live []store.Session) {
	sort.Slice(live, func(i, j int) bool {
		a, b := live[i], live[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return s.seq[a.ID] < s.seq[b.ID]
	})
}

func (s *SessionStore) GetByTokenHash(_ context.Context, tokenHash string) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byToken[tokenHash]
	if !ok {
		return nil, store.ErrNotFound
	}
	sess := s.byID[id]
	if !sess.Valid {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

func (s *SessionStore) Invalidate(_ context.Context, sessionID string) error {
	return s.mutate(sessionID, func(sess *store.Session) { sess.Valid = false })
}

func (s *SessionStore) Touch(_ context.Context, sessionID string, at time.Time) error {
	return s.mutate(sessionID, func(sess *store.Session) { sess.UpdatedAt = at })
}

func (s *SessionStore) DeleteByTokenHash(_ context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byToken[tokenHash]
	if !ok {
		return false, nil
	}
	s.deleteLocked(id)
	return true, nil
}

func (s *SessionStore) DeleteByID(_ context.Context, userID, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[sessionID]
	if !ok || sess.UserID != userID {
		return false, nil
	}
	s.deleteLocked(sessionID)
	return true, nil
}

func (s *SessionStore) DeleteAllForUser(_ context.Context, userID, exceptID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.byID {
		if sess.UserID == userID && id != exceptID {
			s.deleteLocked(id)
			n++
		}
	}
	return n, nil
}

func (s *SessionStore) ListForUser(_ context.Context, userID string, now time.Time) ([]store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.liveLocked(userID, now)
	s.sortOldestFirst(live)
	for i, j := 0, len(live)-1; i < j; i, j = i+1, j-1 {
		live[i], live[j] = live[j], live[i]
	}
	return live, nil
}

func (s *SessionStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.byID {
		if !sess.Live(now) {
			s.deleteLocked(id)
			n++
		}
	}
	return n, nil
}

func (s *SessionStore) mutate(sessionID string, fn func(*store.Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	fn(&sess)
	s.byID[sessionID] = sess
	return nil
}

func (s *SessionStore) liveLocked(userID string, now time.Time) []store.Session {
	var live []store.Session
	for _, sess := range s.byID {
		if sess.UserID == userID && sess.Live(now) {
			live = append(live, sess)
		}
	}
	return live
}

func (s *SessionStore) deleteLocked(id string) {
	if sess, ok := s.byID[id]; ok {
		delete(s.byToken, sess.TokenHash)
		delete(s.byID, id)
		delete(s.seq, id)
	}
}
