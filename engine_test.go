package authcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/store/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentEmail struct {
	kind  string
	to    string
	token string
}

// captureMailer forwards every message to a buffered channel.
type captureMailer struct {
	ch chan sentEmail
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{ch: make(chan sentEmail, 32)}
}

func (m *captureMailer) SendVerificationEmail(_ context.Context, to, token string) error {
	m.ch <- sentEmail{kind: "verification", to: to, token: token}
	return nil
}

func (m *captureMailer) SendResetEmail(_ context.Context, to, token string) error {
	m.ch <- sentEmail{kind: "reset", to: to, token: token}
	return nil
}

func (m *captureMailer) next(t *testing.T, kind string) sentEmail {
	t.Helper()
	for {
		select {
		case msg := <-m.ch:
			if msg.kind == kind {
				return msg
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s email", kind)
			return sentEmail{}
		}
	}
}

type testEnv struct {
	engine *Engine
	users  *memory.UserStore
	clock  *testClock
	mailer *captureMailer
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-0123456789abcdef")
	cfg.JWT.SpecialSecret = []byte("special-secret-0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16
	return cfg
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{
		users:  memory.NewUserStore(),
		clock:  newTestClock(),
		mailer: newCaptureMailer(),
	}
	engine, err := New().
		WithConfig(cfg).
		WithUserStore(env.users).
		WithSessionStore(memory.NewSessionStore()).
		WithMailer(env.mailer).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	env.engine = engine
	return env
}

func clientCtx(ip string) context.Context {
	ctx := WithClientIP(context.Background(), ip)
	return WithUserAgent(ctx, "authcore-test/1.0")
}

func (env *testEnv) register(t *testing.T, email, pw string) *AuthResult {
	t.Helper()
	res, err := env.engine.Register(clientCtx("198.51.100.1"), ProviderPassword, Credentials{Email: email, Password: pw})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return res
}

func (env *testEnv) login(t *testing.T, email, pw string) *AuthResult {
	t.Helper()
	res, err := env.engine.Authenticate(clientCtx("198.51.100.1"), ProviderPassword, Credentials{Email: email, Password: pw})
	if err != nil {
		t.Fatalf("Authenticate(%s) failed: %v", email, err)
	}
	env.clock.Advance(time.Second)
	return res
}
