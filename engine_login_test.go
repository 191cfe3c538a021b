package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/password"
)

func TestAliceScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := clientCtx("203.0.113.5")

	_, err := env.engine.Register(ctx, ProviderPassword, Credentials{Email: "alice@example.com", Password: "password123"})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	var weak *WeakPasswordError
	if !errors.As(err, &weak) || weak.Rules != password.StrengthRules {
		t.Fatalf("expected full rules text, got %v", err)
	}

	reg, err := env.engine.Register(ctx, ProviderPassword, Credentials{Email: "alice@example.com", Password: "Str0ng!Pass1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if reg.TokenType != TokenTypeBearer || reg.User.Verified {
		t.Fatalf("unexpected register result %+v", reg)
	}
	env.mailer.next(t, "verification")

	res, err := env.engine.Authenticate(ctx, ProviderPassword, Credentials{Email: "alice@example.com", Password: "Str0ng!Pass1"})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	user, err := env.engine.ValidateToken(ctx, res.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if user.Email != "alice@example.com" || user.ID != res.User.ID {
		t.Fatalf("unexpected user %+v", user)
	}

	if _, err := env.engine.Authenticate(ctx, ProviderPassword, Credentials{Email: "alice@example.com", Password: "Wr0ng!Pass1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	local := env.engine.tracker.(localTracker)
	ipCount, idCount := local.t.Attempts("203.0.113.5", "alice@example.com")
	if ipCount != 1 || idCount != 1 {
		t.Fatalf("expected one recorded failure per key, got ip=%d id=%d", ipCount, idCount)
	}
}

func TestAuthenticatePasswordIsCaseSensitive(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "Bob@Example.com", "Secr3t!Word")

	if _, err := env.engine.Authenticate(context.Background(), ProviderPassword, Credentials{Email: "bob@example.com", Password: "secr3t!word"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong case, got %v", err)
	}
	if _, err := env.engine.Authenticate(context.Background(), ProviderPassword, Credentials{Email: " BOB@example.COM ", Password: "Secr3t!Word"}); err != nil {
		t.Fatalf("expected case-folded email to match, got %v", err)
	}
}

func TestUnknownAccountAndWrongPasswordIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "carol@example.com", "Secr3t!Word")

	_, errUnknown := env.engine.Authenticate(context.Background(), ProviderPassword, Credentials{Email: "nobody@example.com", Password: "Secr3t!Word"})
	_, errWrong := env.engine.Authenticate(context.Background(), ProviderPassword, Credentials{Email: "carol@example.com", Password: "Wr0ng!Word"})
	if errUnknown != errWrong || errUnknown != ErrInvalidCredentials {
		t.Fatalf("expected identical errors, got %v and %v", errUnknown, errWrong)
	}
}

func TestBruteForceBlocksThenRecovers(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "dave@example.com", "Secr3t!Word")
	ctx := clientCtx("192.0.2.10")

	for i := 0; i < 5; i++ {
		if _, err := env.engine.Authenticate(ctx, ProviderPassword, Credentials{Email: "dave@example.com", Password: "bad"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	if _, err := env.engine.Authenticate(ctx, ProviderPassword, Credentials{Email: "dave@example.com", Password: "Secr3t!Word"}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on 6th attempt, got %v", err)
	}

	env.clock.Advance(15*time.Minute + time.Second)
	if _, err := env.engine.Authenticate(ctx, ProviderPassword, Credentials{Email: "dave@example.com", Password: "Secr3t!Word"}); err != nil {
		t.Fatalf("expected success after block expiry, got %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginRateLimited] != 1 || snap.Counters[MetricLoginFailure] != 5 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestConcurrentGuessesStopAtThreshold(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "dora@example.com", "Secr3t!Word")
	ctx := clientCtx("203.0.113.9")

	const burst = 40
	var (
		wg                 sync.WaitGroup
		mu                 sync.Mutex
		evaluated, limited int
	)
	for i := 0; i < burst; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.Authenticate(ctx, ProviderPassword, Credentials{Email: "dora@example.com", Password: "Wr0ng!Word"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrInvalidCredentials):
				evaluated++
			case errors.Is(err, ErrRateLimited):
				limited++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	limit := DefaultConfig().BruteForce.MaxAttempts
	if evaluated != limit || limited != burst-limit {
		t.Fatalf("expected %d guesses evaluated and %d limited, got %d and %d", limit, burst-limit, evaluated, limited)
	}
}

func TestSingleSessionInvalidatesPreviousToken(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "erin@example.com", "Secr3t!Word")

	first := env.login(t, "erin@example.com", "Secr3t!Word")
	second := env.login(t, "erin@example.com", "Secr3t!Word")

	if _, err := env.engine.ValidateToken(context.Background(), first.AccessToken); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected first token rejected, got %v", err)
	}
	if _, err := env.engine.ValidateToken(context.Background(), second.AccessToken); err != nil {
		t.Fatalf("expected second token valid, got %v", err)
	}
}

func TestMaxSessionsEvictsOldestUnderConcurrency(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) { cfg.SessionPolicy = MaxSessions(2) })
	reg := env.register(t, "frank@example.com", "Secr3t!Word")

	var wg sync.WaitGroup
	tokens := make([]string, 3)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.engine.Authenticate(context.Background(), ProviderPassword, Credentials{Email: "frank@example.com", Password: "Secr3t!Word"})
			if err != nil {
				t.Errorf("Authenticate failed: %v", err)
				return
			}
			tokens[i] = res.AccessToken
		}(i)
	}
	wg.Wait()

	valid := 0
	for _, tok := range append(tokens, reg.AccessToken) {
		if _, err := env.engine.ValidateToken(context.Background(), tok); err == nil {
			valid++
		}
	}
	if valid != 2 {
		t.Fatalf("expected exactly 2 valid sessions, got %d", valid)
	}

	sessions, err := env.engine.ListSessions(context.Background(), reg.User.ID, "")
	if err != nil || len(sessions) != 2 {
		t.Fatalf("expected 2 listed sessions, got %d (%v)", len(sessions), err)
	}
}

func TestDisabledAccountLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	reg := env.register(t, "gina@example.com", "Secr3t!Word")

	if err := env.engine.DisableUser(context.Background(), reg.User.ID); err != nil {
		t.Fatalf("DisableUser failed: %v", err)
	}
	if _, err := env.engine.ValidateToken(context.Background(), reg.AccessToken); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected register token revoked, got %v", err)
	}
	if _, err := env.engine.Authenticate(context.Background(), ProviderPassword, Credentials{Email: "gina@example.com", Password: "Wr0ng!Word"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password on disabled account must look generic, got %v", err)
	}
	if _, err := env.engine.Authenticate(context.Background(), ProviderPassword, Credentials{Email: "gina@example.com", Password: "Secr3t!Word"}); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}

	if err := env.engine.EnableUser(context.Background(), reg.User.ID); err != nil {
		t.Fatalf("EnableUser failed: %v", err)
	}
	env.login(t, "gina@example.com", "Secr3t!Word")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "hank@example.com", "Secr3t!Word")

	if _, err := env.engine.Register(context.Background(), ProviderPassword, Credentials{Email: "HANK@example.com", Password: "Secr3t!Word2"}); !errors.Is(err, ErrEmailAlreadyUsed) {
		t.Fatalf("expected ErrEmailAlreadyUsed, got %v", err)
	}
}

func TestSessionStoresClientMetadata(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := WithUserAgent(WithClientIP(context.Background(), "2001:db8::1"), strings.Repeat("u", 400))
	res, err := env.engine.Register(ctx, ProviderPassword, Credentials{Email: "ivy@example.com", Password: "Secr3t!Word"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	sessions, err := env.engine.ListSessions(context.Background(), res.User.ID, res.AccessToken)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("expected one session, got %v %v", sessions, err)
	}
	s := sessions[0]
	if s.IP != "2001:db8::1" || len(s.UserAgent) != 255 || !s.Current {
		t.Fatalf("unexpected session info %+v", s)
	}
}

func TestPublicUserOmitsSecrets(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.register(t, "jill@example.com", "Secr3t!Word")

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	body := string(raw)
	for _, leaked := range []string{"argon2id", "password", "is_active", "is_superuser"} {
		if strings.Contains(body, leaked) {
			t.Fatalf("auth result leaks %q: %s", leaked, body)
		}
	}
}

func TestUnsupportedProvider(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.engine.Authenticate(context.Background(), ProviderKind(99), Credentials{}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
	if _, err := ParseProviderKind("saml"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
	for name, want := range map[string]ProviderKind{"password": ProviderPassword, "Google": ProviderOAuth, "oauth": ProviderOAuth} {
		got, err := ParseProviderKind(name)
		if err != nil || got != want {
			t.Fatalf("ParseProviderKind(%q) = %v, %v", name, got, err)
		}
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.ValidateToken(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}
