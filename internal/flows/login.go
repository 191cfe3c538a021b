package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/oauth"
	"github.com/MrEthical07/authcore/store"
	"go.uber.org/zap"
)

// PasswordHasher is the subset of password.Argon2 used by the flows.
type PasswordHasher interface {
	Hash(password string) (string, error)
	VerifyAndUpgrade(password, encodedHash string) (bool, string, error)
}

type LoginMetrics struct {
	LoginSuccess         int
	LoginFailure         int
	LoginRateLimited     int
	PasswordRehashed     int
	RegisterSuccess      int
	RegisterDuplicate    int
	RegisterWeakPassword int
}

type LoginErrors struct {
	InvalidCredentials error
	AccountDisabled    error
	RateLimited        error
	EmailAlreadyUsed   error
	WeakPassword       func() error
	MapStoreError      func(error) error
}

// PasswordLoginDeps captures password provider dependencies.
type PasswordLoginDeps struct {
	Users               store.UserStore
	Tracker             Tracker
	Hasher              PasswordHasher
	ValidateStrength    func(string) (bool, string)
	UpgradeOnLogin      bool
	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string
	SendVerification    func(ctx context.Context, user *store.User)
	Log                 *zap.Logger
	MetricAdd           MetricFunc
	Metrics             LoginMetrics
	Errors              LoginErrors
}

// RunPasswordLogin authenticates email and password.
//
// A failed attempt is reserved with the tracker before the lookup and
// cleared on success, so concurrent guesses cannot outrun the threshold.
// Unknown accounts and wrong passwords produce the same error; a disabled
// account is only reported once the password has matched.
func RunPasswordLogin(ctx context.Context, email, password string, deps PasswordLoginDeps) (*store.User, error) {
	normalizePasswordLoginDeps(&deps)

	email = NormalizeEmail(email)
	ip := deps.ClientIPFromContext(ctx)

	blocked, err := deps.Tracker.Reserve(ctx, ip, email)
	if err != nil {
		return nil, deps.Errors.MapStoreError(err)
	}
	if blocked {
		deps.MetricAdd(deps.Metrics.LoginRateLimited, 1)
		return nil, deps.Errors.RateLimited
	}

	fail := func(reason string, cause error) (*store.User, error) {
		deps.MetricAdd(deps.Metrics.LoginFailure, 1)
		deps.Log.Info("password login rejected", zap.String("reason", reason), zap.String("ip", ip))
		return nil, cause
	}

	if email == "" || password == "" {
		return fail("empty_credentials", deps.Errors.InvalidCredentials)
	}

	user, err := deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail("unknown_account", deps.Errors.InvalidCredentials)
		}
		return nil, deps.Errors.MapStoreError(err)
	}
	if user.PasswordHash == "" {
		return fail("no_password", deps.Errors.InvalidCredentials)
	}

	ok, upgraded, err := deps.Hasher.VerifyAndUpgrade(password, user.PasswordHash)
	if err != nil {
		deps.Log.Warn("stored password hash unusable", zap.String("user_id", user.ID), zap.Error(err))
		return fail("bad_hash", deps.Errors.InvalidCredentials)
	}
	if !ok {
		return fail("wrong_password", deps.Errors.InvalidCredentials)
	}
	if !user.Active {
		return fail("account_disabled", deps.Errors.AccountDisabled)
	}

	if upgraded != "" && deps.UpgradeOnLogin {
		user.PasswordHash = upgraded
		if err := deps.Users.Update(ctx, user); err != nil {
			deps.Log.Warn("persist rehashed password", zap.String("user_id", user.ID), zap.Error(err))
		} else {
			deps.MetricAdd(deps.Metrics.PasswordRehashed, 1)
		}
	}

	if _, err := deps.Tracker.RecordAttempt(ctx, ip, email, true); err != nil {
		deps.Log.Warn("record successful attempt", zap.Error(err))
	}
	deps.MetricAdd(deps.Metrics.LoginSuccess, 1)
	return user, nil
}

// RunPasswordRegister creates an unverified password account and queues the
// verification email.
func RunPasswordRegister(ctx context.Context, email, password, fullName string, deps PasswordLoginDeps) (*store.User, error) {
	normalizePasswordLoginDeps(&deps)

	email = NormalizeEmail(email)
	if email == "" {
		return nil, deps.Errors.InvalidCredentials
	}
	if ok, _ := deps.ValidateStrength(password); !ok {
		deps.MetricAdd(deps.Metrics.RegisterWeakPassword, 1)
		return nil, deps.Errors.WeakPassword()
	}

	if _, err := deps.Users.GetByEmail(ctx, email); err == nil {
		deps.MetricAdd(deps.Metrics.RegisterDuplicate, 1)
		return nil, deps.Errors.EmailAlreadyUsed
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, deps.Errors.MapStoreError(err)
	}

	hash, err := deps.Hasher.Hash(password)
	if err != nil {
		deps.MetricAdd(deps.Metrics.RegisterWeakPassword, 1)
		return nil, deps.Errors.WeakPassword()
	}

	user := &store.User{
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		FullName:     fullName,
		CreatedAt:    deps.Now(),
	}
	if err := deps.Users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			deps.MetricAdd(deps.Metrics.RegisterDuplicate, 1)
			return nil, deps.Errors.EmailAlreadyUsed
		}
		return nil, deps.Errors.MapStoreError(err)
	}

	deps.MetricAdd(deps.Metrics.RegisterSuccess, 1)
	deps.SendVerification(ctx, user)
	return user, nil
}

func normalizePasswordLoginDeps(deps *PasswordLoginDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.SendVerification == nil {
		deps.SendVerification = func(context.Context, *store.User) {}
	}
	if deps.MetricAdd == nil {
		deps.MetricAdd = nopMetric
	}
	if deps.Errors.MapStoreError == nil {
		deps.Errors.MapStoreError = func(err error) error { return err }
	}
	deps.Log = nopLogger(deps.Log)
}

// OAuthLoginDeps captures OAuth provider dependencies.
type OAuthLoginDeps struct {
	Users     store.UserStore
	Exchange  func(ctx context.Context, code, redirectURI string) (*oauth.Identity, error)
	Now       func() time.Time
	Log       *zap.Logger
	MetricAdd MetricFunc
	Metrics   OAuthMetrics
	Errors    OAuthErrors
}

type OAuthMetrics struct {
	LoginSuccess            int
	RegisterSuccess         int
	RegisterDuplicate       int
	UpstreamProviderFailure int
}

type OAuthErrors struct {
	AccountDisabled    error
	EmailAlreadyUsed   error
	UpstreamProvider   error
	InvalidCredentials error
	MapStoreError      func(error) error
}

// ResolveIdentity returns identity when set, otherwise exchanges code with
// the identity provider.
func ResolveIdentity(ctx context.Context, identity *oauth.Identity, code, redirectURI string, deps OAuthLoginDeps) (*oauth.Identity, error) {
	normalizeOAuthLoginDeps(&deps)

	if identity == nil {
		if deps.Exchange == nil || code == "" {
			return nil, deps.Errors.InvalidCredentials
		}
		var err error
		identity, err = deps.Exchange(ctx, code, redirectURI)
		if err != nil {
			deps.MetricAdd(deps.Metrics.UpstreamProviderFailure, 1)
			deps.Log.Warn("oauth exchange failed", zap.Error(err))
			return nil, deps.Errors.UpstreamProvider
		}
	}
	if err := identity.Validate(); err != nil {
		deps.MetricAdd(deps.Metrics.UpstreamProviderFailure, 1)
		return nil, deps.Errors.UpstreamProvider
	}
	return identity, nil
}

// RunOAuthLogin finds or links the account for identity, creating a
// pre-verified one when none exists. An account already linked to another
// subject is never relinked.
func RunOAuthLogin(ctx context.Context, identity *oauth.Identity, deps OAuthLoginDeps) (*store.User, error) {
	normalizeOAuthLoginDeps(&deps)
	email := NormalizeEmail(identity.Email)

	user, err := deps.Users.GetByOIDCSubject(ctx, identity.Subject)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, deps.Errors.MapStoreError(err)
	}

	changed := false
	if user == nil {
		user, err = deps.Users.GetByEmail(ctx, email)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return RunOAuthRegister(ctx, identity, deps)
		case err != nil:
			return nil, deps.Errors.MapStoreError(err)
		}
		if user.OIDCSubject != "" && user.OIDCSubject != identity.Subject {
			deps.Log.Warn("identity email belongs to an account linked to another subject",
				zap.String("user_id", user.ID))
			return nil, deps.Errors.EmailAlreadyUsed
		}
		user.OIDCSubject = identity.Subject
		changed = true
		deps.Log.Info("linked existing account to identity provider", zap.String("user_id", user.ID))
	}

	if !user.Active {
		return nil, deps.Errors.AccountDisabled
	}

	if user.FullName == "" && identity.Name != "" {
		user.FullName = identity.Name
		changed = true
	}
	if user.ProfilePicture == "" && identity.Picture != "" {
		user.ProfilePicture = identity.Picture
		changed = true
	}
	if !user.Verified {
		user.Verified = true
		changed = true
	}
	if changed {
		if err := deps.Users.Update(ctx, user); err != nil {
			return nil, deps.Errors.MapStoreError(err)
		}
	}

	deps.MetricAdd(deps.Metrics.LoginSuccess, 1)
	return user, nil
}

// RunOAuthRegister creates a pre-verified account without a password hash.
func RunOAuthRegister(ctx context.Context, identity *oauth.Identity, deps OAuthLoginDeps) (*store.User, error) {
	normalizeOAuthLoginDeps(&deps)
	email := NormalizeEmail(identity.Email)

	if _, err := deps.Users.GetByEmail(ctx, email); err == nil {
		deps.MetricAdd(deps.Metrics.RegisterDuplicate, 1)
		return nil, deps.Errors.EmailAlreadyUsed
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, deps.Errors.MapStoreError(err)
	}

	user := &store.User{
		Email:          email,
		Active:         true,
		Verified:       true,
		OIDCSubject:    identity.Subject,
		FullName:       identity.Name,
		ProfilePicture: identity.Picture,
		CreatedAt:      deps.Now(),
	}
	if err := deps.Users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			deps.MetricAdd(deps.Metrics.RegisterDuplicate, 1)
			return nil, deps.Errors.EmailAlreadyUsed
		}
		return nil, deps.Errors.MapStoreError(err)
	}

	deps.MetricAdd(deps.Metrics.RegisterSuccess, 1)
	return user, nil
}

func normalizeOAuthLoginDeps(deps *OAuthLoginDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricAdd == nil {
		deps.MetricAdd = nopMetric
	}
	if deps.Errors.MapStoreError == nil {
		deps.Errors.MapStoreError = func(err error) error { return err }
	}
	deps.Log = nopLogger(deps.Log)
}
