// Package httpapi serves the engine over JSON HTTP with chi.
package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/oauth"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	stateCookie = "authcore_oauth_state"
	maxBodySize = 1 << 16
)

// Handler binds engine operations to routes.
type Handler struct {
	Engine *authcore.Engine
	// OAuth enables the redirect endpoint. Code exchange goes through the
	// engine's own client.
	OAuth *oauth.Client
	// Limiter caps email-sending requests per client IP. Nil disables it.
	Limiter rate.Limiter
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Proxies may report the client address in X-Forwarded-For. The zero
	// value uses the peer address.
	Proxies middleware.TrustedProxies
	Log     *zap.Logger
}

// Routes returns the router. Every route is tagged with a request id and
// runs behind Proxies.ClientInfo.
func (h *Handler) Routes() chi.Router {
	if h.Log == nil {
		h.Log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(echoRequestID)
	r.Use(chimw.Recoverer)
	r.Use(h.Proxies.ClientInfo)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/verify", h.verify)
		r.Post("/verify/resend", h.resendVerification)
		r.Post("/password-reset/request", h.requestReset)
		r.Post("/password-reset/reset", h.resetPassword)

		r.Get("/oauth/login", h.oauthLogin)
		r.Get("/oauth/callback", h.oauthCallback)
		r.Post("/oauth", h.oauthExchange)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(h.Engine))
			r.Get("/me", h.me)
			r.Post("/logout", h.logout)
			r.Get("/sessions", h.listSessions)
			r.Delete("/sessions", h.revokeAll)
			r.Delete("/sessions/{id}", h.revokeSession)
		})
	})
	return r
}

func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			w.Header().Set(chimw.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		writeErr(w, "invalid_request", "malformed JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, desc := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeErr(w, code, desc, status)
}

// limited writes a 429 when the caller's IP exhausted its email window.
// Limiter faults let the request through.
func (h *Handler) limited(w http.ResponseWriter, r *http.Request, scope string) bool {
	if h.Limiter == nil {
		return false
	}
	allowed, retry, err := h.Limiter.Allow(r.Context(), scope+":"+h.Proxies.ClientIP(r))
	if err != nil {
		h.Log.Warn("rate limiter unavailable", zap.Error(err))
		return false
	}
	if allowed {
		return false
	}
	if retry > 0 {
		secs := int(math.Ceil(retry.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	writeErr(w, "rate_limited", authcore.ErrRateLimited.Error(), http.StatusTooManyRequests)
	return true
}

type credentialsIn struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in credentialsIn
	if !decode(w, r, &in) {
		return
	}
	res, err := h.Engine.Register(r.Context(), authcore.ProviderPassword, authcore.Credentials{
		Email:    in.Email,
		Password: in.Password,
		FullName: in.FullName,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in credentialsIn
	if !decode(w, r, &in) {
		return
	}
	res, err := h.Engine.Authenticate(r.Context(), authcore.ProviderPassword, authcore.Credentials{
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type tokenIn struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password,omitempty"`
}

type emailIn struct {
	Email string `json:"email"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var in tokenIn
	if !decode(w, r, &in) {
		return
	}
	msg, err := h.Engine.VerifyEmail(r.Context(), in.Token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

func (h *Handler) resendVerification(w http.ResponseWriter, r *http.Request) {
	if h.limited(w, r, "verify") {
		return
	}
	var in emailIn
	if !decode(w, r, &in) {
		return
	}
	msg, err := h.Engine.ResendVerification(r.Context(), in.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

func (h *Handler) requestReset(w http.ResponseWriter, r *http.Request) {
	if h.limited(w, r, "reset") {
		return
	}
	var in emailIn
	if !decode(w, r, &in) {
		return
	}
	msg, err := h.Engine.RequestPasswordReset(r.Context(), in.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in tokenIn
	if !decode(w, r, &in) {
		return
	}
	msg, err := h.Engine.ResetPassword(r.Context(), in.Token, in.NewPassword)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

func (h *Handler) oauthLogin(w http.ResponseWriter, r *http.Request) {
	if h.OAuth == nil {
		writeErr(w, "unsupported_provider", authcore.ErrUnsupportedProvider.Error(), http.StatusNotFound)
		return
	}
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		h.fail(w, r, err)
		return
	}
	state := hex.EncodeToString(b[:])
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/oauth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.OAuth.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(stateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || c.Value != state {
		writeErr(w, "invalid_state", "oauth state mismatch", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/oauth", MaxAge: -1})
	h.oauthComplete(w, r, r.URL.Query().Get("code"), "")
}

type oauthIn struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

func (h *Handler) oauthExchange(w http.ResponseWriter, r *http.Request) {
	var in oauthIn
	if !decode(w, r, &in) {
		return
	}
	h.oauthComplete(w, r, in.Code, in.RedirectURI)
}

// oauthComplete logs in, or registers when no account has the identity.
func (h *Handler) oauthComplete(w http.ResponseWriter, r *http.Request, code, redirectURI string) {
	if strings.TrimSpace(code) == "" {
		writeErr(w, "invalid_request", "missing code", http.StatusBadRequest)
		return
	}
	res, err := h.Engine.Authenticate(r.Context(), authcore.ProviderOAuth, authcore.Credentials{
		Code:        code,
		RedirectURI: redirectURI,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, authcore.NewPublicUser(user))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())
	if _, err := h.Engine.Logout(r.Context(), token); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	token, _ := middleware.TokenFromContext(r.Context())
	sessions, err := h.Engine.ListSessions(r.Context(), user.ID, token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	token, _ := middleware.TokenFromContext(r.Context())
	if err := h.Engine.RevokeSession(r.Context(), user.ID, chi.URLParam(r, "id"), token); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// revokeAll keeps the caller's session unless ?include_current=true.
func (h *Handler) revokeAll(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	keep, _ := middleware.TokenFromContext(r.Context())
	if r.URL.Query().Get("include_current") == "true" {
		keep = ""
	}
	n, err := h.Engine.RevokeAllSessions(r.Context(), user.ID, keep)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}
