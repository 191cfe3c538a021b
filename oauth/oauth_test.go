package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newProvider(t *testing.T, userinfo http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", userinfo)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
		RedirectURL:  "http://localhost/callback",
		Timeout:      2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func TestExchange_Success(t *testing.T) {
	c, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"sub":"g-123","email":"alice@example.com","name":"Alice","picture":"https://img/a.png"}`))
	})

	id, err := c.Exchange(context.Background(), "good-code", "")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if id.Subject != "g-123" || id.Email != "alice@example.com" || id.Name != "Alice" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestExchange_RejectedCode(t *testing.T) {
	c, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := c.Exchange(context.Background(), "bad-code", "")
	if !errors.Is(err, ErrExchange) {
		t.Fatalf("expected ErrExchange, got %v", err)
	}
}

func TestExchange_MissingCode(t *testing.T) {
	c, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {})

	if _, err := c.Exchange(context.Background(), "  ", ""); !errors.Is(err, ErrExchange) {
		t.Fatalf("expected ErrExchange, got %v", err)
	}
}

func TestExchange_UserInfoFailure(t *testing.T) {
	c, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	_, err := c.Exchange(context.Background(), "good-code", "")
	if !errors.Is(err, ErrExchange) || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected ErrExchange with status, got %v", err)
	}
}

func TestExchange_IncompleteIdentity(t *testing.T) {
	c, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sub":"g-123"}`))
	})

	if _, err := c.Exchange(context.Background(), "good-code", ""); !errors.Is(err, ErrIncompleteIdentity) {
		t.Fatalf("expected ErrIncompleteIdentity, got %v", err)
	}
}

func TestExchange_Timeout(t *testing.T) {
	c, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	c.timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := c.Exchange(context.Background(), "good-code", "")
	if !errors.Is(err, ErrExchange) {
		t.Fatalf("expected ErrExchange, got %v", err)
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Fatal("exchange did not honour its timeout")
	}
}

func TestAuthCodeURL(t *testing.T) {
	c, srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {})

	u := c.AuthCodeURL("state-1")
	if !strings.HasPrefix(u, srv.URL+"/auth?") || !strings.Contains(u, "state=state-1") || !strings.Contains(u, "prompt=select_account") {
		t.Fatalf("unexpected auth url %q", u)
	}
}

func TestNewClient_RequiresEndpoints(t *testing.T) {
	if _, err := NewClient(Config{ClientID: "x"}); err == nil {
		t.Fatal("expected error without endpoints")
	}
}
