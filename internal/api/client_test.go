package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type fakeTokens struct{ token string }

func (f fakeTokens) CsrfToken() string { return f.token }

type fakeIdentity struct {
	uid   string
	authn bool
}

func (f fakeIdentity) Identity() (string, bool) { return f.uid, f.authn }

func TestClient_AttachesPortalHeaders(t *testing.T) {
	t.Parallel()

	var gotCsrf, gotUID string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCsrf = r.Header.Get("X-CSRF-TOKEN")
		gotUID = r.Header.Get("X-FRONTEND-UID")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer s.Close()

	c := NewClient(s.URL, fakeTokens{token: "tok123"}, fakeIdentity{uid: "u1", authn: true})
	if err := c.Post(context.Background(), "/peer/new", map[string]string{"Identifier": "p"}, nil); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if gotCsrf != "tok123" {
		t.Fatalf("csrf header=%q", gotCsrf)
	}
	if gotUID != "u1" {
		t.Fatalf("uid header=%q", gotUID)
	}
}

func TestClient_GetOmitsCsrfHeader(t *testing.T) {
	t.Parallel()

	var hadCsrf bool
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadCsrf = r.Header["X-Csrf-Token"]
		_, _ = w.Write([]byte(`{}`))
	}))
	defer s.Close()

	c := NewClient(s.URL, fakeTokens{token: "tok123"}, fakeIdentity{})
	var out map[string]any
	if err := c.Get(context.Background(), "/interface/all", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hadCsrf {
		t.Fatalf("GET must not carry the CSRF header")
	}
}

func TestClient_EmptyBodyIsNotAnError(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer s.Close()

	c := NewClient(s.URL, fakeTokens{}, fakeIdentity{})
	var out struct{ Identifier string }
	if err := c.Get(context.Background(), "/peer/p1", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.Identifier != "" {
		t.Fatalf("out=%+v", out)
	}
}

func TestClient_ErrorUsesEnvelopeMessage(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"Code":400,"Message":"identifier already in use"}`))
	}))
	defer s.Close()

	c := NewClient(s.URL, fakeTokens{token: "t"}, fakeIdentity{})
	err := c.Post(context.Background(), "/interface/new", map[string]string{}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "identifier already in use") {
		t.Fatalf("error=%q", err)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Fatalf("error missing status: %q", err)
	}
}

func TestClient_ErrorFallsBackToBodyText(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "plain failure", http.StatusInternalServerError)
	}))
	defer s.Close()

	c := NewClient(s.URL, fakeTokens{}, fakeIdentity{})
	err := c.Get(context.Background(), "/audit/entries", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "plain failure") {
		t.Fatalf("error=%q", err)
	}
}

func TestClient_AuthFailureTriggersLogoutHook(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer s.Close()

	var loggedOut atomic.Int32
	c := NewClient(s.URL, fakeTokens{}, fakeIdentity{uid: "u1", authn: true})
	c.SetAuthFailureHook(func() { loggedOut.Add(1) })

	if err := c.Get(context.Background(), "/user/all", nil); err == nil {
		t.Fatalf("expected error")
	}
	if loggedOut.Load() != 1 {
		t.Fatalf("hook calls=%d", loggedOut.Load())
	}
}

func TestClient_AuthFailureIgnoredWhileLoggedOut(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer s.Close()

	var loggedOut atomic.Int32
	c := NewClient(s.URL, fakeTokens{}, fakeIdentity{})
	c.SetAuthFailureHook(func() { loggedOut.Add(1) })

	if err := c.Get(context.Background(), "/user/all", nil); err == nil {
		t.Fatalf("expected error")
	}
	if loggedOut.Load() != 0 {
		t.Fatalf("hook must not fire for unauthenticated requests")
	}
}

func TestClient_FetchSkipsPortalHeaders(t *testing.T) {
	t.Parallel()

	var hadUID bool
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadUID = r.Header["X-Frontend-Uid"]
		_, _ = w.Write([]byte(`"ok"`))
	}))
	defer s.Close()

	c := NewClient("http://portal.invalid", fakeTokens{token: "t"}, fakeIdentity{uid: "u1", authn: true})
	var out string
	if err := c.Fetch(context.Background(), http.MethodGet, s.URL+"/external", nil, &out); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if hadUID {
		t.Fatalf("generic fetch must not carry portal headers")
	}
	if out != "ok" {
		t.Fatalf("out=%q", out)
	}
}
