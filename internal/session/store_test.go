package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"portalctl/internal/api"
	"portalctl/internal/model"
	"portalctl/internal/notify"
)

type noTokens struct{}

func (noTokens) CsrfToken() string { return "" }

func newTestStore(t *testing.T, handler http.Handler) (*Store, *notify.Recorder, *httptest.Server) {
	t.Helper()

	s := httptest.NewServer(handler)
	t.Cleanup(s.Close)

	rec := &notify.Recorder{}
	store, err := NewStore(filepath.Join(t.TempDir(), "state.yaml"), rec)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	client := api.NewClient(s.URL, noTokens{}, store)
	store.AttachClient(client)
	return store, rec, s
}

func TestStore_RehydratesFromStateFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.yaml")
	st := &State{
		User:      &model.Session{UserIdentifier: "u1", Firstname: "Ada", IsAdmin: true},
		ReturnURL: "/users",
	}
	if err := SaveState(path, st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	store, err := NewStore(path, &notify.Recorder{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if !store.IsAuthenticated() {
		t.Fatalf("expected authenticated")
	}
	if got := store.UserIdentifier(); got != "u1" {
		t.Fatalf("uid=%q", got)
	}
	if !store.IsAdmin() {
		t.Fatalf("expected admin")
	}
	if got := store.ReturnURL(); got != "/users" {
		t.Fatalf("return url=%q", got)
	}
}

func TestStore_UserIdentifierFallsBackToUnknown(t *testing.T) {
	t.Parallel()

	store, err := NewStore(filepath.Join(t.TempDir(), "state.yaml"), &notify.Recorder{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if got := store.UserIdentifier(); got != "unknown" {
		t.Fatalf("uid=%q", got)
	}
}

func TestLoadSession_LoggedOutResponseClearsStateAndErrors(t *testing.T) {
	t.Parallel()

	store, _, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.SessionInfo{LoggedIn: false})
	}))
	store.setUser(&model.Session{UserIdentifier: "stale"})

	_, err := store.LoadSession(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err=%v", err)
	}
	if store.IsAuthenticated() {
		t.Fatalf("state must be cleared")
	}
}

func TestLoadSession_SuccessStoresSessionAndConsumesReturnURL(t *testing.T) {
	t.Parallel()

	uid := "u7"
	first := "Grace"
	store, _, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.SessionInfo{
			LoggedIn:       true,
			IsAdmin:        true,
			UserIdentifier: &uid,
			UserFirstname:  &first,
		})
	}))
	store.SetReturnURL("/interfaces")

	got, err := store.LoadSession(context.Background())
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got != "u7" {
		t.Fatalf("uid=%q", got)
	}
	if store.ReturnURL() != "/" {
		t.Fatalf("return url not reset: %q", store.ReturnURL())
	}
	user := store.User()
	if user == nil || user.Firstname != "Grace" || !user.IsAdmin {
		t.Fatalf("user=%+v", user)
	}
}

func TestLogin_FailureClearsStateAndPropagates(t *testing.T) {
	t.Parallel()

	store, _, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(model.Error{Code: 401, Message: "bad credentials"})
	}))
	store.setUser(&model.Session{UserIdentifier: "stale"})

	if _, err := store.Login(context.Background(), "admin", "nope"); err == nil {
		t.Fatalf("expected error")
	}
	if store.IsAuthenticated() {
		t.Fatalf("state must be cleared")
	}
}

func TestLogin_SuccessPersistsAcrossRestarts(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.User{Identifier: "u1", Firstname: "Ada", IsAdmin: true})
	}))
	defer s.Close()

	path := filepath.Join(t.TempDir(), "state.yaml")
	store, err := NewStore(path, &notify.Recorder{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	store.AttachClient(api.NewClient(s.URL, noTokens{}, store))

	if _, err := store.Login(context.Background(), "admin", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// A fresh store rehydrates the same session without network access.
	again, err := NewStore(path, &notify.Recorder{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if got := again.UserIdentifier(); got != "u1" {
		t.Fatalf("uid=%q", got)
	}
}

func TestForceLogout_ClearsStateWithoutNetwork(t *testing.T) {
	t.Parallel()

	store, rec, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	store.setUser(&model.Session{UserIdentifier: "u1"})

	store.ForceLogout()
	if store.IsAuthenticated() {
		t.Fatalf("expected logged out")
	}
	if rec.Count() != 1 {
		t.Fatalf("notifications=%d", rec.Count())
	}

	// Idempotent while logged out.
	store.ForceLogout()
	if rec.Count() != 1 {
		t.Fatalf("notifications=%d", rec.Count())
	}
}

type scriptedAuthenticator struct {
	assertion json.RawMessage
	err       error
}

func (a scriptedAuthenticator) SignAssertion(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	return a.assertion, a.err
}

func TestPasskeyLogin_MapsStepFailures(t *testing.T) {
	t.Parallel()

	t.Run("start", func(t *testing.T) {
		t.Parallel()
		store, _, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		_, err := store.PasskeyLogin(context.Background(), scriptedAuthenticator{})
		if !errors.Is(err, ErrPasskeyStart) {
			t.Fatalf("err=%v", err)
		}
	})

	t.Run("ceremony", func(t *testing.T) {
		t.Parallel()
		store, _, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"publicKey":{}}`))
		}))
		_, err := store.PasskeyLogin(context.Background(), scriptedAuthenticator{err: errors.New("no key")})
		if !errors.Is(err, ErrPasskeyCeremony) {
			t.Fatalf("err=%v", err)
		}
	})

	t.Run("finish", func(t *testing.T) {
		t.Parallel()
		store, _, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/auth/webauthn/login/start" {
				_, _ = w.Write([]byte(`{"publicKey":{}}`))
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		}))
		_, err := store.PasskeyLogin(context.Background(), scriptedAuthenticator{assertion: json.RawMessage(`{"id":"cred"}`)})
		if !errors.Is(err, ErrPasskeyFinish) {
			t.Fatalf("err=%v", err)
		}
	})
}

func TestPasskeyLogin_Success(t *testing.T) {
	t.Parallel()

	store, rec, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/webauthn/login/start":
			_, _ = w.Write([]byte(`{"publicKey":{"challenge":"abc"}}`))
		case "/auth/webauthn/login/finish":
			_ = json.NewEncoder(w).Encode(model.User{Identifier: "u9"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	uid, err := store.PasskeyLogin(context.Background(), scriptedAuthenticator{assertion: json.RawMessage(`{"id":"cred"}`)})
	if err != nil {
		t.Fatalf("PasskeyLogin: %v", err)
	}
	if uid != "u9" {
		t.Fatalf("uid=%q", uid)
	}
	if !store.IsAuthenticated() {
		t.Fatalf("expected authenticated")
	}
	if rec.Count() != 1 {
		t.Fatalf("notifications=%d", rec.Count())
	}
}
