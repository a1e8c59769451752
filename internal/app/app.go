// Package app wires the portal client together. All stores are plain
// values handed their dependencies here, nothing reaches for globals.
package app

import (
	"fmt"
	"path/filepath"
	"time"

	"portalctl/internal/api"
	"portalctl/internal/background"
	"portalctl/internal/config"
	"portalctl/internal/metrics"
	"portalctl/internal/notify"
	"portalctl/internal/realtime"
	"portalctl/internal/router"
	"portalctl/internal/security"
	"portalctl/internal/session"
	"portalctl/internal/store"
)

// sessionFile is the state file name inside the state dir.
const sessionFile = "session.yaml"

// App bundles every component of the portal client.
type App struct {
	Config config.Config
	Notes  notify.Notifier

	Client   *api.Client
	Security *security.Store
	Session  *session.Store

	Interfaces *store.InterfaceStore
	Peers      *store.PeerStore
	Users      *store.UserStore
	Audit      *store.AuditStore
	Profile    *store.ProfileStore
	Settings   *store.SettingsStore

	Realtime  *realtime.Channel
	Navigator *router.Navigator
	Samples   *metrics.Log
	Jobs      *background.Jobs
}

// New builds the component graph. The session and security stores come
// first because the API client sources its headers from them; the
// client is attached to both afterwards.
func New(cfg config.Config, notes notify.Notifier) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.ApplyDefaults(&cfg)
	if notes == nil {
		notes = notify.LogNotifier{}
	}

	sec := security.NewStore(notes)
	sess, err := session.NewStore(filepath.Join(cfg.Portal.StateDir, sessionFile), notes)
	if err != nil {
		return nil, fmt.Errorf("load session state: %w", err)
	}

	client := api.NewClient(cfg.Portal.BaseURL, sec, sess)
	client.SetTimeout(time.Duration(cfg.Portal.TimeoutSec) * time.Second)
	sec.AttachClient(client)
	sess.AttachClient(client)

	a := &App{
		Config:   cfg,
		Notes:    notes,
		Client:   client,
		Security: sec,
		Session:  sess,

		Interfaces: store.NewInterfaceStore(client, notes),
		Peers:      store.NewPeerStore(client, notes),
		Users:      store.NewUserStore(client, notes),
		Audit:      store.NewAuditStore(client, notes),
		Profile:    store.NewProfileStore(client, notes, sess),
		Settings:   store.NewSettingsStore(client, notes),

		Samples: metrics.NewLog(0),
		Jobs:    background.New(),
	}

	channel, err := realtime.NewChannel(cfg.Portal.BaseURL, sess, a.Peers, a.Interfaces)
	if err != nil {
		return nil, fmt.Errorf("realtime channel: %w", err)
	}
	channel.SetReconnectInterval(time.Duration(cfg.Portal.ReconnectSec) * time.Second)
	a.Realtime = channel

	// A rejected request means the backend no longer knows the session.
	// The hook only clears local state, it must not call the backend.
	client.SetAuthFailureHook(func() {
		sess.ForceLogout()
		channel.Disconnect()
	})

	a.Navigator = router.NewNavigator(router.NewGuard(sess, notes), sess, sec)

	if err := a.Jobs.Schedule(time.Duration(cfg.Portal.SessionCheckSec)*time.Second,
		background.SessionCheck(sess)); err != nil {
		return nil, err
	}
	if err := a.Jobs.Schedule(time.Duration(cfg.Portal.StatsRefreshSec)*time.Second,
		background.StatsRefresh(sess, a.Interfaces, a.Peers, a.Samples, cfg.Portal.MetricsPath)); err != nil {
		return nil, err
	}

	return a, nil
}

// Start launches the background jobs and, for an authenticated session,
// the realtime channel.
func (a *App) Start() {
	a.Jobs.Start()
}

// Stop shuts the background machinery down.
func (a *App) Stop() {
	a.Realtime.Disconnect()
	a.Jobs.Stop()
}
