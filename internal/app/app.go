// Package app wires storage, keys and the session components into one
// client shell.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/kinboard/kinboard/auth"
	"github.com/kinboard/kinboard/client"
	"github.com/kinboard/kinboard/cookie"
	"github.com/kinboard/kinboard/internal/config"
	"github.com/kinboard/kinboard/internal/devicekey"
	"github.com/kinboard/kinboard/internal/util"
	"github.com/kinboard/kinboard/profile"
	"github.com/kinboard/kinboard/session"
	bboltstorage "github.com/kinboard/kinboard/storage/bbolt"
	"github.com/kinboard/kinboard/vault"
)

const (
	dbFileName   = "kinboard.db"
	keyFileName  = "device.key"
	pushPlatform = "cli"
)

// App is an opened client shell.
type App struct {
	Cookies     *cookie.Store
	Vault       *vault.Vault
	Profile     *profile.Store
	Expiries    *session.Bus[session.ExpiryEvent]
	Interceptor *session.Interceptor
	API         *client.Client
	Auth        *auth.Orchestrator

	repo   *bboltstorage.Store
	logger *slog.Logger
}

type options struct {
	logger    *slog.Logger
	transport http.RoundTripper
	alertFn   auth.AlertFunc
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the root logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTransport sets the transport under the expiry interceptor.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// WithAlertFunc receives anomaly alerts. By default they are logged.
func WithAlertFunc(fn auth.AlertFunc) Option {
	return func(o *options) {
		o.alertFn = fn
	}
}

// Open creates the data directory if needed, opens the database and device
// key, and builds every component.
func Open(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.alertFn == nil {
		logger := o.logger
		o.alertFn = func(e auth.AlertEvent) {
			logger.Warn("alert",
				slog.String("type", string(e.Type)),
				slog.String("message", e.Message),
				slog.Int("count", e.Count))
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	master, err := devicekey.LoadOrCreate(filepath.Join(cfg.DataDir, keyFileName))
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(master)
	cookieKey, err := devicekey.Derive(master, devicekey.PurposeCookies)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(cookieKey)
	credentialKey, err := devicekey.Derive(master, devicekey.PurposeCredentials)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(credentialKey)

	repo, err := bboltstorage.Open(filepath.Join(cfg.DataDir, dbFileName), bboltstorage.DefaultLockTimeout)
	if err != nil {
		return nil, err
	}

	a := &App{repo: repo, logger: o.logger}
	if err := a.build(cfg, o, cookieKey, credentialKey); err != nil {
		return nil, errors.Join(err, a.Close())
	}
	return a, nil
}

func (a *App) build(cfg config.Config, o options, cookieKey, credentialKey []byte) error {
	var err error
	a.Cookies, err = cookie.NewStore(a.repo, cookieKey, cookie.WithLogger(o.logger))
	if err != nil {
		return err
	}
	a.Vault, err = vault.New(a.repo, credentialKey, vault.WithLogger(o.logger))
	if err != nil {
		return err
	}
	a.Profile = profile.New(a.repo, profile.WithLogger(o.logger))
	a.Expiries = session.NewBus[session.ExpiryEvent]()
	a.Interceptor = session.NewInterceptor(o.transport, a.Expiries, session.WithLogger(o.logger))
	a.API, err = client.New(cfg.APIURL,
		client.WithCookieJar(a.Cookies.Jar()),
		client.WithTransport(a.Interceptor),
		client.WithTimeout(cfg.RequestTimeout),
		client.WithLogger(o.logger))
	if err != nil {
		return err
	}
	a.Auth, err = auth.New(auth.Deps{
		API:      a.API,
		Cookies:  a.Cookies,
		Vault:    a.Vault,
		Profile:  a.Profile,
		Monitor:  a.Interceptor,
		Expiries: a.Expiries,
	},
		auth.WithMaxBiometricAttempts(cfg.BiometricMaxAttempts),
		auth.WithAlertFunc(o.alertFn),
		auth.WithLogger(o.logger))
	return err
}

// RegisterPush registers token for this installation and remembers it so
// Logout can unregister it.
func (a *App) RegisterPush(ctx context.Context, token string) error {
	installationID, err := a.Profile.InstallationID()
	if err != nil {
		return err
	}
	err = a.API.RegisterPushToken(ctx, client.PushRegistration{
		Token:          token,
		Platform:       pushPlatform,
		InstallationID: installationID,
	})
	if err != nil {
		return err
	}
	return a.Profile.SetPushToken(token)
}

// Close flushes cookies, wipes keys and closes the database.
func (a *App) Close() error {
	var errs []error
	if a.Auth != nil {
		a.Auth.Close()
	}
	if a.Cookies != nil {
		if err := a.Cookies.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing cookie store: %w", err))
		}
	}
	if a.Vault != nil {
		a.Vault.Close()
	}
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	return errors.Join(errs...)
}
