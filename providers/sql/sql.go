// Package sql provides a process-wide SQL connection pool as a singleton
// provider, with drivers selected by DSN scheme.
package sql

import (
	"context"
	"database/sql"
	"net/url"
	"sync"
	"time"

	"github.com/alecthomas/errors"
	"github.com/jpillora/backoff"

	"github.com/alecthomas/providence"
	"github.com/alecthomas/providence/providers/logging"
)

// ErrConstraint is returned by [TranslateError] for constraint violations.
var ErrConstraint = errors.New("constraint violation")

// Driver adapts a database/sql driver to the provider.
type Driver interface {
	Name() string
	// Open a connection pool for the given DSN.
	Open(dsn string) (*sql.DB, error)
	// TranslateError maps driver-specific errors onto portable ones such as
	// [ErrConstraint]. Unrecognized errors are returned unchanged.
	TranslateError(err error) error
}

var (
	driversLock sync.Mutex
	drivers     = map[string]Driver{}
)

// Register a driver for a DSN scheme.
func Register(scheme string, driver Driver) {
	driversLock.Lock()
	defer driversLock.Unlock()
	drivers[scheme] = driver
}

// Config for the SQL provider.
type Config struct {
	DSN            string        `help:"DSN for the SQL connection." default:"sqlite://file::memory:?mode=memory&cache=shared"`
	ConnectTimeout time.Duration `help:"How long to wait for the database to become ready." default:"30s"`
}

var config = Config{
	DSN:            "sqlite://file::memory:?mode=memory&cache=shared",
	ConnectTimeout: 30 * time.Second,
}

// Configure sets the SQL configuration. It must be called before the first
// guarded access to [Provider] or anything that requires it.
func Configure(c Config) { config = c }

// Provider is the SQL connection pool singleton.
var Provider *providence.Provider

var db *providence.Field[*sql.DB]

func init() {
	Provider = providence.MustDeclare("sql",
		providence.Requires(logging.Provider),
		providence.Init(initialize),
		providence.Ping(ping),
	)
	db = providence.NewField[*sql.DB](Provider, "db")
}

func initialize(ctx context.Context) error {
	logger, err := logging.Logger(ctx)
	if err != nil {
		return err
	}

	u, err := url.Parse(config.DSN)
	if err != nil {
		return errors.Errorf("failed to parse DSN: %w", err)
	}
	driversLock.Lock()
	driver, ok := drivers[u.Scheme]
	driversLock.Unlock()
	if !ok {
		return errors.Errorf("unsupported SQL DSN scheme: %s", u.Scheme)
	}

	pool, err := driver.Open(config.DSN)
	if err != nil {
		return errors.Errorf("failed to open %s connection: %w", driver.Name(), err)
	}

	if err := waitForReady(ctx, pool); err != nil {
		_ = pool.Close()
		return err
	}

	logger.Debug("Connected to database", "driver", driver.Name())
	return db.Set(ctx, pool)
}

// waitForReady pings the pool with exponential backoff until it responds or
// the connect timeout elapses.
func waitForReady(ctx context.Context, pool *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()
	retry := &backoff.Backoff{Min: time.Millisecond * 100, Max: time.Second * 2, Jitter: true}
	for {
		err := pool.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Errorf("database did not become ready: %w", err)
		case <-time.After(retry.Duration()):
		}
	}
}

func ping(ctx context.Context) error {
	pool, err := db.Get(ctx)
	if err != nil {
		return err
	}
	return errors.WithStack(pool.PingContext(ctx))
}

// DB returns the connection pool, initializing the provider on first use.
func DB(ctx context.Context) (*sql.DB, error) {
	return db.Get(ctx)
}

// TranslateError maps driver-specific errors onto portable ones such as
// [ErrConstraint]. Unrecognized errors are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	driversLock.Lock()
	defer driversLock.Unlock()
	for _, driver := range drivers {
		if translated := driver.TranslateError(err); translated != err { //nolint:errorlint
			return translated
		}
	}
	return err
}
