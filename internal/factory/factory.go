package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/paddleduel/internal/api"
	"github.com/mcoot/paddleduel/internal/dependencies/clock"
	"github.com/mcoot/paddleduel/internal/dependencies/notifier"
	"github.com/mcoot/paddleduel/internal/dependencies/random"
	"github.com/mcoot/paddleduel/internal/gateway"
	"github.com/mcoot/paddleduel/internal/metrics"
	"github.com/mcoot/paddleduel/internal/services/matchmaking"
	"github.com/mcoot/paddleduel/internal/services/rating"
	"github.com/mcoot/paddleduel/internal/services/registry"
	"github.com/mcoot/paddleduel/internal/services/relay"
	"github.com/mcoot/paddleduel/internal/services/room"
	"github.com/mcoot/paddleduel/internal/services/session"
	"github.com/mcoot/paddleduel/internal/services/supervisor"
	"github.com/mcoot/paddleduel/internal/storage"
	"github.com/mcoot/paddleduel/internal/storage/memory"
	pgstorage "github.com/mcoot/paddleduel/internal/storage/postgres"
	redisstorage "github.com/mcoot/paddleduel/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock   clock.Clock
	Random  random.Random
	Metrics *metrics.Metrics

	// Services
	Registry   *registry.Registry
	Queue      *matchmaking.Queue
	Rooms      *room.Manager
	Rating     *rating.Service
	Relay      *relay.Engine
	Supervisor *supervisor.Supervisor
	Session    *session.Service

	// Transport
	Hub     *gateway.Hub
	Gateway *gateway.Handler

	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds database settings (required if StorageType is "postgres")
	PostgresConfig *pgstorage.Config
	// Registration limits; zero value uses registry.DefaultConfig()
	Registration registry.Config
	// GracePeriod is how long a disconnected seat is held; zero uses the default
	GracePeriod time.Duration
	// Gateway holds websocket settings; zero fields use gateway defaults
	Gateway gateway.Config
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	hub := gateway.NewHub(m, logger)
	app := newWithDependencies(store, clock.New(), random.New(), m, hub, hub, cfg, logger)
	app.registerGauges()
	return app, nil
}

func newStorage(ctx context.Context, cfg Config, logger *slog.Logger) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		return pgstorage.New(ctx, *cfg.PostgresConfig, logger)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'postgres'", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing).
// Events go to n; hub only carries websocket connections.
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	m *metrics.Metrics,
	hub *gateway.Hub,
	n notifier.Notifier,
	cfg Config,
	logger *slog.Logger,
) *App {
	reg := registry.New(store, clk, cfg.Registration, m, logger)
	queue := matchmaking.New(clk)
	rooms := room.NewManager(clk, rnd, m, logger)
	ratingService := rating.NewService(store, clk, m, logger)
	engine := relay.NewEngine(rooms, n, ratingService, clk, m, logger)
	sup := supervisor.New(queue, rooms, reg, n, m, cfg.GracePeriod, logger)
	sessions := session.NewService(reg, queue, rooms, engine, sup, n, m, logger)

	return &App{
		Storage:    store,
		Clock:      clk,
		Random:     rnd,
		Metrics:    m,
		Registry:   reg,
		Queue:      queue,
		Rooms:      rooms,
		Rating:     ratingService,
		Relay:      engine,
		Supervisor: sup,
		Session:    sessions,
		Hub:        hub,
		Gateway:    gateway.NewHandler(hub, sessions, cfg.Gateway, logger),
		logger:     logger,
	}
}

func (a *App) registerGauges() {
	a.Metrics.RegisterGauge("rooms_active", "Rooms currently held in memory.", func() float64 {
		return float64(a.Rooms.Len())
	})
	a.Metrics.RegisterGauge("queue_length", "Players waiting in the matchmaking queue.", func() float64 {
		return float64(a.Queue.Len())
	})
	a.Metrics.RegisterGauge("connections_active", "Open websocket connections.", func() float64 {
		return float64(a.Hub.ClientCount())
	})
	a.Metrics.RegisterGauge("players_registered", "Connections bound to a player.", func() float64 {
		return float64(a.Registry.Count())
	})
}

// Router builds the HTTP handler serving the API, metrics and websocket endpoints
func (a *App) Router() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:    a.logger,
		Storage:   a.Storage,
		Sessions:  a.Session,
		Metrics:   a.Metrics,
		WebSocket: a.Gateway,
	})
}

// Close drops every websocket connection and releases the store
func (a *App) Close() error {
	a.Hub.Close()
	if c, ok := a.Storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
