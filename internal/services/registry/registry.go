package registry

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/paddleduel/internal/dependencies/clock"
	"github.com/mcoot/paddleduel/internal/metrics"
	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/storage"
)

const (
	// MinUsernameLength is the shortest accepted username after trimming
	MinUsernameLength = 3
	// MaxUsernameLength is the longest accepted username after trimming
	MaxUsernameLength = 20
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config holds registration limits
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultConfig allows 3 registration attempts per 10 seconds
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Window:      10 * time.Second,
	}
}

// Registry binds connections to player identities
type Registry struct {
	storage storage.Storage
	clock   clock.Clock
	limiter *RateLimiter
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	players map[model.ConnectionID]*model.Player
}

// New creates a Registry
func New(store storage.Storage, clk clock.Clock, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Registry {
	if cfg.MaxAttempts <= 0 || cfg.Window <= 0 {
		cfg = DefaultConfig()
	}
	return &Registry{
		storage: store,
		clock:   clk,
		limiter: NewRateLimiter(clk, cfg.MaxAttempts, cfg.Window),
		metrics: m,
		logger:  logger.With(slog.String("component", "registry")),
		players: make(map[model.ConnectionID]*model.Player),
	}
}

// ValidateUsername checks a raw username and returns its trimmed form
func ValidateUsername(raw any) (string, error) {
	if raw == nil {
		return "", fmt.Errorf("%w: username is required", model.ErrValidation)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: username must be a string", model.ErrValidation)
	}
	name := strings.TrimSpace(s)
	if name == "" {
		return "", fmt.Errorf("%w: username is required", model.ErrValidation)
	}
	if len(name) < MinUsernameLength || len(name) > MaxUsernameLength {
		return "", fmt.Errorf("%w: username must be %d-%d characters",
			model.ErrValidation, MinUsernameLength, MaxUsernameLength)
	}
	if !usernamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: username may only contain letters, digits, underscores and hyphens",
			model.ErrValidation)
	}
	return name, nil
}

// Register validates the username, loads or creates its profile and binds it
// to the connection. Rate limiting is checked before anything else.
func (r *Registry) Register(ctx context.Context, connID model.ConnectionID, rawUsername any) (*model.Player, error) {
	if !r.limiter.Allow(connID) {
		r.metrics.RegistrationRejected("rate_limited")
		return nil, model.ErrRateLimited
	}

	username, err := ValidateUsername(rawUsername)
	if err != nil {
		r.metrics.RegistrationRejected("invalid")
		return nil, err
	}

	now := r.clock.Now()
	profile, err := r.storage.EnsureProfile(ctx, &model.Profile{
		ID:          model.PlayerID(uuid.NewString()),
		Username:    username,
		DisplayName: username,
		CreatedAt:   now,
		LastSeenAt:  now,
	})
	if err != nil {
		r.metrics.RegistrationRejected("storage")
		return nil, fmt.Errorf("load profile: %w", err)
	}

	player := &model.Player{
		ConnectionID: connID,
		PlayerID:     profile.ID,
		Username:     profile.Username,
		DisplayName:  profile.DisplayName,
		RegisteredAt: now,
	}

	r.mu.Lock()
	r.players[connID] = player
	r.mu.Unlock()

	r.metrics.PlayerRegistered()
	r.logger.Info("player registered",
		slog.String("connection_id", string(connID)),
		slog.String("player_id", string(profile.ID)),
		slog.String("username", username))

	out := *player
	return &out, nil
}

// Get returns the player bound to a connection
func (r *Registry) Get(connID model.ConnectionID) (*model.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[connID]
	if !ok {
		return nil, model.ErrNotRegistered
	}
	out := *p
	return &out, nil
}

// Unregister removes a connection's binding and rate-limit state
func (r *Registry) Unregister(connID model.ConnectionID) {
	r.mu.Lock()
	delete(r.players, connID)
	r.mu.Unlock()
	r.limiter.Forget(connID)
}

// Count returns the number of registered connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
