package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/ddowsett/quizroom-go/internal/dependencies/random"
	"github.com/ddowsett/quizroom-go/internal/identity"
	"github.com/ddowsett/quizroom-go/internal/model"
	"github.com/ddowsett/quizroom-go/internal/services/leaderboard"
	"github.com/ddowsett/quizroom-go/internal/services/room"
	"github.com/ddowsett/quizroom-go/internal/services/session"
	"github.com/ddowsett/quizroom-go/internal/store"
	"github.com/ddowsett/quizroom-go/internal/store/memory"
	redisstore "github.com/ddowsett/quizroom-go/internal/store/redis"
	"github.com/ddowsett/quizroom-go/internal/trivia"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components. There are no ambient
// singletons: every component receives its store, clock, random and
// content-source handles here.
type App struct {
	// Storage
	Store store.Store

	// External dependencies
	Clock    clockwork.Clock
	Random   random.Random
	Trivia   trivia.Source
	Identity identity.Provider

	// Services
	Rooms       *room.Controller
	Leaderboard *leaderboard.Service

	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstore.Config
	// TriviaConfig holds trivia client settings
	// If zero value, defaults to trivia.DefaultConfig()
	TriviaConfig trivia.Config
	// IdentityFile is where the guest identity is persisted
	IdentityFile string
	// DisplayName is how the local user appears to other players
	DisplayName string
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	var st store.Store
	switch storageType {
	case StorageTypeMemory:
		st = memory.New(logger)
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstore.New(*cfg.RedisConfig, logger)
		if err != nil {
			return nil, err
		}
		st = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	clk := clockwork.NewRealClock()
	rnd := random.New()

	triviaCfg := cfg.TriviaConfig
	if triviaCfg.BaseURL == "" {
		triviaCfg = trivia.DefaultConfig()
	}
	triviaClient := trivia.New(triviaCfg, nil, rnd, logger)

	var provider identity.Provider
	if cfg.IdentityFile != "" {
		provider = identity.NewGuestProvider(cfg.IdentityFile, cfg.DisplayName)
	}

	return newWithDependencies(st, clk, rnd, triviaClient, provider, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	st store.Store,
	clk clockwork.Clock,
	rnd random.Random,
	triviaSource trivia.Source,
	provider identity.Provider,
	logger *slog.Logger,
) *App {
	rooms := room.NewController(st, triviaSource, clk, rnd, logger)
	lb := leaderboard.New(st, clk, logger)

	return &App{
		Store:       st,
		Clock:       clk,
		Random:      rnd,
		Trivia:      triviaSource,
		Identity:    provider,
		Rooms:       rooms,
		Leaderboard: lb,
		logger:      logger,
	}
}

// NewSession creates a session for one player in one room, sharing the
// app's controller and clock
func (a *App) NewSession(roomID model.RoomID, playerID model.PlayerID) *session.Session {
	return session.New(a.Rooms, a.Clock, a.logger, roomID, playerID)
}
