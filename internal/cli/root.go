package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ddowsett/quizroom-go/internal/factory"
	redisstore "github.com/ddowsett/quizroom-go/internal/store/redis"
)

var (
	cfg *Config
	app *factory.App
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	_ = godotenv.Load()
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "quizroom",
		Short: "Multiplayer trivia rooms over a shared document store",
		Long: `quizroom runs multiplayer trivia rooms with no game server: every
client connects to the same document store, writes its own moves and
follows everyone else's through the store's change feed.

Create a room, share its id, have friends "play" it, and type "start"
when everyone is in (only the room's creator can start the round).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			}))

			factoryCfg := factory.Config{
				Logger:       logger,
				StorageType:  cfg.StorageType,
				IdentityFile: cfg.IdentityFile,
				DisplayName:  cfg.DisplayName,
			}
			if cfg.StorageType == factory.StorageTypeRedis {
				redisCfg := redisstore.DefaultConfig()
				redisCfg.URL = cfg.RedisURL
				factoryCfg.RedisConfig = &redisCfg
			}

			var err error
			app, err = factory.New(factoryCfg)
			return err
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.StorageType, "store", cfg.StorageType, "Storage backend: redis, memory (env: QUIZROOM_STORE)")
	rootCmd.PersistentFlags().StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL (env: QUIZROOM_REDIS_URL)")
	rootCmd.PersistentFlags().StringVar(&cfg.DisplayName, "name", cfg.DisplayName, "Display name (env: QUIZROOM_NAME)")
	rootCmd.PersistentFlags().StringVar(&cfg.IdentityFile, "identity-file", cfg.IdentityFile, "Identity file path (env: QUIZROOM_IDENTITY_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newCreateCmd())
	rootCmd.AddCommand(newRoomsCmd())
	rootCmd.AddCommand(newPlayCmd())
	rootCmd.AddCommand(newLeaderboardCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
