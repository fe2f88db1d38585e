package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/iamasit07/guess-master/backend/internal/config"
	"github.com/iamasit07/guess-master/backend/pkg/logger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "guess-master",
		Short: "Real-time multiplayer guessing game backend",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnvFiles()
			config.SetDefaults(v)
			v.AutomaticEnv()
			logger.Setup(v.GetString("LOG_LEVEL"), v.GetString("ENVIRONMENT"))
		},
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("port", "", "HTTP listen port")
	flags.String("database-url", "", "PostgreSQL connection string (memory storage when empty)")
	flags.String("redis-url", "", "Redis address for the profile cache")
	flags.Int("round-duration", 0, "round length in seconds")

	bindings := map[string]string{
		"PORT":                   "port",
		"DATABASE_URL":           "database-url",
		"REDIS_URL":              "redis-url",
		"ROUND_DURATION_SECONDS": "round-duration",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			log.Fatal().Err(err).Str("flag", name).Msg("failed to bind flag")
		}
	}

	serve := newServeCmd(v)
	root.AddCommand(serve, newMigrateCmd(v))

	// serve is the default command
	root.RunE = serve.RunE
	return root
}
