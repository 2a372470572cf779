package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/voicecal/voicecal/internal/profile"
	"github.com/voicecal/voicecal/server"
	"github.com/voicecal/voicecal/store"
	"github.com/voicecal/voicecal/store/db"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "voicecal",
	Short: "Voice-driven calendar assistant server",
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:              viper.GetString("mode"),
			Addr:              viper.GetString("addr"),
			Port:              viper.GetInt("port"),
			Data:              viper.GetString("data"),
			DSN:               viper.GetString("dsn"),
			Driver:            viper.GetString("driver"),
			Version:           version,
			JWTSecret:         viper.GetString("jwt-secret"),
			AuthBypass:        viper.GetBool("auth-bypass"),
			OpenAIAPIKey:      viper.GetString("openai-api-key"),
			OpenAIBaseURL:     viper.GetString("openai-base-url"),
			LLMModel:          viper.GetString("llm-model"),
			InterpreterBypass: viper.GetBool("interpreter-bypass"),
			DefaultTimezone:   viper.GetString("timezone"),
			ReminderCron:      viper.GetString("reminder-cron"),
		}
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		driver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create store driver", "error", err)
			os.Exit(1)
		}
		st := store.New(driver, instanceProfile)

		srv, err := server.NewServer(ctx, instanceProfile, st)
		if err != nil {
			slog.Error("failed to create server", "error", err)
			os.Exit(1)
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sig
			slog.Info("shutting down")
			cancel()
		}()

		if err := srv.Start(ctx); err != nil {
			slog.Error("server exited with error", "error", err)
			os.Exit(1)
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("mode", "demo", `server mode: "demo", "dev" or "prod"`)
	flags.String("addr", "", "binding address")
	flags.Int("port", 8082, "binding port")
	flags.String("data", ".", "data directory (sqlite driver)")
	flags.String("driver", "memory", `event store backend: "memory" or "sqlite"`)
	flags.String("dsn", "", "database connection string")
	flags.String("jwt-secret", "", "secret for verifying bearer tokens")
	flags.Bool("auth-bypass", false, "serve every request as the dev user (non-prod)")
	flags.String("openai-api-key", "", "API key for the LLM interpreter")
	flags.String("openai-base-url", "", "base URL for the LLM interpreter")
	flags.String("llm-model", "", "chat model used for interpretation")
	flags.Bool("interpreter-bypass", false, "always use the keyword interpreter")
	flags.String("timezone", "", "default IANA timezone for requests without one")
	flags.String("reminder-cron", "* * * * *", "cron spec for the reminder scan (empty disables)")

	viper.SetEnvPrefix("voicecal")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
