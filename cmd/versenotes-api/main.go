package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PlebRick/VerseNotes/internal/auth"
	"github.com/PlebRick/VerseNotes/internal/config"
	"github.com/PlebRick/VerseNotes/internal/database"
	"github.com/PlebRick/VerseNotes/internal/logging"
	"github.com/PlebRick/VerseNotes/internal/metrics"
	"github.com/PlebRick/VerseNotes/internal/notes"
	"github.com/PlebRick/VerseNotes/internal/passage"
	"github.com/PlebRick/VerseNotes/internal/scripture"
	"github.com/PlebRick/VerseNotes/internal/server"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "versenotes-api",
		Short: "VerseNotes Bible study backend",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newResolveCommand(), newTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("passage-base-url", defaults.GetString("passage.base_url"), "Passage API base URL")
	cmd.PersistentFlags().String("translation", defaults.GetString("passage.translation"), "Passage translation code")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "passage.base_url", "passage-base-url")
	bindFlag(cmd, "passage.translation", "translation")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <reference>",
		Short: "Print the canonical form of a scripture reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := scripture.Resolve(args[0])
			if !result.Parsed() {
				return result.Reason
			}
			fmt.Fprintln(cmd.OutOrStdout(), scripture.Format(result.Reference))
			return nil
		},
	}
}

func newTokenCommand() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a personal access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(appConfig.AuthSigningSecret),
				TokenTTL:      appConfig.AuthTokenTTL,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.IssueToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "owner", "Token subject")
	return cmd
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, appConfig.NotesStorageKey, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store, err := database.NewKeyValueStore(db)
	if err != nil {
		return err
	}

	notesService, err := notes.Open(ctx, notes.ServiceConfig{
		Storage:    store,
		StorageKey: appConfig.NotesStorageKey,
		Clock:      time.Now,
		IDProvider: notes.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	passages, err := passage.NewClient(passage.ClientConfig{
		BaseURL:           appConfig.PassageBaseURL,
		Translation:       appConfig.PassageTranslation,
		Timeout:           appConfig.PassageTimeout,
		RequestsPerSecond: appConfig.PassageRate,
		Burst:             appConfig.PassageBurst,
		Observer:          recorder,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	dependencies := server.Dependencies{
		NotesService:       notesService,
		Passages:           passages,
		Realtime:           server.NewRealtimeDispatcher(),
		Metrics:            recorder,
		Logger:             logger,
		CORSAllowedOrigins: appConfig.CORSAllowedOrigins,
		StreamHeartbeat:    appConfig.StreamHeartbeat,
	}
	if appConfig.AuthEnabled() {
		issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
			SigningSecret: []byte(appConfig.AuthSigningSecret),
			TokenTTL:      appConfig.AuthTokenTTL,
		})
		if err != nil {
			return err
		}
		dependencies.TokenValidator = issuer
	} else {
		logger.Warn("authentication disabled; set VERSENOTES_AUTH_SIGNING_SECRET to require tokens")
	}

	handler, err := server.NewHTTPHandler(dependencies)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("translation", passages.Translation()),
			zap.Bool("auth_enabled", appConfig.AuthEnabled()),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
