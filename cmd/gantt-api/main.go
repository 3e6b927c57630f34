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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/simplegantt/planner/internal/auth"
	"github.com/simplegantt/planner/internal/config"
	"github.com/simplegantt/planner/internal/database"
	"github.com/simplegantt/planner/internal/logging"
	"github.com/simplegantt/planner/internal/memstore"
	"github.com/simplegantt/planner/internal/planner"
	"github.com/simplegantt/planner/internal/seed"
	"github.com/simplegantt/planner/internal/server"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gantt-api",
		Short: "Gantt planner backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newMigrateCommand(), newSeedCommand(), newTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().StringSlice("cors-origins", defaults.GetStringSlice("http.cors_origins"), "Allowed CORS origins")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, mysql, memory)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", "", "MySQL data source name")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("signing-secret", "", "API token signing secret; enables authentication")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "API token TTL in minutes")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.cors_origins", "cors-origins")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
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
		if cfgFile != "" || !errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// appRuntime bundles the collaborators every subcommand needs.
type appRuntime struct {
	config  config.AppConfig
	logger  *zap.Logger
	service *planner.Service
	close   func()
}

func newRuntime() (*appRuntime, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return nil, err
	}

	closers := []func(){func() { _ = logger.Sync() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var store planner.Store
	if appConfig.DatabaseDriver == config.DriverMemory {
		store = memstore.New()
	} else {
		db, err := database.Open(database.Options{
			Driver: appConfig.DatabaseDriver,
			Path:   appConfig.DatabasePath,
			DSN:    appConfig.DatabaseDSN,
		}, logger)
		if err != nil {
			closeAll()
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = sqlDB.Close() })
		store = database.NewStore(db)
	}

	service, err := planner.NewService(planner.ServiceConfig{
		Store:      store,
		Clock:      time.Now,
		IDProvider: planner.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		closeAll()
		return nil, err
	}

	return &appRuntime{config: appConfig, logger: logger, service: service, close: closeAll}, nil
}

func runServer(ctx context.Context) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.config.DatabaseDriver == config.DriverMemory {
		fixture, err := seed.Demo()
		if err != nil {
			return err
		}
		result, err := seed.Apply(ctx, rt.service, fixture, time.Now())
		if err != nil {
			return err
		}
		rt.logger.Info("memory store seeded with demo data",
			zap.Int("users", result.Users),
			zap.Int("projects", result.Projects),
			zap.Int("tasks", result.Tasks),
		)
	}

	deps := server.Dependencies{
		Service:     rt.service,
		Logger:      rt.logger,
		CORSOrigins: rt.config.CORSOrigins,
	}
	if rt.config.AuthEnabled() {
		validator, err := auth.NewTokenValidator(auth.TokenValidatorConfig{
			SigningSecret: []byte(rt.config.AuthSigningSecret),
			Issuer:        rt.config.AuthIssuer,
			CookieName:    rt.config.AuthCookieName,
		})
		if err != nil {
			return err
		}
		deps.Validator = validator
	}

	handler, err := server.NewHTTPHandler(deps)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              rt.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("server starting",
			zap.String("address", rt.config.HTTPAddress),
			zap.String("database_driver", rt.config.DatabaseDriver),
			zap.Bool("auth_enabled", rt.config.AuthEnabled()),
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

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()
			if rt.config.DatabaseDriver == config.DriverMemory {
				return fmt.Errorf("migrate requires a sqlite or mysql database")
			}
			rt.logger.Info("database schema is up to date", zap.String("driver", rt.config.DatabaseDriver))
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	var fixturePath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML fixture (or the built-in demo) into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				fixture *seed.Fixture
				err     error
			)
			if fixturePath != "" {
				fixture, err = seed.Load(fixturePath)
			} else {
				fixture, err = seed.Demo()
			}
			if err != nil {
				return err
			}

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()
			if rt.config.DatabaseDriver == config.DriverMemory {
				return fmt.Errorf("seed requires a sqlite or mysql database")
			}

			result, err := seed.Apply(cmd.Context(), rt.service, fixture, time.Now())
			if err != nil {
				return err
			}
			rt.logger.Info("fixture applied",
				zap.Int("users", result.Users),
				zap.Int("projects", result.Projects),
				zap.Int("tasks", result.Tasks),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "file", "", "Path to a YAML fixture; defaults to the built-in demo")
	return cmd
}

func newTokenCommand() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			if !appConfig.AuthEnabled() {
				return fmt.Errorf("auth.signing_secret is required to issue tokens")
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(appConfig.AuthSigningSecret),
				Issuer:        appConfig.AuthIssuer,
				TokenTTL:      appConfig.AuthTokenTTL,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.Issue(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
