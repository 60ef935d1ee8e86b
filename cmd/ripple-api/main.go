package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ripplefeed/ripple/backend/internal/auth"
	"github.com/ripplefeed/ripple/backend/internal/config"
	"github.com/ripplefeed/ripple/backend/internal/database"
	"github.com/ripplefeed/ripple/backend/internal/logging"
	"github.com/ripplefeed/ripple/backend/internal/server"
	"github.com/ripplefeed/ripple/backend/internal/session"
	"github.com/ripplefeed/ripple/backend/internal/source"
	"github.com/ripplefeed/ripple/backend/internal/users"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ripple-api",
		Short: "Ripple feed backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

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
	cmd.PersistentFlags().Int("feed-page-size", defaults.GetInt("feed.page_size"), "Feed page size")
	cmd.PersistentFlags().Duration("token-ttl", defaults.GetDuration("token.ttl"), "Backend token TTL")
	cmd.PersistentFlags().String("gateway-cookie-name", defaults.GetString("gateway.cookie_name"), "Gateway session cookie name")
	cmd.PersistentFlags().String("gateway-signing-secret", "", "Gateway session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "feed.page_size", "feed-page-size")
	bindFlag(cmd, "token.ttl", "token-ttl")
	bindFlag(cmd, "gateway.cookie_name", "gateway-cookie-name")
	bindFlag(cmd, "gateway.signing_secret", "gateway-signing-secret")
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

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.GatewaySigningKey),
		Issuer:        appConfig.TokenIssuer,
		CookieName:    appConfig.GatewayCookieName,
	})
	if err != nil {
		return err
	}

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.GatewaySigningKey),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.TokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	identityService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
	})
	if err != nil {
		return err
	}

	feedOrigin, err := source.NewService(source.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: source.UUIDProvider{},
		PageSize:   appConfig.FeedPageSize,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	sessionManager, err := session.NewManager(session.ManagerConfig{
		Origin:   feedOrigin,
		PageSize: appConfig.FeedPageSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		SessionValidator: sessionValidator,
		Identities:       identityService,
		TokenManager:     tokenManager,
		Sessions:         sessionManager,
		Origin:           feedOrigin,
		Realtime:         server.NewRealtimeDispatcher(),
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
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
