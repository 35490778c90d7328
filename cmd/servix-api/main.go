package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Behrad-BeigZadeh/Servix/internal/auth"
	"github.com/Behrad-BeigZadeh/Servix/internal/booking"
	"github.com/Behrad-BeigZadeh/Servix/internal/catalog"
	"github.com/Behrad-BeigZadeh/Servix/internal/chat"
	"github.com/Behrad-BeigZadeh/Servix/internal/config"
	"github.com/Behrad-BeigZadeh/Servix/internal/database"
	"github.com/Behrad-BeigZadeh/Servix/internal/logging"
	"github.com/Behrad-BeigZadeh/Servix/internal/notification"
	"github.com/Behrad-BeigZadeh/Servix/internal/realtime"
	"github.com/Behrad-BeigZadeh/Servix/internal/server"
	"github.com/Behrad-BeigZadeh/Servix/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "servix-api",
		Short: "Servix service marketplace backend",
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
	cmd.PersistentFlags().String("upload-dir", defaults.GetString("uploads.dir"), "Directory for uploaded images")
	cmd.PersistentFlags().Int("access-ttl-minutes", defaults.GetInt("auth.access_ttl_minutes"), "Access token TTL in minutes")
	cmd.PersistentFlags().Int("refresh-ttl-hours", defaults.GetInt("auth.refresh_ttl_hours"), "Refresh token TTL in hours")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("access-secret", "", "Access token signing secret (overrides env)")
	cmd.PersistentFlags().String("refresh-secret", "", "Refresh token signing secret (overrides env)")
	cmd.PersistentFlags().StringSlice("allowed-origins", defaults.GetStringSlice("cors.allowed_origins"), "Allowed CORS origins")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "uploads.dir", "upload-dir")
	bindFlag(cmd, "auth.access_ttl_minutes", "access-ttl-minutes")
	bindFlag(cmd, "auth.refresh_ttl_hours", "refresh-ttl-hours")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.access_secret", "access-secret")
	bindFlag(cmd, "auth.refresh_secret", "refresh-secret")
	bindFlag(cmd, "cors.allowed_origins", "allowed-origins")
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

	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		AccessSecret:  []byte(appConfig.AccessSecret),
		RefreshSecret: []byte(appConfig.RefreshSecret),
		Issuer:        "servix-auth",
		Audience:      "servix-api",
		AccessTTL:     appConfig.AccessTTL,
		RefreshTTL:    appConfig.RefreshTTL,
	})

	userService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Tokens:   tokenIssuer,
	})
	if err != nil {
		return err
	}

	notificationService, err := notification.NewService(notification.ServiceConfig{
		Database: db,
	})
	if err != nil {
		return err
	}

	chatService, err := chat.NewService(chat.ServiceConfig{
		Database:      db,
		Notifications: notificationService,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	// The room router authorizes joins against persisted conversation
	// membership, which the chat service owns; the dispatcher closes the
	// loop back into the chat service once both exist.
	presence := realtime.NewPresence(logger)
	rooms := realtime.NewRooms(chatService, logger)
	dispatcher := realtime.NewDispatcher(presence, rooms, logger)
	chatService.AttachDispatcher(dispatcher)

	bookingService, err := booking.NewService(booking.ServiceConfig{
		Database:      db,
		Notifications: notificationService,
		Notifier:      dispatcher,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	imageStore, err := catalog.NewDiskStore(appConfig.UploadDir, "/uploads")
	if err != nil {
		return err
	}

	catalogService, err := catalog.NewCatalog(catalog.CatalogConfig{
		Database: db,
		Images:   imageStore,
		Bookings: bookingService,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Tokens:         tokenIssuer,
		Users:          userService,
		Catalog:        catalogService,
		Bookings:       bookingService,
		Chat:           chatService,
		Notifications:  notificationService,
		Presence:       presence,
		Rooms:          rooms,
		Logger:         logger,
		AllowedOrigins: appConfig.AllowedOrigins,
		UploadDir:      appConfig.UploadDir,
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
