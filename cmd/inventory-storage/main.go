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

	"github.com/MarcoPoloResearchLab/inventory-storage/internal/auth"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/config"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/database"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/holdings"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/hrid"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/ids"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/instances"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/inventoryview"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/items"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/logging"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/metrics"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/server"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile      string
	tokenSubject string
)

func main() {
	_ = godotenv.Load(".env.local")

	rootCmd := &cobra.Command{
		Use:   "inventory-storage",
		Short: "Inventory storage service for instances, holdings and items",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed bearer token for local use",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printToken(cmd.Context(), cmd)
		},
	}
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Token subject")
	_ = tokenCmd.MarkFlagRequired("subject")

	setupFlags(rootCmd)
	rootCmd.AddCommand(tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "SQLite path or PostgreSQL DSN")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Bearer token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")
	cmd.PersistentFlags().String("hrid-instances-prefix", defaults.GetString("hrid.instances.prefix"), "Prefix seeded for instance HRIDs")
	cmd.PersistentFlags().String("hrid-holdings-prefix", defaults.GetString("hrid.holdings.prefix"), "Prefix seeded for holdings HRIDs")
	cmd.PersistentFlags().String("hrid-items-prefix", defaults.GetString("hrid.items.prefix"), "Prefix seeded for item HRIDs")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "hrid.instances.prefix", "hrid-instances-prefix")
	bindFlag(cmd, "hrid.holdings.prefix", "hrid-holdings-prefix")
	bindFlag(cmd, "hrid.items.prefix", "hrid-items-prefix")
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

func newTokenIssuer(appConfig config.AppConfig) (*auth.TokenIssuer, error) {
	return auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.AuthIssuer,
		Audience:      appConfig.AuthAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
}

func printToken(ctx context.Context, cmd *cobra.Command) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	issuer, err := newTokenIssuer(appConfig)
	if err != nil {
		return err
	}
	token, _, err := issuer.IssueToken(ctx, tokenSubject)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
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

	db, err := database.Open(ctx, database.Config{
		Driver: appConfig.DatabaseDriver,
		DSN:    appConfig.DatabaseDSN,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenIssuer, err := newTokenIssuer(appConfig)
	if err != nil {
		return err
	}

	hridManager, err := hrid.NewManager(hrid.Config{
		Database:        db,
		InstancesPrefix: appConfig.HRID.InstancesPrefix,
		HoldingsPrefix:  appConfig.HRID.HoldingsPrefix,
		ItemsPrefix:     appConfig.HRID.ItemsPrefix,
		StartNumber:     appConfig.HRID.StartNumber,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	idProvider := ids.NewUUIDProvider()
	recorder := metrics.NewRecorder()

	holdingsRepository, err := holdings.NewRepository(db)
	if err != nil {
		return err
	}
	txManager, err := storage.NewTxManager(db)
	if err != nil {
		return err
	}

	instanceService, err := instances.NewService(instances.ServiceConfig{
		Database:   db,
		HRIDs:      hridManager,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	itemService, err := items.NewService(items.ServiceConfig{
		Database:     db,
		Holdings:     holdingsRepository,
		HRIDs:        hridManager,
		Transactions: txManager,
		IDProvider:   idProvider,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	holdingsService, err := holdings.NewService(holdings.ServiceConfig{
		Store:        holdingsRepository,
		HRIDs:        hridManager,
		Items:        itemService,
		Transactions: txManager,
		IDProvider:   idProvider,
		Metrics:      recorder,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	viewService, err := inventoryview.NewService(inventoryview.ServiceConfig{
		Instances: instanceService,
		Holdings:  holdingsRepository,
		Items:     itemService,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Tokens:    tokenIssuer,
		Instances: instanceService,
		Holdings:  holdingsService,
		Items:     itemService,
		Views:     viewService,
		Metrics:   recorder.Handler(),
		Logger:    logger,
	})
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
