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

	"github.com/QTuan97/HC-API-Plat/control-plane/api"
	"github.com/QTuan97/HC-API-Plat/control-plane/config"
	"github.com/QTuan97/HC-API-Plat/control-plane/logger"
	"github.com/QTuan97/HC-API-Plat/control-plane/middleware"
	"github.com/QTuan97/HC-API-Plat/control-plane/service"
	"github.com/QTuan97/HC-API-Plat/control-plane/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is injected at build time.
var Version = "dev"

var (
	configPath string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hcapi-server",
	Short: "HC API Platform admin API",
	Long: `hcapi-server serves the admin REST API for mock projects, rules and
recorded request logs, and streams the enabled rule set to mock engines.`,
	SilenceUsage: true,
	RunE:         run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hcapi-server %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := logger.Init(cfg.Log.Level); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	log := logger.WithComponent("main")
	log.Info("Starting admin API",
		zap.String("version", Version),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("logs", cfg.Logs.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ruleStore, closeRules, err := newRuleStore(cfg)
	if err != nil {
		return err
	}
	defer closeRules()

	logStore, closeLogs, err := newLogStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLogs()

	distributor := NewRuleDistributor(ctx, ruleStore)
	router := newRouter(ruleStore, logStore, distributor, cfg.Logs.MaxLimit)

	srv := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Admin API listening", zap.String("address", cfg.Server.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRuleStore(cfg *config.Config) (storage.IRuleStore, func(), error) {
	if cfg.Storage.Backend != "etcd" {
		return storage.NewMemoryStore(), func() {}, nil
	}

	store, err := storage.NewEtcdStore(cfg.Storage.EtcdEndpoints)
	if err != nil {
		return nil, nil, err
	}
	if err := store.HealthCheck(); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func newLogStore(ctx context.Context, cfg *config.Config) (storage.ILogStore, func(), error) {
	if cfg.Logs.Backend != "redis" {
		return storage.NewMemoryLogStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := storage.NewRedisLogStore(client, cfg.Redis.Key, cfg.Logs.Retain)
	if err := store.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store, func() { _ = client.Close() }, nil
}

// newRouter wires middleware, the admin API and the rule event stream.
func newRouter(ruleStore storage.IRuleStore, logStore storage.ILogStore, distributor *RuleDistributor, maxLimit int) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(api.ErrorHandlerMiddleware())

	rules := service.NewRuleService(ruleStore)
	apiGroup := api.RegisterRoutes(router, api.Controllers{
		Projects:  api.NewProjectController(service.NewProjectService(ruleStore)),
		Rules:     api.NewRuleController(rules),
		FlatRules: api.NewFlatRuleController(rules),
		Logs:      api.NewLogController(service.NewLogService(logStore, maxLimit)),
	})
	apiGroup.GET("/events/rules", sseHandler(distributor))

	return router
}

// sseHandler streams the enabled rule set: the full set on connect, then one
// update event per change.
func sseHandler(distributor *RuleDistributor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")

		clientChan := make(chan string, 1)
		distributor.RegisterClient(clientChan)
		defer distributor.UnregisterClient(clientChan)

		fmt.Fprintf(c.Writer, "event: full_rules\ndata: %s\n\n", distributor.CurrentRuleSet())
		c.Writer.Flush()

		ctx := c.Request.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case ruleSet, ok := <-clientChan:
				if !ok {
					return
				}
				fmt.Fprintf(c.Writer, "event: update\ndata: %s\n\n", ruleSet)
				c.Writer.Flush()
			}
		}
	}
}
