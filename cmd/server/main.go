package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"LifeLine/internal/models"
	"LifeLine/internal/repository"
	"LifeLine/internal/service"
	"LifeLine/internal/store"
	"LifeLine/pkg/cache"
	"LifeLine/pkg/config"
	"LifeLine/pkg/logger"
	"LifeLine/pkg/metrics"
	"LifeLine/pkg/middleware"
	"LifeLine/pkg/util"
	"LifeLine/pkg/websocket"
)

var rootCmd = &cobra.Command{
	Use:   "lifeline-server",
	Short: "LifeLine - real-time emergency alert coordination",
	Long: `LifeLine accepts emergency alerts from patients over WebSocket,
fans them out to on-duty responders by role, and coordinates the
acknowledgment race so that exactly one responder claims each alert.`,
	RunE: runServer,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a connection token for the given identity",
	RunE:  issueToken,
}

var (
	tokenUser string
	tokenName string
	tokenRole string
	tokenTTL  time.Duration
)

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (required)")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")
	tokenCmd.Flags().StringVar(&tokenRole, "role", models.RolePatient, "role: patient, health_worker, ambulance_driver, admin or moh")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := config.GlobalConfig

	logger.Init(cfg.Log)
	defer logger.Sync()

	gin.SetMode(cfg.Mode)

	db, err := util.OpenDatabase(&gorm.Config{}, cfg.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&models.Patient{}); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	cacheClient, err := cache.NewCache(cache.Config{
		Type: cfg.CacheType,
		Redis: cache.RedisConfig{
			Addr: cfg.RedisAddr,
			DB:   int(cfg.RedisDB),
		},
	})
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer cacheClient.Close()

	wsConfig := websocket.LoadConfigFromEnv()
	if err := websocket.ValidateConfig(wsConfig); err != nil {
		return fmt.Errorf("websocket config: %w", err)
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	hub := websocket.NewHub(wsConfig)
	hub.SetObserver(m)
	defer hub.Close()

	pending := store.NewPendingAlerts()
	patients := repository.NewPatientRepository(db, cacheClient)

	limiter, err := middleware.NewRaiseLimiter(cfg.RaiseRate)
	if err != nil {
		return fmt.Errorf("raise limiter: %w", err)
	}

	alerts := service.NewAlertService(hub, pending, patients, limiter, m)
	alerts.Register()

	presence := service.NewPresenceService(hub)
	presence.Register()

	jwtService := middleware.NewJWTService([]byte(cfg.JWTSecret), 24*time.Hour)

	engine := gin.New()
	engine.Use(gin.Recovery())

	wsHandler := websocket.NewHandler(hub)
	wsHandler.SetStatsExtra(func() map[string]interface{} {
		return map[string]interface{}{
			"pending_alerts": pending.Len(),
			"known_drivers":  len(presence.Statuses()),
		}
	})
	websocket.RegisterRoutes(engine, wsHandler, middleware.Auth(jwtService))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	logger.Info("lifeline-server listening", zap.String("addr", cfg.Addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func issueToken(cmd *cobra.Command, args []string) error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if tokenRole != models.RolePatient && !models.IsResponderRole(tokenRole) {
		return fmt.Errorf("unknown role: %s", tokenRole)
	}

	jwtService := middleware.NewJWTService([]byte(config.GlobalConfig.JWTSecret), tokenTTL)
	token, err := jwtService.GenerateToken(tokenUser, tokenName, tokenRole)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	fmt.Println(token)
	return nil
}
