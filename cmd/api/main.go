package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meeting/internal/attendance"
	"meeting/internal/auth"
	"meeting/internal/board"
	"meeting/internal/catalog"
	"meeting/internal/config"
	"meeting/internal/domain"
	"meeting/internal/enrollment"
	"meeting/internal/handler"
	"meeting/internal/httpmiddleware"
	"meeting/internal/member"
	"meeting/internal/metrics"
	"meeting/internal/session"
	"meeting/internal/store"
)

func main() {
	cfg := config.Load()

	if config.IsProduction(cfg.Env) {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		if db == nil {
			return err
		}
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() { _ = db.Close() }()

	if cfg.MigrateOnStart && err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		merr := store.Migrate(ctx, db.Client)
		cancel()
		if merr != nil {
			return merr
		}
		log.Println("schema up to date")
	}

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = redisClient.Close() }()

	loc := cfg.Location()
	m := metrics.New(prometheus.DefaultRegisterer)

	members := member.NewService(member.NewRepository(db.Client), time.Now, loc, cfg.StorageTimeout)
	sessions := session.NewStore(redisClient.Client, cfg.SessionTTL)
	h := &handler.Handler{
		Members:  members,
		Sessions: sessions,
		Catalog:  catalog.NewService(catalog.NewRepository(db.Client), time.Now, loc, cfg.StorageTimeout),
		Enrollments: enrollment.NewService(enrollment.NewRepository(db.Client), enrollment.Policy{
			AllowSameDay: cfg.AllowSameDayEnrollment,
			Timeout:      cfg.StorageTimeout,
		}, time.Now, loc, m),
		Attendance: attendance.NewRecorder(attendance.NewRepository(db.Client), time.Now, loc,
			cfg.AttendanceLookbackDays, cfg.StorageTimeout, m),
		Board: board.NewService(board.NewRepository(db.Client), cfg.StorageTimeout),
		Tokens: handler.TokenSettings{
			Issuer:       cfg.JWTIssuer,
			SigningKey:   cfg.JWTSigningKey,
			CookieSecure: cfg.CookieSecure,
		},
		Now:      time.Now,
		Location: loc,
	}
	handler.RegisterValidators()

	loadIdentity := func(ctx context.Context, memberID string) (domain.Identity, error) {
		mem, err := members.Get(ctx, memberID)
		if err != nil {
			return domain.Identity{}, err
		}
		return mem.Identity(), nil
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(m.GinMiddleware())
	r.Use(httpmiddleware.NewIPLimiter(cfg.RateLimitPerMin).GinMiddleware())
	r.Use(auth.Identify(sessions, loadIdentity, cfg.JWTSigningKey, cfg.JWTIssuer))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		redisHealthy := redisClient.Healthy(ctx)
		dbHealthy := db.Healthy(ctx)
		status, text := http.StatusOK, "ok"
		if !redisHealthy || !dbHealthy {
			status, text = http.StatusServiceUnavailable, "degraded"
		}
		c.JSON(status, gin.H{"status": text, "redis": redisHealthy, "db": dbHealthy})
	})

	h.Routes(r, httpmiddleware.NewIPLimiter(cfg.LoginRateLimitPerMin).GinMiddleware())

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
