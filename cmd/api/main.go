package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classtrack/internal/apperr"
	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/classes"
	"classtrack/internal/config"
	"classtrack/internal/handler"
	"classtrack/internal/httpmiddleware"
	"classtrack/internal/queue"
	"classtrack/internal/store"
	"classtrack/internal/users"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:attendance")
	}

	tokens := auth.NewTokens(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)

	userRepo := users.NewRepository(db.Client)
	classRepo := classes.NewRepository(db.Client)
	attRepo := attendance.NewRepository(db.Client)

	userSvc := users.NewService(userRepo, tokens, cfg.BcryptCost)
	classSvc := classes.NewService(classRepo, userRepo)
	attSvc := attendance.NewService(attRepo, cfg.CheckinTokenTTL, cfg.Location())

	seedAdmin(cfg, userSvc)

	h := handler.New(userSvc, classSvc, attSvc, q, db, redisClient)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.POST("/auth/register", h.Register)
	v1.POST("/auth/login", h.Login)
	v1.POST("/auth/refresh", h.Refresh)

	authed := v1.Group("", auth.Authenticated(tokens, userSvc.Resolve))
	authed.GET("/me", h.Me)

	adminOnly := auth.RequireRole(string(users.RoleAdmin))
	authed.POST("/users", adminOnly, h.CreateUser)
	authed.GET("/users", adminOnly, h.ListUsers)
	authed.GET("/users/:id", h.GetUser)
	authed.PUT("/users/:id", h.UpdateUser)
	authed.PUT("/users/:id/role", adminOnly, h.ChangeRole)
	authed.DELETE("/users/:id", adminOnly, h.DeleteUser)

	staff := auth.RequireRole(string(users.RoleTeacher), string(users.RoleAdmin))
	authed.POST("/classes", staff, h.CreateClass)
	authed.GET("/classes", h.ListClasses)
	authed.GET("/classes/:id", h.GetClass)
	authed.PUT("/classes/:id", staff, h.UpdateClass)
	authed.DELETE("/classes/:id", staff, h.DeleteClass)
	authed.POST("/classes/:id/enrollments", staff, h.Enroll)
	authed.GET("/classes/:id/enrollments", staff, h.Roster)
	authed.DELETE("/classes/:id/enrollments/:studentID", staff, h.Unenroll)

	authed.POST("/attendance/generate-qr", staff, h.GenerateQR)
	authed.POST("/attendance/scan", auth.RequireRole(string(users.RoleStudent)), h.Scan)
	authed.GET("/attendance/class/:classID", staff, h.ClassAttendance)
	authed.GET("/attendance/student", auth.RequireRole(string(users.RoleStudent)), h.StudentAttendance)
	authed.PUT("/attendance/mark", staff, h.MarkAttendance)

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

// seedAdmin creates the bootstrap admin account when SEED_ADMIN_EMAIL is set.
// An existing account with that email is left alone.
func seedAdmin(cfg config.App, svc *users.Service) {
	if cfg.SeedAdminEmail == "" || cfg.SeedAdminPassword == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := svc.Register(ctx, users.RegisterInput{
		Email:    cfg.SeedAdminEmail,
		Password: cfg.SeedAdminPassword,
		Name:     cfg.SeedAdminName,
		Role:     users.RoleAdmin,
	})
	switch {
	case err == nil:
		log.Printf("seeded admin account %s", cfg.SeedAdminEmail)
	case apperr.KindOf(err) == apperr.KindConflict:
		// already provisioned
	default:
		log.Printf("admin seed failed: %v", err)
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
