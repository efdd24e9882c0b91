package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/config"
	"classattend/internal/course"
	"classattend/internal/geo"
	"classattend/internal/geofence"
	"classattend/internal/httpmiddleware"
	"classattend/internal/logger"
	"classattend/internal/queue"
	"classattend/internal/retry"
	"classattend/internal/roster"
	"classattend/internal/store"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		lg := logger.Get()
		lg.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App) error {
	lg := logger.Get()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Migrate(ctx, db.Client); err != nil {
		return err
	}

	var redisClient *store.Redis
	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		redisClient = store.NewRedis(cfg.RedisAddr)
		q = queue.NewRedisQueue(redisClient.Client, "classattend:audit")
	}

	rosters := roster.NewPostgres(db.Client)
	courses := course.NewService(course.NewRepository(db.Client), rosters)
	att := attendance.NewService(rosters, q, cfg.WindowValidity, retry.Policy{
		Attempts: cfg.CommitRetries,
		Backoff:  cfg.CommitBackoff,
	})
	audits := attendance.NewAuditRepository(db.Client)

	fence := geo.Circle{
		Center: geo.Point{Lat: cfg.FenceLat, Lon: cfg.FenceLon},
		Radius: cfg.FenceRadiusM,
	}
	sessions := newSessionRegistry(ctx, fence, geofence.WatchOptions{
		Interval:    cfg.SampleEvery,
		MinDistance: cfg.MinDistanceM,
	})
	defer sessions.stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		redisHealthy := cfg.QueueBackend == "memory" || redisClient.Healthy(c.Request.Context())
		status, body := healthReport(cfg.QueueBackend, dbHealthy, redisHealthy)
		c.JSON(status, body)
	})

	r.POST("/v1/register", func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required,email"`
			Name  string `json:"name" binding:"required"`
			Role  string `json:"role" binding:"required,oneof=instructor student"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.Email, req.Name, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.GET("/courses", func(c *gin.Context) {
		list, err := courses.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"courses": list})
	})

	authGroup.POST("/courses", auth.RequireRole(auth.RoleInstructor), func(c *gin.Context) {
		var req struct {
			Name        string `json:"name" binding:"required"`
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.FromContext(c)

		created, err := courses.Create(c.Request.Context(), req.Name, req.Description, claims.Name, claims.Subject)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	authGroup.POST("/courses/:id/enroll", auth.RequireRole(auth.RoleStudent), func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		err := courses.Enroll(c.Request.Context(), c.Param("id"), claims.Name, claims.Subject)
		switch {
		case err == nil:
			c.JSON(http.StatusCreated, gin.H{"status": "enrolled"})
		case errors.Is(err, course.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, roster.ErrDuplicateStudent):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	})

	authGroup.GET("/courses/:id/roster", func(c *gin.Context) {
		cols, rows, err := courses.Roster(c.Request.Context(), c.Param("id"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, course.ErrNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"columns": cols, "rows": rows})
	})

	authGroup.POST("/courses/:id/windows", auth.RequireRole(auth.RoleInstructor), func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		courseID := c.Param("id")

		owned, err := courses.Get(c.Request.Context(), courseID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, course.ErrNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if owned.InstructorID != claims.Subject {
			c.JSON(http.StatusForbidden, gin.H{"error": "not the course instructor"})
			return
		}

		win, err := att.OpenWindow(c.Request.Context(), courseID)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, win)
	})

	authGroup.GET("/courses/:id/windows/current", func(c *gin.Context) {
		win, err := att.CurrentWindowStatus(c.Request.Context(), c.Param("id"))
		switch {
		case err == nil:
			c.JSON(http.StatusOK, win)
		case errors.Is(err, attendance.ErrNoActiveWindow):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	})

	authGroup.POST("/location", func(c *gin.Context) {
		var req locationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.FromContext(c)

		err := sessions.push(claims.Subject, req.position())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "sample accepted"})
	})

	authGroup.GET("/location/status", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		sig := sessions.signal(claims.Subject)
		c.JSON(http.StatusOK, gin.H{
			"state":      sig.State.String(),
			"is_inside":  sig.State == geofence.Inside,
			"sampled_at": sig.SampledAt,
		})
	})

	authGroup.POST("/courses/:id/attendance", auth.RequireRole(auth.RoleStudent), func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		courseID := c.Param("id")

		if _, err := courses.Get(c.Request.Context(), courseID); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, course.ErrNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		sig := sessions.signal(claims.Subject)
		res, err := att.MarkAttendance(c.Request.Context(), courseID, claims.Subject, sig)
		if err != nil {
			c.JSON(markStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	authGroup.GET("/courses/:id/audit", auth.RequireRole(auth.RoleInstructor), func(c *gin.Context) {
		limit := 50
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		events, err := audits.ListByCourse(c.Request.Context(), c.Param("id"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info().Msg("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("server forced shutdown")
	}

	lg.Info().Msg("server exited")
	return nil
}

// locationRequest is one client-reported position fix. Latitude and longitude
// are pointers so coordinates on the equator or prime meridian bind cleanly.
type locationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
	Altitude  float64  `json:"altitude"`
	Accuracy  float64  `json:"accuracy"`
}

func (r locationRequest) position() geo.Position {
	return geo.Position{
		Point:    geo.Point{Lat: *r.Latitude, Lon: *r.Longitude},
		Altitude: r.Altitude,
		Accuracy: r.Accuracy,
	}
}

// healthReport shapes the /healthz response. Redis only gates readiness when
// it actually backs the audit queue; on the memory backend the probe reports
// the database alone.
func healthReport(queueBackend string, dbHealthy, redisHealthy bool) (int, gin.H) {
	body := gin.H{"status": "ok", "db": dbHealthy}
	healthy := dbHealthy
	if queueBackend != "memory" {
		body["redis"] = redisHealthy
		healthy = healthy && redisHealthy
	}
	if !healthy {
		body["status"] = "degraded"
		return http.StatusServiceUnavailable, body
	}
	return http.StatusOK, body
}

// markStatus maps each taxonomy member to its HTTP status; every failure gets
// a distinct message from its sentinel error.
func markStatus(err error) int {
	switch {
	case errors.Is(err, attendance.ErrOutOfBounds):
		return http.StatusForbidden
	case errors.Is(err, attendance.ErrNotEnrolled):
		return http.StatusForbidden
	case errors.Is(err, attendance.ErrNoActiveWindow):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrWindowExpired):
		return http.StatusGone
	case errors.Is(err, attendance.ErrMarkInFlight):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrCommitFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
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

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
