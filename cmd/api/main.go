package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/anticheat"
	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/geo"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/pending"
	"rollcall/internal/queue"
	"rollcall/internal/report"
	"rollcall/internal/roster"
	"rollcall/internal/store"
)

var outcomeCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rollcall_attendance_outcomes_total",
	Help: "Attendance attempt outcomes by action and code.",
}, []string{"action", "code"})

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
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:reports")
	}

	rules := attendance.Rules{
		WorkStartHour:   cfg.WorkStartHour,
		WorkStartMinute: cfg.WorkStartMinute,
		LateThreshold:   time.Duration(cfg.LateThresholdMinutes) * time.Minute,
		Loc:             cfg.Location(),
	}

	attRepo := attendance.NewRepository(db.Client)
	rosterRepo := roster.NewRepository(db.Client)
	att := attendance.NewService(attRepo, rosterRepo, rules)
	agg := report.NewAggregator(attRepo, rosterRepo, rules)
	gate := anticheat.New(cfg.MaxLocationAge, cfg.FutureSkew, cfg.AttemptsPerMinute, time.Now)
	intents := pending.NewStore(time.Now)
	ctx, cancelMaintenance := context.WithCancel(context.Background())
	defer cancelMaintenance()

	// Periodic cleanup of dead rate-limit windows and abandoned intents so
	// neither map grows without bound in a long-running process.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				gate.Sweep()
				intents.Prune(24 * time.Hour)
			case <-ctx.Done():
				return
			}
		}
	}()

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
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/gateways/register", func(c *gin.Context) {
		var req struct {
			GatewayID string `json:"gateway_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.GatewayID, "gateway", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
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

	authGroup := r.Group("/v1", auth.GatewayAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/attendance/intents", func(c *gin.Context) {
		var req struct {
			UserID int64  `json:"user_id" binding:"required"`
			Action string `json:"action" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := rosterRepo.GetUser(c.Request.Context(), req.UserID)
		if err != nil {
			systemError(c, "load user", err)
			return
		}
		if user == nil || !user.Active {
			c.JSON(http.StatusOK, gin.H{"ok": false, "message": msgNotRegistered})
			return
		}

		var action pending.Action
		switch req.Action {
		case "check_in":
			action = pending.AwaitingCheckIn
		case "check_out":
			action = pending.AwaitingCheckOut
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "action must be check_in or check_out"})
			return
		}

		intents.Set(req.UserID, action)
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": promptFor(action)})
	})

	authGroup.DELETE("/attendance/intents/:user_id", func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		cancelled := intents.Cancel(userID)
		c.JSON(http.StatusOK, gin.H{"ok": true, "cancelled": cancelled, "message": msgCancelled})
	})

	authGroup.POST("/attendance/locations", func(c *gin.Context) {
		var req struct {
			UserID     int64     `json:"user_id" binding:"required"`
			Latitude   float64   `json:"latitude"`
			Longitude  float64   `json:"longitude"`
			AuthorTime time.Time `json:"author_time" binding:"required"`
			Relayed    bool      `json:"relayed"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		coord := geo.Point{Lat: req.Latitude, Lon: req.Longitude}
		if !coord.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "coordinate out of range"})
			return
		}

		user, err := rosterRepo.GetUser(c.Request.Context(), req.UserID)
		if err != nil {
			systemError(c, "load user", err)
			return
		}
		if user == nil || !user.Active {
			c.JSON(http.StatusOK, gin.H{"ok": false, "message": msgNotRegistered})
			return
		}

		serverTime := time.Now()
		gateRes := gate.Evaluate(anticheat.Event{
			UserID:     req.UserID,
			Coordinate: coord,
			ServerTime: serverTime,
			AuthorTime: req.AuthorTime,
			Relayed:    req.Relayed,
		})
		if !gateRes.OK {
			log.Printf("validation failed for user %d: code=%s %s", req.UserID, gateRes.Code, gateRes.Message)
			outcomeCounter.WithLabelValues("validate", string(gateRes.Code)).Inc()
			c.JSON(http.StatusOK, gin.H{"ok": false, "message": validationMessage(gateRes.Code)})
			return
		}

		action, ok := intents.Consume(req.UserID)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"ok": false, "message": msgNoIntent})
			return
		}

		switch action {
		case pending.AwaitingCheckIn:
			res, err := att.CheckIn(c.Request.Context(), req.UserID, coord, serverTime)
			if err != nil {
				systemError(c, "check-in", err)
				return
			}
			outcomeCounter.WithLabelValues("check_in", outcomeLabel(res.OK, string(res.Code))).Inc()
			c.JSON(http.StatusOK, gin.H{"ok": res.OK, "message": checkInMessage(res, rules.Loc)})

		case pending.AwaitingCheckOut:
			res, err := att.CheckOut(c.Request.Context(), req.UserID, coord, serverTime)
			if err != nil {
				systemError(c, "check-out", err)
				return
			}
			outcomeCounter.WithLabelValues("check_out", outcomeLabel(res.OK, string(res.Code))).Inc()
			c.JSON(http.StatusOK, gin.H{"ok": res.OK, "message": checkOutMessage(res, rules.Loc)})
		}
	})

	authGroup.GET("/attendance/status/:user_id", func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		st, err := att.Status(c.Request.Context(), userID, time.Now())
		if err != nil {
			systemError(c, "status", err)
			return
		}
		body := gin.H{"state": st.State}
		if st.In != nil {
			body["check_in"] = st.In.Timestamp.In(rules.Loc).Format("15:04")
			body["late"] = st.In.Late
		}
		if st.Out != nil {
			body["check_out"] = st.Out.Timestamp.In(rules.Loc).Format("15:04")
			body["work_duration"] = attendance.FormatDuration(st.WorkDuration)
		}
		c.JSON(http.StatusOK, body)
	})

	authGroup.GET("/reports/daily", func(c *gin.Context) {
		day := time.Now()
		if v := c.Query("date"); v != "" {
			parsed, err := time.ParseInLocation("2006-01-02", v, rules.Loc)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
				return
			}
			day = parsed
		}
		sum, err := agg.Daily(c.Request.Context(), day)
		if err != nil {
			systemError(c, "daily report", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"date":           sum.Date.Format("2006-01-02"),
			"total_users":    sum.TotalActiveUsers,
			"checked_in":     sum.CheckedIn,
			"on_time":        sum.OnTime,
			"late":           sum.Late,
			"not_checked_in": sum.NotCheckedIn,
			"checked_out":    sum.CheckedOut,
			"report":         report.FormatDaily(sum),
		})
	})

	authGroup.POST("/reports/monthly", func(c *gin.Context) {
		var req struct {
			Year  int `json:"year" binding:"required"`
			Month int `json:"month" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Month < 1 || req.Month > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "month must be 1-12"})
			return
		}

		jobID := uuid.NewString()
		if err := attRepo.SaveReportJob(c.Request.Context(), jobID, req.Year, req.Month); err != nil {
			systemError(c, "save report job", err)
			return
		}
		if err := q.Publish(c.Request.Context(), queue.Message{Type: "report", Body: []byte(jobID)}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
		c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": "pending"})
	})

	authGroup.GET("/reports/monthly/:id", func(c *gin.Context) {
		job, err := attRepo.GetReportJob(c.Request.Context(), c.Param("id"))
		if err != nil {
			systemError(c, "load report job", err)
			return
		}
		if job == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
			return
		}
		body := gin.H{"job_id": job.ID, "status": job.Status, "year": job.Year, "month": job.Month}
		if job.FilePath != nil {
			body["file"] = *job.FilePath
		}
		c.JSON(http.StatusOK, body)
	})

	authGroup.GET("/sites", func(c *gin.Context) {
		sites, err := rosterRepo.ActiveSites(c.Request.Context())
		if err != nil {
			systemError(c, "list sites", err)
			return
		}
		out := make([]gin.H, 0, len(sites))
		for _, s := range sites {
			out = append(out, gin.H{
				"id":            s.ID,
				"name":          s.Name,
				"latitude":      s.Center.Lat,
				"longitude":     s.Center.Lon,
				"radius_meters": s.RadiusMeters,
			})
		}
		c.JSON(http.StatusOK, gin.H{"sites": out})
	})

	authGroup.POST("/sites", func(c *gin.Context) {
		var req struct {
			Name         string  `json:"name" binding:"required"`
			Latitude     float64 `json:"latitude"`
			Longitude    float64 `json:"longitude"`
			RadiusMeters float64 `json:"radius_meters"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.RadiusMeters == 0 {
			req.RadiusMeters = cfg.DefaultRadiusMeters
		}
		site, err := rosterRepo.CreateSite(c.Request.Context(),
			req.Name, geo.Point{Lat: req.Latitude, Lon: req.Longitude}, req.RadiusMeters)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": site.ID, "name": site.Name})
	})

	authGroup.DELETE("/sites/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid site id"})
			return
		}
		found, err := rosterRepo.DeactivateSite(c.Request.Context(), id)
		if err != nil {
			systemError(c, "deactivate site", err)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown site"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// Graceful shutdown
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func outcomeLabel(ok bool, code string) string {
	if ok {
		return "ok"
	}
	return code
}

// systemError hides failure detail from the caller and logs it in full.
func systemError(c *gin.Context, op string, err error) {
	log.Printf("%s failed: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error, please try again"})
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
