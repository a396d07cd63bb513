package app

import (
	"log"
	"net/http"
	"time"

	"postboard/internal/config"
	"postboard/internal/middleware"
	"postboard/internal/repository"
	"postboard/internal/service"
	"postboard/internal/util"
	"postboard/internal/websocket"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	sessionName       = "postboard_session"
	localCacheEntries = 4096
)

// Handlers groups everything RegisterRoutes mounts
type Handlers struct {
	Auth    *AuthHandler
	Post    *PostHandler
	SubPost *SubPostHandler
	Like    *LikeHandler
	Health  *HealthHandler
	Hub     *websocket.Hub
}

// Server owns the router and every long-lived dependency behind it
type Server struct {
	Router *gin.Engine

	db            *gorm.DB
	redisClient   *util.RedisClient
	rabbitMQ      *util.RabbitMQClient
	wsHub         *websocket.Hub
	counterWorker *service.CounterWorker
	stopCleanup   chan struct{}
}

// NewServer connects to the backing services and builds the router
func NewServer(cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	r := gin.Default()
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(cfg.ClientURL))

	srv := &Server{Router: r, stopCleanup: make(chan struct{})}

	// Rate limiting middleware (if enabled)
	if cfg.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		rateLimiter.StartCleanup(time.Minute, srv.stopCleanup)
		r.Use(rateLimiter.Middleware())
		log.Printf("Rate limiting enabled: %d req/sec, burst: %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.JWTTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, sessionStore))
	r.Use(middleware.Authenticate(cfg.JWTSecret))

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		return nil, err
	}
	srv.db = db

	if err := repository.AutoMigrate(db); err != nil {
		return nil, err
	}

	// Initialize Redis with retry logic, falling back to an in-process cache
	var cache util.Cache
	var cachePinger pinger
	srv.redisClient = initRedisWithRetry(cfg)
	if srv.redisClient != nil {
		cache = srv.redisClient
		cachePinger = srv.redisClient
	} else {
		localCache, err := util.NewLocalCache(localCacheEntries)
		if err != nil {
			return nil, err
		}
		cache = localCache
	}

	// Initialize WebSocket hub
	srv.wsHub = websocket.NewHub()
	go srv.wsHub.Run()
	log.Println("WebSocket hub started")

	// Initialize RabbitMQ; counter events go straight to the hub without it
	srv.rabbitMQ = initRabbitMQWithRetry(cfg)
	publisher := service.NewEventPublisher(nil, srv.wsHub)
	if srv.rabbitMQ != nil {
		srv.counterWorker = service.NewCounterWorker(srv.rabbitMQ, srv.wsHub)
		if err := srv.counterWorker.Start(); err != nil {
			log.Printf("Warning: Failed to start counter worker: %v", err)
		} else {
			log.Println("Counter worker started successfully")
			publisher = service.NewEventPublisher(srv.rabbitMQ, srv.wsHub)
		}
	}

	store := repository.NewStore(db, cache)

	// Initialize services
	authService := service.NewAuthService(store, cfg.JWTSecret, cfg.JWTTTL)
	postService := service.NewPostService(store, publisher)
	subPostService := service.NewSubPostService(store)
	likeService := service.NewLikeService(store, publisher)
	postViewService := service.NewPostViewService(store, publisher)

	RegisterRoutes(r, Handlers{
		Auth:    NewAuthHandler(authService),
		Post:    NewPostHandler(postService, cfg.PageSize),
		SubPost: NewSubPostHandler(subPostService, cfg.PageSize),
		Like:    NewLikeHandler(likeService, postViewService),
		Health:  NewHealthHandler(db, cachePinger),
		Hub:     srv.wsHub,
	})

	return srv, nil
}

// RegisterRoutes mounts the API. Reads are open; writes need an authenticated user.
func RegisterRoutes(r *gin.Engine, h Handlers) {
	authRequired := middleware.AuthRequired()

	r.POST("/register/", h.Auth.Register)
	r.POST("/login/", h.Auth.Login)
	r.POST("/logout/", h.Auth.Logout)

	posts := r.Group("/posts")
	{
		posts.GET("/", h.Post.ListPosts)
		posts.GET("/:id/", h.Post.GetPost)

		posts.POST("/", authRequired, h.Post.CreatePost)
		posts.PUT("/:id/", authRequired, h.Post.UpdatePost)
		posts.PATCH("/:id/", authRequired, h.Post.PatchPost)
		posts.DELETE("/:id/", authRequired, h.Post.DeletePost)

		posts.POST("/:id/like/", authRequired, h.Like.LikePost)
		posts.POST("/:id/view/", authRequired, h.Like.TrackView)
	}

	subPosts := r.Group("/sub-posts")
	{
		subPosts.GET("/", h.SubPost.ListSubPosts)
		subPosts.GET("/:id/", h.SubPost.GetSubPost)

		subPosts.POST("/", authRequired, h.SubPost.CreateSubPost)
		subPosts.PUT("/:id/", authRequired, h.SubPost.UpdateSubPost)
		subPosts.PATCH("/:id/", authRequired, h.SubPost.PatchSubPost)
		subPosts.DELETE("/:id/", authRequired, h.SubPost.DeleteSubPost)
	}

	// WebSocket route
	if h.Hub != nil {
		r.GET("/ws", gin.WrapF(websocket.ServeWS(h.Hub)))
	}

	// Health check
	if h.Health != nil {
		r.GET("/health", h.Health.Health)
	}
}

// Close stops background work and releases connections
func (s *Server) Close() {
	close(s.stopCleanup)

	if s.counterWorker != nil {
		s.counterWorker.Stop()
	}
	if s.wsHub != nil {
		s.wsHub.Stop()
	}
	if s.rabbitMQ != nil {
		if err := s.rabbitMQ.Close(); err != nil {
			log.Printf("Error closing RabbitMQ: %v", err)
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Printf("Error closing Redis: %v", err)
		}
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("Error closing database: %v", err)
			}
		}
	}
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.Default(),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:  gormLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// initRabbitMQWithRetry attempts to connect to RabbitMQ with exponential backoff retry
func initRabbitMQWithRetry(cfg *config.Config) *util.RabbitMQClient {
	maxRetries := 5
	initialDelay := 2 * time.Second
	maxDelay := 30 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		rabbitMQ, err := util.NewRabbitMQClient(cfg)
		if err == nil {
			log.Printf("RabbitMQ connected successfully on attempt %d", attempt)
			return rabbitMQ
		}

		if attempt < maxRetries {
			delay := backoff(initialDelay, maxDelay, attempt)
			log.Printf("Failed to connect to RabbitMQ (attempt %d/%d): %v. Retrying in %v...", attempt, maxRetries, err, delay)
			time.Sleep(delay)
		} else {
			log.Printf("Warning: Failed to connect to RabbitMQ after %d attempts: %v. Counter events will go straight to WebSocket clients.", maxRetries, err)
		}
	}

	return nil
}

// initRedisWithRetry attempts to connect to Redis with exponential backoff retry
func initRedisWithRetry(cfg *config.Config) *util.RedisClient {
	maxRetries := 5
	initialDelay := 2 * time.Second
	maxDelay := 30 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		redisClient, err := util.NewRedisClient(cfg)
		if err == nil {
			log.Printf("Redis connected successfully on attempt %d", attempt)
			return redisClient
		}

		if attempt < maxRetries {
			delay := backoff(initialDelay, maxDelay, attempt)
			log.Printf("Failed to connect to Redis (attempt %d/%d): %v. Retrying in %v...", attempt, maxRetries, err, delay)
			time.Sleep(delay)
		} else {
			log.Printf("Warning: Failed to connect to Redis after %d attempts: %v. Using the in-process cache.", maxRetries, err)
		}
	}

	return nil
}

func backoff(initial, max time.Duration, attempt int) time.Duration {
	delay := initial * time.Duration(1<<uint(attempt-1))
	if delay > max {
		delay = max
	}
	return delay
}
