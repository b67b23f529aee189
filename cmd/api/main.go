// main.go
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/Sreyaes/DubMaster/auth"
	"github.com/Sreyaes/DubMaster/gateway"
	"github.com/Sreyaes/DubMaster/internal/platform"
	"github.com/Sreyaes/DubMaster/media"
	"github.com/Sreyaes/DubMaster/recording"
	"github.com/Sreyaes/DubMaster/sessions"
	"github.com/Sreyaes/DubMaster/studio"
	"github.com/Sreyaes/DubMaster/tasks"
	"github.com/Sreyaes/DubMaster/worker"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
)

// sessionTTL is how long an idle studio session lives before eviction.
const sessionTTL = time.Hour

type Server struct {
	Redis     *redis.Client
	Registry  *studio.Registry
	Media     *media.Store
	Processor *worker.Processor
	Router    *gin.Engine
}

func NewServer() (*Server, error) {
	rdb := platform.NewRedisClient()

	mediaStore := media.NewStore()

	// The API key gate: the studio refuses to boot without a configured
	// provider credential.
	gw, err := gateway.NewOpenAI(mediaStore, mediaStore)
	if err != nil {
		return nil, err
	}

	processor := worker.NewProcessor(rdb)
	notifier := platform.NewStateNotifier(rdb)

	registry := studio.NewRegistry(sessionTTL, func(sessionID string) *studio.Orchestrator {
		rec := recording.NewSession(recording.NewUplink())
		return studio.NewOrchestrator(sessionID, studio.NewStore(), gw, rec, processor, notifier)
	})

	handlers := worker.NewHandlers(registry)
	processor.Register(tasks.QueueProduction, handlers.HandleProduction)
	processor.Register(tasks.QueuePerformanceAnalysis, handlers.HandlePerformanceAnalysis)
	processor.Register(tasks.QueueLipSync, handlers.HandleLipSync)

	router := gin.Default()

	// Add CORS middleware for your frontend
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", os.Getenv("FRONTEND_URL"))
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	server := &Server{
		Redis:     rdb,
		Registry:  registry,
		Media:     mediaStore,
		Processor: processor,
		Router:    router,
	}

	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	// Health check (no auth required)
	s.Router.GET("/health", func(c *gin.Context) {
		if err := s.Redis.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(500, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"status":   "healthy",
			"redis":    "connected",
			"sessions": s.Registry.Len(),
		})
	})

	s.Router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "DubMaster API v1"})
	})

	sessionHandler := sessions.NewHandler(s.Registry, s.Media)

	// Session creation is public; everything else needs the session cookie.
	s.Router.POST("/sessions", sessionHandler.CreateSession)
	s.Router.GET("/media/:id", sessionHandler.ServeMedia)

	protected := s.Router.Group("/sessions")
	protected.Use(auth.Middleware(s.Registry))
	{
		protected.GET("/state", sessionHandler.GetState)
		protected.POST("/production", sessionHandler.SubmitProduction)
		protected.POST("/recording/start", sessionHandler.StartRecording)
		protected.POST("/recording/chunks", sessionHandler.UploadChunk)
		protected.POST("/recording/stop", sessionHandler.StopRecording)
		protected.POST("/lipsync", sessionHandler.RequestLipSync)
		protected.POST("/video-variant", sessionHandler.ToggleVideoVariant)
		protected.GET("/performance/audio", sessionHandler.PerformanceAudio)
		protected.POST("/reference-audio", sessionHandler.ReferenceAudio)
	}
}

func (s *Server) Run() error {
	ctx := context.Background()

	// The worker shares this process so its handlers can reach the
	// in-memory session registry.
	go s.Processor.Listen(ctx, tasks.QueueProduction, tasks.QueuePerformanceAnalysis, tasks.QueueLipSync)

	// Sweep expired sessions periodically.
	c := cron.New()
	if _, err := c.AddFunc("@every 10m", func() { s.Registry.Sweep() }); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("DubMaster studio starting on port %s", port)
	return s.Router.Run(":" + port)
}

func main() {
	server, err := NewServer()
	if err != nil {
		log.Fatal("Failed to create server:", err)
	}

	if err := server.Run(); err != nil {
		log.Fatal("Failed to run server:", err)
	}
}
