// Package api serves the status of the running session over HTTP: score
// snapshots, spawned actors, a stop switch and a live websocket stream.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dronegrade/harness/internal/geo"
	"github.com/dronegrade/harness/pkg/core"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// DefaultPushInterval is how often /ws sends a snapshot.
const DefaultPushInterval = time.Second

// Scorer is the scoring loop as seen by the API.
type Scorer interface {
	Snapshot() core.ScoreSnapshot
	Stop()
	Done() <-chan struct{}
}

// Actors is the spawned actor set as seen by the API.
type Actors interface {
	Positions() []core.Coordinate
	IsDestroyed(i int) bool
}

// Deps holds the session collaborators the handlers read from.
type Deps struct {
	Session *core.Session
	Scorer  Scorer
	Actors  Actors
	Georef  *geo.Georef
}

// Server is the status API.
type Server struct {
	deps         Deps
	logger       zerolog.Logger
	pushInterval time.Duration
	upgrader     ws.Upgrader

	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates a server and builds its routes.
func NewServer(deps Deps, logger zerolog.Logger) *Server {
	if deps.Georef == nil {
		deps.Georef = geo.NewGeoref(0, 0)
	}
	if logger.GetLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		deps:         deps,
		logger:       logger.With().Str("component", "api").Logger(),
		pushInterval: DefaultPushInterval,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("status API starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", s.handleHealth)
	router.GET("/score", s.handleScore)
	router.GET("/actors", s.handleActors)
	router.POST("/stop", s.handleStop)
	router.GET("/ws", s.handleStream)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})
	return router
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("api request")
	}
}
