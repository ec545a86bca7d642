package webserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stake-plus/govagent/src/data"
)

// Options configures the HTTP surface.
type Options struct {
	JWTSecret      []byte
	Admins         []string
	CORSOrigins    []string
	ChatRateLimit  int
	ChatRateWindow time.Duration
	VotingEnabled  bool
}

// Deps are the components served over HTTP. Chain and Ingester may be nil.
type Deps struct {
	Store    Store
	Hub      Publisher
	Realtime http.Handler
	Ingester Ingester
	Chain    Chain
	Nonces   data.NonceStore
}

// Server is the gin engine plus the state its middleware owns.
type Server struct {
	engine  *gin.Engine
	store   Store
	chain   Chain
	opts    Options
	limiter *RateLimiter
	log     *zap.Logger
}

func New(deps Deps, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ChatRateLimit <= 0 {
		opts.ChatRateLimit = 10
	}
	if opts.ChatRateWindow <= 0 {
		opts.ChatRateWindow = time.Minute
	}
	if deps.Nonces == nil {
		deps.Nonces = data.NewMemoryNonces()
	}
	log = log.Named("http")

	g := gin.New()
	g.Use(accessLog(log), gin.Recovery())

	s := &Server{
		engine:  g,
		store:   deps.Store,
		chain:   deps.Chain,
		opts:    opts,
		limiter: NewRateLimiter(opts.ChatRateLimit, opts.ChatRateWindow),
		log:     log,
	}
	s.attachRoutes(deps)
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Close stops background work owned by the server.
func (s *Server) Close() { s.limiter.Stop() }

func (s *Server) attachRoutes(deps Deps) {
	r := s.engine
	r.Use(cors.New(corsConfig(s.opts.CORSOrigins)))

	if deps.Realtime != nil {
		r.GET("/ws", gin.WrapH(deps.Realtime))
	}

	authH := NewAuth(deps.Nonces, s.opts.JWTSecret, s.opts.Admins, s.log)
	propH := NewProposals(deps.Store, deps.Hub, deps.Ingester, s.log)

	v1 := r.Group("/v1")
	{
		v1.GET("/health", s.health)
		v1.GET("/proposals", propH.List)
		v1.GET("/proposals/:id", propH.Get)
		v1.GET("/proposals/:id/messages", propH.Messages)
		v1.POST("/proposals/:id/messages", RateLimitMiddleware(s.limiter), propH.PostMessage)

		v1.POST("/auth/challenge", authH.Challenge)
		v1.POST("/auth/verify", authH.Verify)
	}

	if deps.Ingester != nil && len(s.opts.JWTSecret) > 0 {
		admin := v1.Group("")
		admin.Use(JWTMiddleware(s.opts.JWTSecret), authH.requireAdmin)
		admin.POST("/proposals", propH.Create)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client", c.ClientIP()),
		)
	}
}
