package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/canextract/internal/observability"
	"github.com/danmuck/canextract/internal/protocol/schema"
)

const version = "0.1.0"

// Config carries what the decode service needs beyond its catalog.
type Config struct {
	Name        string
	Addr        string
	CorsOrigins []string
	Metrics     bool
}

// Server exposes a schema catalog over HTTP.
type Server struct {
	Name     string
	Addr     string
	Catalog  *schema.Catalog
	Appeared time.Time

	metrics bool
	decoder *observability.Decoder
	router  *gin.Engine
}

func New(cfg Config, catalog *schema.Catalog) *Server {
	if catalog == nil {
		catalog = schema.NewCatalog()
	}
	if cfg.Name == "" {
		cfg.Name = "canextract"
	}
	observability.RegisterMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	if cfg.Metrics {
		r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Name:     cfg.Name,
		Addr:     cfg.Addr,
		Catalog:  catalog,
		Appeared: time.Now(),
		metrics:  cfg.Metrics,
		decoder:  observability.NewDecoder(nil, log.Logger),
		router:   r,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) Serve() error {
	log.Info().
		Str("name", s.Name).
		Str("addr", s.Addr).
		Int("schemas", s.Catalog.Len()).
		Msg("decode service listening")
	return s.router.Run(s.Addr)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
