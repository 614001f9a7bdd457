package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"estimator/database"
	"estimator/internal/config"
	"estimator/server/middleware"
	"estimator/server/services"
)

// CatalogDatabase хранилище каталога, которым владеет сервер.
type CatalogDatabase interface {
	services.CatalogStore
	Stats(ctx context.Context) (*database.CatalogStats, error)
}

// Server HTTP-сервер расчета времени сборки.
type Server struct {
	cfg        *config.Config
	db         CatalogDatabase
	estimation *services.EstimationService
	textGen    TextGenerator
	httpServer *http.Server
}

// NewServer создает сервер. Генератор текста подключается только
// когда LLM включен конфигурацией.
func NewServer(cfg *config.Config, db CatalogDatabase) *Server {
	s := &Server{
		cfg:        cfg,
		db:         db,
		estimation: services.NewEstimationService(db, cfg),
	}
	if cfg.EnableLLM {
		s.textGen = NewOllamaClient(cfg)
	}
	return s
}

// buildHandler собирает gin-маршрутизатор со всеми middleware и маршрутами.
func (s *Server) buildHandler() http.Handler {
	// Режим gin: release по умолчанию, переопределяется через GIN_MODE
	if ginMode := os.Getenv("GIN_MODE"); ginMode == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.GinRequestIDMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinGzipMiddleware())
	router.Use(middleware.GinLoggerMiddleware())
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)

	api := router.Group("/api/v1")
	{
		api.POST("/estimate", s.handleEstimate)
		api.POST("/chat", s.handleChat)
	}

	// Статика чат-интерфейса
	router.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(s.cfg.StaticDir, "index.html"))
	})
	router.Static("/static", s.cfg.StaticDir)

	return router
}

// Start запускает HTTP-сервер и блокируется до его остановки.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.buildHandler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute, // генерация отчета может быть долгой
		IdleTimeout:  2 * time.Minute,
	}

	log.Printf("HTTP сервер слушает порт %s", s.cfg.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown корректно останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP реализует http.Handler для тестов.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.buildHandler().ServeHTTP(w, r)
}
