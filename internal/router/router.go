// internal/router/router.go
package router

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/config"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/handlers"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/middleware"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/services"
)

const Banner = "Hello World from AsColour API Server Backend"

// Initialize builds the proxy. cache may be nil. The returned limiter must
// be stopped when the server shuts down.
func Initialize(cfg *config.Config, cache services.Cache, logger *logrus.Logger) (*gin.Engine, *middleware.RateLimiter) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logrus.NewEntry(logger)

	// Initialize services
	catalogService := services.NewCatalogService(cfg.Catalog, cfg.Cache, cache, log)
	generationService := services.NewGenerationService(cfg.Generator, log)

	// Initialize handlers
	catalogHandler := handlers.NewCatalogHandler(catalogService, log)
	generateHandler := handlers.NewGenerateHandler(generationService, log)

	limiter := middleware.NewRateLimiterFromConfig(cfg.RateLimit)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes, cfg.Generator.MaxUploadBytes))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, Banner)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
		})
	})

	api := r.Group("/api")
	api.Use(limiter.Middleware())
	{
		products := api.Group("/products")
		{
			products.GET("", catalogHandler.GetProducts)
			products.GET("/:styleCode", catalogHandler.GetProduct)
			products.GET("/:styleCode/variants", catalogHandler.GetProductVariants)
			products.GET("/:styleCode/images", catalogHandler.GetProductImages)
		}

		api.GET("/colours", catalogHandler.GetColours)
		api.GET("/inventory/items", catalogHandler.GetInventoryItems)

		api.OPTIONS("/generate-image", generateHandler.Preflight)
		api.POST("/generate-image", generateHandler.GenerateImage)
	}

	r.NoRoute(staticHandler(cfg.Static.Dir, log))

	return r, limiter
}

// staticHandler serves the built client from dir, falling back to its
// index.html for client-side routes. Without an index.html every unknown
// route is a JSON 404.
func staticHandler(dir string, log *logrus.Entry) gin.HandlerFunc {
	index := filepath.Join(dir, "index.html")
	enabled := dir != "" && isFile(index)
	if enabled {
		log.WithField("dir", dir).Info("Serving static client")
	}

	return func(c *gin.Context) {
		if !enabled || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		clean := path.Clean("/" + c.Request.URL.Path)
		file := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
		if clean != "/" && isFile(file) {
			c.File(file)
			return
		}
		c.File(index)
	}
}

func isFile(name string) bool {
	info, err := os.Stat(name)
	return err == nil && !info.IsDir()
}
