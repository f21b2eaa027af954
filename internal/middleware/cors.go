// internal/middleware/cors.go
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/config"
)

// CORS allows the configured origins; a "*" entry or an empty list allows
// any origin.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(cfg.Origins) == 0
	for _, origin := range cfg.Origins {
		if origin == "*" {
			allowAll = true
		}
	}
	if allowAll {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.Origins
	}
	return cors.New(c)
}

// BodyLimit caps request bodies at n bytes. Multipart uploads are capped at
// uploadN instead; a limit of 0 leaves that kind of body unbounded.
func BodyLimit(n, uploadN int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := n
		if isMultipart(c.ContentType()) {
			limit = uploadN
		}
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func isMultipart(contentType string) bool {
	return strings.HasPrefix(contentType, "multipart/")
}
