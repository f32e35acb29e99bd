package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	XSRFCookie = "_xsrf"
	XSRFHeader = "X-Xsrftoken"

	allowedMethods = "GET, POST, DELETE, OPTIONS"
	allowedHeaders = "Content-Type, " + XSRFHeader
)

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logging.L.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"ip", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", allowedMethods)
		h.Set("Access-Control-Allow-Headers", allowedHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func safeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// xsrfGuard is a double-submit cookie check: safe requests get a token
// cookie, unsafe ones must echo it in the header.
func xsrfGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(XSRFCookie)

		if safeMethod(c.Request.Method) {
			if err != nil || cookie == "" {
				cookie = strings.ReplaceAll(uuid.NewString(), "-", "")
				c.SetSameSite(http.SameSiteStrictMode)
				c.SetCookie(XSRFCookie, cookie, 0, "/", "", false, false)
			}
			c.Header(XSRFHeader, cookie)
			c.Next()
			return
		}

		if err != nil || cookie == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "XSRF cookie missing", "code": CodeForbidden})
			return
		}
		sent := c.GetHeader(XSRFHeader)
		if subtle.ConstantTimeCompare([]byte(cookie), []byte(sent)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "XSRF token mismatch", "code": CodeForbidden})
			return
		}
		c.Next()
	}
}
