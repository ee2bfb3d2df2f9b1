// Package validation provides input validation middleware for the Abrium API.
package validation

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB). Dynamic webhook
// payloads carry full credential lists but stay well under this.
const MaxRequestSize = 1 << 20

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// ParseChainID parses a chain id query value. Chain ids are positive
// EVM network identifiers.
func ParseChainID(raw string) (int64, bool) {
	chainID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || chainID <= 0 {
		return 0, false
	}
	return chainID, true
}
