package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"opd-desk/pkg/utils"
)

// TerminalHeader names the front-desk terminal a request comes from.
const TerminalHeader = "X-Terminal-ID"

// TerminalKey is the gin context key holding the terminal id.
const TerminalKey = "terminalID"

const maxTerminalLen = 64

// TerminalMiddleware stores the calling terminal's id in the context. Requests without
// the header share the "default" terminal.
func TerminalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(TerminalHeader))
		if id == "" {
			id = "default"
		}
		if len(id) > maxTerminalLen {
			utils.AbortWithMessage(c, http.StatusBadRequest, "Terminal id too long")
			return
		}
		c.Set(TerminalKey, id)
		c.Next()
	}
}

// Terminal returns the id set by TerminalMiddleware.
func Terminal(c *gin.Context) string {
	return c.GetString(TerminalKey)
}
