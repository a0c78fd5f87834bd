package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PrintSlip renders the printable slip for :opdId as HTML.
func (h *Handler) PrintSlip(c *gin.Context) {
	page, err := h.slips.Render(c.Param("opdId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// StreamToday upgrades to a WebSocket that receives today's list on every change.
func (h *Handler) StreamToday(c *gin.Context) {
	if err := h.hub.Serve(c.Writer, c.Request); err != nil {
		// The upgrader has already written the failure response.
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
	}
}
