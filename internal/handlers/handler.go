package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"opd-desk/internal/daily"
	"opd-desk/internal/desk"
	"opd-desk/internal/identity"
	"opd-desk/internal/live"
	"opd-desk/internal/mirror"
	"opd-desk/internal/registration"
	"opd-desk/internal/slip"
	"opd-desk/pkg/utils"
)

// Handler serves the front-desk API.
type Handler struct {
	desk      *desk.Desk
	mirror    *mirror.Mirror
	projector *daily.Projector
	slips     *slip.Renderer
	hub       *live.Hub
	now       func() time.Time
	log       zerolog.Logger
}

type Deps struct {
	Desk      *desk.Desk
	Mirror    *mirror.Mirror
	Projector *daily.Projector
	Slips     *slip.Renderer
	Hub       *live.Hub
	Clock     func() time.Time
	Logger    zerolog.Logger
}

func New(d Deps) *Handler {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return &Handler{
		desk:      d.Desk,
		mirror:    d.Mirror,
		projector: d.Projector,
		slips:     d.Slips,
		hub:       d.Hub,
		now:       d.Clock,
		log:       d.Logger,
	}
}

// Ping is the liveness check.
func (h *Handler) Ping(c *gin.Context) {
	utils.APIResponse(c, http.StatusOK, true, "Server OK!", gin.H{"synced": h.mirror.Loaded()})
}

// respondError maps a desk error onto a status code and the operator-facing message.
func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *registration.ValidationError
	var partial *registration.PartialWriteError

	switch {
	case errors.As(err, &verr):
		utils.APIResponse(c, http.StatusBadRequest, false, verr.Message, nil)
	case errors.Is(err, desk.ErrEmptySearch):
		utils.APIResponse(c, http.StatusBadRequest, false, desk.MsgEmptySearch, nil)
	case errors.Is(err, desk.ErrNoMatch):
		utils.APIResponse(c, http.StatusNotFound, false, desk.MsgNoMatch, []interface{}{})
	case errors.Is(err, registration.ErrPatientNotFound):
		utils.APIResponse(c, http.StatusNotFound, false, "Patient not found", nil)
	case errors.Is(err, slip.ErrNotFound):
		utils.APIResponse(c, http.StatusNotFound, false, slip.MsgNotFound, nil)
	case errors.Is(err, registration.ErrNothingLoaded):
		utils.APIResponse(c, http.StatusConflict, false, "Load a patient before updating", nil)
	case errors.Is(err, desk.ErrBusy):
		utils.APIResponse(c, http.StatusConflict, false, "Saving... please wait", nil)
	case errors.Is(err, identity.ErrExhausted):
		utils.APIResponse(c, http.StatusConflict, false, "Could not assign a free id, try again", nil)
	case errors.As(err, &partial):
		c.Error(err)
		utils.APIResponse(c, http.StatusBadGateway, false, "Patient saved but the OPD visit was not created. Save again.", gin.H{"pid": partial.PID})
	case errors.Is(err, context.DeadlineExceeded):
		c.Error(err)
		utils.APIResponse(c, http.StatusGatewayTimeout, false, "Database did not answer in time", nil)
	default:
		c.Error(err)
		utils.APIResponse(c, http.StatusBadGateway, false, err.Error(), nil)
	}
}

// formError turns a binding failure into the error the operator sees. A failed field
// rule still leaves the body decoded, so check runs first and its ordered messages win.
// Any other binding failure returns nil.
func formError(err error, check func() error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return nil
	}
	if verr := check(); verr != nil {
		return verr
	}
	return &registration.ValidationError{Message: registration.MsgBadPhone}
}
