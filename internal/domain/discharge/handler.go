package discharge

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/dischargehq/discharge/internal/platform/auth"
	"github.com/dischargehq/discharge/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – any clinical role
	readGroup := api.Group("", auth.RequireRole("admin", "doctor", "chief"))
	readGroup.GET("/discharges", h.List)
	readGroup.GET("/discharges/:id", h.Get)
	readGroup.GET("/discharges/:id/rendered", h.GetRendered)

	// Authoring endpoints – the treating doctor
	authorGroup := api.Group("", auth.RequireRole("admin", "doctor"))
	authorGroup.POST("/discharges", h.Create)
	authorGroup.PUT("/discharges/:id", h.UpdateFields)
	authorGroup.POST("/discharges/:id/enhance", h.Enhance)
	authorGroup.POST("/discharges/:id/submit", h.Submit)
	authorGroup.POST("/discharges/:id/reopen", h.Reopen)

	// Review endpoints – the approving chief
	chiefGroup := api.Group("", auth.RequireRole("admin", "chief"))
	chiefGroup.POST("/discharges/:id/chief-edit", h.ChiefEdit)
	chiefGroup.POST("/discharges/:id/approve", h.Approve)
	chiefGroup.POST("/discharges/:id/reject", h.Reject)
}

func (h *Handler) Create(c echo.Context) error {
	var rec DischargeRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "discharge record not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if uhid := c.QueryParam("uhid"); uhid != "" {
		rec, err := h.svc.GetByUHID(ctx, uhid)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "discharge record not found")
		}
		return c.JSON(http.StatusOK, pagination.NewResponse([]*DischargeRecord{rec}, 1, pg.Limit, pg.Offset))
	}

	if status := c.QueryParam("status"); status != "" {
		items, total, err := h.svc.ListByStatus(ctx, Status(status), pg.Limit, pg.Offset)
		if err != nil {
			if !Status(status).Valid() {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset)
		resp.Links = pg.Links(c.Path(), total)
		return c.JSON(http.StatusOK, resp)
	}

	items, total, err := h.svc.List(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Path(), total)
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) UpdateFields(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var update FieldUpdate
	if err := c.Bind(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.UpdateFields(c.Request().Context(), id, update)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Enhance(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Enhance(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

type submitRequest struct {
	EditedText string `json:"editedText"`
}

func (h *Handler) Submit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Submit(c.Request().Context(), id, req.EditedText)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ChiefEdit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.ChiefEdit(c.Request().Context(), id, req.EditedText)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Approve(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

type rejectRequest struct {
	Remarks string `json:"remarks"`
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req rejectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Reject(c.Request().Context(), id, req.Remarks)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Reopen(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Reopen(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// renderedResponse carries the record's presentation in one of two
// formats: structured records render to HTML, records predating the
// structured pipeline fall back to parsed legacy sections.
type renderedResponse struct {
	ID       uuid.UUID `json:"id"`
	Format   string    `json:"format"`
	HTML     string    `json:"html,omitempty"`
	Sections []Section `json:"sections,omitempty"`
}

func (h *Handler) GetRendered(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "discharge record not found")
	}

	if rec.StructuredDoc != nil {
		html := rec.RenderedHTML
		if html == "" {
			html = RenderDocument(rec.StructuredDoc)
		}
		return c.JSON(http.StatusOK, renderedResponse{ID: rec.ID, Format: "html", HTML: html})
	}

	sections := ParseLegacyText(rec.DisplayText())
	return c.JSON(http.StatusOK, renderedResponse{ID: rec.ID, Format: "legacy", Sections: sections})
}

// writeError maps service errors onto HTTP statuses: workflow violations
// are conflicts, validation failures are bad requests.
func writeError(c echo.Context, err error) error {
	var te *TransitionError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, "discharge record not found")
	case errors.As(err, &te):
		return echo.NewHTTPError(http.StatusConflict, te.Error())
	case errors.Is(err, ErrFieldsLocked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrRemarksRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
