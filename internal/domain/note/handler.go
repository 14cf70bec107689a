package note

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/scribe/internal/domain/record"
	"github.com/ehr/scribe/internal/platform/auth"
	"github.com/ehr/scribe/internal/platform/generation"
	"github.com/ehr/scribe/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleClinician))

	g.GET("/assistant/presets", h.ListPresets)

	g.POST("/sessions", h.CreateSession)
	g.GET("/sessions/:id", h.GetSession)
	g.DELETE("/sessions/:id", h.EndSession)

	g.GET("/sessions/:id/record", h.GetRecord)
	g.GET("/sessions/:id/record/payload", h.GetPayload)
	g.PATCH("/sessions/:id/record/profile", h.UpdateProfile)
	g.POST("/sessions/:id/record/profile/diseases", h.AddDisease)
	g.DELETE("/sessions/:id/record/profile/diseases", h.RemoveDisease)
	g.POST("/sessions/:id/record/timepoints", h.AddTimepoint)
	g.PATCH("/sessions/:id/record/timepoints/:tid", h.UpdateTimepoint)
	g.DELETE("/sessions/:id/record/timepoints/:tid", h.RemoveTimepoint)
	g.POST("/sessions/:id/record/timepoints/:tid/copy", h.CopyTimepoint)
	g.POST("/sessions/:id/record/items", h.ApplyItem)

	g.POST("/sessions/:id/generate", h.Generate)
	g.PUT("/sessions/:id/note", h.SetNote)
	g.GET("/sessions/:id/note/export", h.Export)

	g.GET("/sessions/:id/history", h.ListHistory)
	g.POST("/sessions/:id/history/undo", h.Undo)
	g.POST("/sessions/:id/history/redo", h.Redo)
	g.POST("/sessions/:id/history/:index/restore", h.Restore)

	g.POST("/sessions/:id/selection", h.Select)
	g.PUT("/sessions/:id/selection/instruction", h.SetSelectionInstruction)
	g.DELETE("/sessions/:id/selection", h.DismissSelection)
	g.POST("/sessions/:id/selection/refine", h.RefineSelection)

	g.PUT("/sessions/:id/assistant/draft", h.SetDraft)
	g.POST("/sessions/:id/assistant/refine", h.RefineWithDraft)
	g.POST("/sessions/:id/assistant/presets/:preset", h.RefineWithPreset)
}

// Error codes in response bodies.
const (
	CodeCredentialMissing = "credential_missing"
	CodeCredentialInvalid = "credential_invalid"
	CodeGenerationFailed  = "generation_failed"
	CodeBusy              = "busy"
	CodeInvalidInput      = "invalid_input"
	CodeNotFound          = "not_found"
	CodeInternal          = "internal"
)

func apiError(status int, code, message string) *echo.HTTPError {
	return echo.NewHTTPError(status, map[string]string{"code": code, "message": message})
}

// httpError maps service errors onto HTTP responses.
func httpError(err error) error {
	switch {
	case errors.Is(err, generation.ErrMissingCredential):
		return apiError(http.StatusPreconditionRequired, CodeCredentialMissing,
			"no generation API key is configured")
	case errors.Is(err, generation.ErrInvalidCredential):
		return apiError(http.StatusPreconditionRequired, CodeCredentialInvalid,
			"the generation API key was rejected; verify it in settings")
	case errors.Is(err, generation.ErrFailed):
		return apiError(http.StatusBadGateway, CodeGenerationFailed,
			"note generation failed; the note is unchanged and the request can be retried")
	case errors.Is(err, ErrBusy):
		return apiError(http.StatusConflict, CodeBusy, err.Error())
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, record.ErrTimepointNotFound):
		return apiError(http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, record.ErrLastTimepoint),
		errors.Is(err, record.ErrInvalidDate),
		errors.Is(err, record.ErrInvalidDateType),
		errors.Is(err, record.ErrInvalidGender),
		errors.Is(err, record.ErrUnknownCategory),
		errors.Is(err, record.ErrEmptyItem):
		return apiError(http.StatusBadRequest, CodeInvalidInput, err.Error())
	}
	return apiError(http.StatusInternalServerError, CodeInternal, err.Error())
}

func badRequest(err error) error {
	return apiError(http.StatusBadRequest, CodeInvalidInput, err.Error())
}

func userID(c echo.Context) string {
	return auth.UserIDFromContext(c.Request().Context())
}

func (h *Handler) respond(c echo.Context, v *View, err error) error {
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// -- Sessions --

func (h *Handler) CreateSession(c echo.Context) error {
	v := h.svc.CreateSession(c.Request().Context(), userID(c))
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetSession(c echo.Context) error {
	v, err := h.svc.GetSession(c.Request().Context(), userID(c), c.Param("id"))
	return h.respond(c, v, err)
}

func (h *Handler) EndSession(c echo.Context) error {
	if err := h.svc.EndSession(c.Request().Context(), userID(c), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Record --

func (h *Handler) GetRecord(c echo.Context) error {
	v, err := h.svc.GetSession(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"record": v.Record, "diagnosis": v.Diagnosis})
}

func (h *Handler) GetPayload(c echo.Context) error {
	p, err := h.svc.Payload(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var patch record.ProfilePatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(err)
	}
	v, err := h.svc.UpdateProfile(c.Request().Context(), userID(c), c.Param("id"), patch)
	return h.respond(c, v, err)
}

type diseaseRequest struct {
	Name string `json:"name"`
}

func (h *Handler) AddDisease(c echo.Context) error {
	var req diseaseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	v, err := h.svc.AddDisease(c.Request().Context(), userID(c), c.Param("id"), req.Name)
	return h.respond(c, v, err)
}

func (h *Handler) RemoveDisease(c echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		var req diseaseRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(err)
		}
		name = req.Name
	}
	v, err := h.svc.RemoveDisease(c.Request().Context(), userID(c), c.Param("id"), name)
	return h.respond(c, v, err)
}

func (h *Handler) AddTimepoint(c echo.Context) error {
	v, err := h.svc.AddTimepoint(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) UpdateTimepoint(c echo.Context) error {
	var patch record.TimepointPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(err)
	}
	v, err := h.svc.UpdateTimepoint(c.Request().Context(), userID(c), c.Param("id"), c.Param("tid"), patch)
	return h.respond(c, v, err)
}

func (h *Handler) RemoveTimepoint(c echo.Context) error {
	v, err := h.svc.RemoveTimepoint(c.Request().Context(), userID(c), c.Param("id"), c.Param("tid"))
	return h.respond(c, v, err)
}

type copyRequest struct {
	SourceID string `json:"source_id"`
}

func (h *Handler) CopyTimepoint(c echo.Context) error {
	var req copyRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	if req.SourceID == "" {
		return apiError(http.StatusBadRequest, CodeInvalidInput, "source_id is required")
	}
	v, err := h.svc.CopyTimepoint(c.Request().Context(), userID(c), c.Param("id"), c.Param("tid"), req.SourceID)
	return h.respond(c, v, err)
}

type itemRequest struct {
	Target   string `json:"target"`
	Category string `json:"category"`
	Item     string `json:"item"`
}

func (h *Handler) ApplyItem(c echo.Context) error {
	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	if req.Target == "" {
		return apiError(http.StatusBadRequest, CodeInvalidInput, "target is required")
	}
	v, err := h.svc.ApplyItem(c.Request().Context(), userID(c), c.Param("id"), req.Target, req.Category, req.Item)
	return h.respond(c, v, err)
}

// -- Note --

func (h *Handler) Generate(c echo.Context) error {
	v, err := h.svc.Generate(c.Request().Context(), userID(c), c.Param("id"))
	return h.respond(c, v, err)
}

type noteRequest struct {
	Text string `json:"text"`
}

func (h *Handler) SetNote(c echo.Context) error {
	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	v, err := h.svc.SetNote(c.Request().Context(), userID(c), c.Param("id"), req.Text)
	return h.respond(c, v, err)
}

func (h *Handler) Export(c echo.Context) error {
	text, err := h.svc.Export(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.String(http.StatusOK, text)
}

// -- History --

func (h *Handler) ListHistory(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListHistory(c.Request().Context(), userID(c), c.Param("id"), pg)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Undo(c echo.Context) error {
	v, err := h.svc.Undo(c.Request().Context(), userID(c), c.Param("id"))
	return h.respond(c, v, err)
}

func (h *Handler) Redo(c echo.Context) error {
	v, err := h.svc.Redo(c.Request().Context(), userID(c), c.Param("id"))
	return h.respond(c, v, err)
}

func (h *Handler) Restore(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return apiError(http.StatusBadRequest, CodeInvalidInput, "invalid version index")
	}
	v, err := h.svc.Restore(c.Request().Context(), userID(c), c.Param("id"), index)
	return h.respond(c, v, err)
}

// -- Selection --

type selectRequest struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (h *Handler) Select(c echo.Context) error {
	var req selectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	v, err := h.svc.Select(c.Request().Context(), userID(c), c.Param("id"), req.Start, req.End)
	return h.respond(c, v, err)
}

type instructionRequest struct {
	Instruction string `json:"instruction"`
}

func (h *Handler) SetSelectionInstruction(c echo.Context) error {
	var req instructionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	v, err := h.svc.SetSelectionInstruction(c.Request().Context(), userID(c), c.Param("id"), req.Instruction)
	return h.respond(c, v, err)
}

func (h *Handler) DismissSelection(c echo.Context) error {
	v, err := h.svc.DismissSelection(c.Request().Context(), userID(c), c.Param("id"))
	return h.respond(c, v, err)
}

func (h *Handler) RefineSelection(c echo.Context) error {
	var req instructionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	v, err := h.svc.RefineSelection(c.Request().Context(), userID(c), c.Param("id"), req.Instruction)
	return h.respond(c, v, err)
}

// -- Assistant --

func (h *Handler) ListPresets(c echo.Context) error {
	return c.JSON(http.StatusOK, Presets)
}

type draftRequest struct {
	Draft string `json:"draft"`
}

func (h *Handler) SetDraft(c echo.Context) error {
	var req draftRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	v, err := h.svc.SetDraft(c.Request().Context(), userID(c), c.Param("id"), req.Draft)
	return h.respond(c, v, err)
}

func (h *Handler) RefineWithDraft(c echo.Context) error {
	var req instructionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	v, err := h.svc.RefineWithDraft(c.Request().Context(), userID(c), c.Param("id"), req.Instruction)
	return h.respond(c, v, err)
}

func (h *Handler) RefineWithPreset(c echo.Context) error {
	v, err := h.svc.RefineWithPreset(c.Request().Context(), userID(c), c.Param("id"), c.Param("preset"))
	return h.respond(c, v, err)
}
