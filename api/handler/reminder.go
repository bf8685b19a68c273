package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/remindgo/backend/api/transport"
	"github.com/remindgo/backend/domain"
	"github.com/remindgo/backend/pkg/httpcontext"
	"github.com/remindgo/backend/repository"
	reminderUC "github.com/remindgo/backend/usecase/reminder"
)

type ReminderHandler struct {
	baseHandler
	manager *reminderUC.Manager
}

func NewReminderHandler(manager *reminderUC.Manager, adapter *httpcontext.Adapter, logger *zap.Logger) *ReminderHandler {
	return &ReminderHandler{
		baseHandler: newBaseHandler(adapter, logger),
		manager:     manager,
	}
}

// @Summary List reminders
// @Tags reminders
// @Router /api/v1/reminders [get]
func (h *ReminderHandler) List(ctx *fasthttp.RequestCtx) {
	filter := repository.ListFilter(ctx.QueryArgs().Peek("filter"))
	if filter == "" {
		filter = repository.FilterActive
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	reminders, err := h.manager.List(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if reminders == nil {
		reminders = []domain.Reminder{}
	}
	h.respondSuccess(ctx, http.StatusOK, reminders)
}

// @Summary Create reminder
// @Tags reminders
// @Router /api/v1/reminders [post]
func (h *ReminderHandler) Create(ctx *fasthttp.RequestCtx) {
	req, ok := h.parseRequest(ctx)
	if !ok {
		return
	}
	fireAt, err := time.Parse(time.RFC3339, req.FireAt)
	if err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "fire_at must be RFC3339"))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.manager.Add(stdCtx, req.Title, req.Description, fireAt)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Update reminder
// @Tags reminders
// @Router /api/v1/reminders/{id} [put]
func (h *ReminderHandler) Update(ctx *fasthttp.RequestCtx) {
	req, ok := h.parseRequest(ctx)
	if !ok {
		return
	}
	if req.ID == "" {
		if id, ok := ctx.UserValue("id").(string); ok {
			req.ID = id
		}
	}
	fireAt, err := time.Parse(time.RFC3339, req.FireAt)
	if err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "fire_at must be RFC3339"))
		return
	}

	rem := &domain.Reminder{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		FireAt:      fireAt,
		State:       domain.State(req.State),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.manager.Update(stdCtx, rem)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Delete reminder
// @Tags reminders
// @Router /api/v1/reminders/{id} [delete]
func (h *ReminderHandler) Delete(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.manager.Delete(stdCtx, id); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}

// @Summary Complete reminder
// @Tags reminders
// @Router /api/v1/reminders/{id}/complete [post]
func (h *ReminderHandler) Complete(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	completed, err := h.manager.Complete(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, completed)
}

// @Summary Postpone reminder
// @Tags reminders
// @Router /api/v1/reminders/{id}/postpone [post]
func (h *ReminderHandler) Postpone(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	var req transport.PostponeRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload"))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	postponed, err := h.manager.Postpone(stdCtx, id, req.Minutes)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, postponed)
}

func (h *ReminderHandler) parseRequest(ctx *fasthttp.RequestCtx) (*transport.ReminderRequest, bool) {
	var req transport.ReminderRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload"))
		return nil, false
	}
	return &req, true
}

func (h *ReminderHandler) pathID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing reminder id"))
		return "", false
	}
	return id, true
}
