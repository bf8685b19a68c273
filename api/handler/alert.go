package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/remindgo/backend/internal/services"
	"github.com/remindgo/backend/pkg/httpcontext"
)

type AlertHandler struct {
	baseHandler
	feed *services.AlertFeed
}

func NewAlertHandler(feed *services.AlertFeed, adapter *httpcontext.Adapter, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		baseHandler: newBaseHandler(adapter, logger),
		feed:        feed,
	}
}

// @Summary Recent due-reminder alerts
// @Tags alerts
// @Router /api/v1/alerts [get]
func (h *AlertHandler) Recent(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.feed.Recent())
}
