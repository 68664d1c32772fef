package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/voucher-wallet/internal/model"
	xhttp "github.com/nimasrn/voucher-wallet/pkg/http"
)

type SettingsService interface {
	Get(ctx context.Context, key string) (*model.SiteSetting, error)
	Set(ctx context.Context, in model.SiteSetting) (*model.SiteSetting, error)
	List(ctx context.Context) ([]*model.SiteSetting, error)
}

type SettingsHandler struct {
	svc SettingsService
}

func NewSettingsHandler(svc SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

func RegisterSettingsRoutes(g *router.Group, h *SettingsHandler) {
	g.GET("/admin/settings", h.List)
	g.GET("/admin/settings/{key}", h.Get)
	g.PUT("/admin/settings/{key}", h.Put)
}

type settingRequest struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (h *SettingsHandler) List(ctx *xhttp.RequestCtx) {
	if !requireAdmin(ctx) {
		return
	}
	items, err := h.svc.List(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.SiteSetting]{Items: items, Total: int64(len(items))})
}

func (h *SettingsHandler) Get(ctx *xhttp.RequestCtx) {
	if !requireAdmin(ctx) {
		return
	}
	s, err := h.svc.Get(ctx, pathString(ctx, "key"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, s)
}

func (h *SettingsHandler) Put(ctx *xhttp.RequestCtx) {
	if !requireAdmin(ctx) {
		return
	}
	var req settingRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	s, err := h.svc.Set(ctx, model.SiteSetting{
		Key:         pathString(ctx, "key"),
		Value:       req.Value,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, s)
}
