package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/voucher-wallet/internal/model"
	xhttp "github.com/nimasrn/voucher-wallet/pkg/http"
)

type AccountService interface {
	RegisterUser(ctx context.Context, req model.UserCreateRequest) (*model.Account, error)
	CreateMerchantProfile(ctx context.Context, userID int64, req model.MerchantCreateRequest) (*model.MerchantProfile, error)
	Get(ctx context.Context, userID int64) (*model.Account, error)
}

type AccountHandler struct {
	svc AccountService
}

func NewAccountHandler(svc AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// RegisterAccountRoutes mounts the account endpoints. POST /accounts is
// called by the identity provider's provisioning hook and must be listed in
// the auth middleware's skip paths.
func RegisterAccountRoutes(g *router.Group, h *AccountHandler) {
	g.POST("/accounts", h.Register)
	g.GET("/me", h.Me)
	g.POST("/me/merchant", h.CreateMerchant)
}

func (h *AccountHandler) Register(ctx *xhttp.RequestCtx) {
	var req model.UserCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	acc, err := h.svc.RegisterUser(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, acc)
}

func (h *AccountHandler) Me(ctx *xhttp.RequestCtx) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	acc, err := h.svc.Get(ctx, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, acc)
}

func (h *AccountHandler) CreateMerchant(ctx *xhttp.RequestCtx) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req model.MerchantCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	profile, err := h.svc.CreateMerchantProfile(ctx, userID, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, profile)
}
