package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/voucher-wallet/internal/model"
	xhttp "github.com/nimasrn/voucher-wallet/pkg/http"
	"github.com/shopspring/decimal"
)

type WalletService interface {
	Balance(ctx context.Context, userID int64) (*model.Wallet, error)
	History(ctx context.Context, userID int64, f model.WalletHistoryFilter) ([]*model.WalletHistory, int64, error)
	Credit(ctx context.Context, userID int64, mv model.WalletMovement) (*model.Wallet, error)
	Deduct(ctx context.Context, userID int64, mv model.WalletMovement) (*model.Wallet, error)
	Reconcile(ctx context.Context, userID int64) (*model.Reconciliation, error)
}

type WalletHandler struct {
	svc WalletService
}

func NewWalletHandler(svc WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

func RegisterWalletRoutes(g *router.Group, h *WalletHandler) {
	g.GET("/wallet", h.GetBalance)
	g.GET("/wallet/history", h.ListHistory)
	g.GET("/wallet/reconcile", h.Reconcile)
	g.POST("/admin/wallets/{target_id}/credit", h.Credit)
	g.POST("/admin/wallets/{target_id}/deduct", h.Deduct)
}

type movementRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Note        string          `json:"note"`
	ReferenceID string          `json:"reference_id"`
	Meta        map[string]any  `json:"meta"`
}

func (h *WalletHandler) GetBalance(ctx *xhttp.RequestCtx) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	w, err := h.svc.Balance(ctx, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, w)
}

func (h *WalletHandler) ListHistory(ctx *xhttp.RequestCtx) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	f := model.WalletHistoryFilter{
		From:   queryTime(ctx, "from"),
		To:     queryTime(ctx, "to"),
		Limit:  queryInt(ctx, "limit"),
		Offset: queryInt(ctx, "offset"),
		Asc:    query(ctx, "order") == "asc",
	}
	if v := query(ctx, "type"); v != "" {
		typ := model.TransactionType(v)
		if !typ.Valid() {
			writeError(ctx, xhttp.StatusBadRequest, "type must be credit or debit")
			return
		}
		f.Type = &typ
	}
	if v := query(ctx, "reference_id"); v != "" {
		f.ReferenceID = &v
	}

	items, total, err := h.svc.History(ctx, userID, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.WalletHistory]{Items: items, Total: total})
}

func (h *WalletHandler) Reconcile(ctx *xhttp.RequestCtx) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	rec, err := h.svc.Reconcile(ctx, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, rec)
}

func (h *WalletHandler) Credit(ctx *xhttp.RequestCtx) {
	h.move(ctx, h.svc.Credit)
}

func (h *WalletHandler) Deduct(ctx *xhttp.RequestCtx) {
	h.move(ctx, h.svc.Deduct)
}

func (h *WalletHandler) move(ctx *xhttp.RequestCtx, fn func(context.Context, int64, model.WalletMovement) (*model.Wallet, error)) {
	if !requireAdmin(ctx) {
		return
	}
	target, err := pathInt64(ctx, "target_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	var req movementRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	w, err := fn(ctx, target, model.WalletMovement{
		Amount:      req.Amount,
		Note:        req.Note,
		ReferenceID: req.ReferenceID,
		Meta:        req.Meta,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, w)
}
