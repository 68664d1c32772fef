package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/nimasrn/voucher-wallet/internal/model"
	xhttp "github.com/nimasrn/voucher-wallet/pkg/http"
)

type PurchaseService interface {
	Purchase(ctx context.Context, userID, voucherID int64, gift bool) (*model.PurchaseResult, error)
	Redeem(ctx context.Context, userID, redemptionID int64, location, notes string) (*model.Redemption, error)
	Cancel(ctx context.Context, userID, redemptionID int64, reason string) (*model.Redemption, error)
	Refund(ctx context.Context, userID, redemptionID int64, reason string) (*model.RefundResult, error)
	ExpireDue(ctx context.Context) (int64, error)
	PreviewExpiry(ctx context.Context) (*model.ExpiryPreview, error)
	Get(ctx context.Context, userID, redemptionID int64) (*model.Redemption, error)
	ListUserVouchers(ctx context.Context, f model.RedemptionFilter) ([]*model.Redemption, int64, error)
	Summary(ctx context.Context, userID int64) (*model.PurchaseSummary, error)
	Now() time.Time
}

type PurchaseHandler struct {
	svc PurchaseService
}

func NewPurchaseHandler(svc PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{svc: svc}
}

func RegisterPurchaseRoutes(g *router.Group, h *PurchaseHandler) {
	g.POST("/vouchers/{id}/purchase", h.Purchase)
	g.GET("/purchases", h.ListPurchases)
	g.GET("/purchases/summary", h.Summary)
	g.GET("/purchases/{id}", h.GetPurchase)
	g.POST("/purchases/{id}/redeem", h.Redeem)
	g.POST("/purchases/{id}/cancel", h.Cancel)
	g.POST("/purchases/{id}/refund", h.Refund)
	g.GET("/admin/expiry", h.PreviewExpiry)
	g.POST("/admin/expiry", h.ExpireDue)
}

type purchaseRequest struct {
	Gift bool `json:"gift"`
}

type redeemRequest struct {
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type recordResponse struct {
	*model.Redemption
	RemainingDays   int  `json:"remaining_days"`
	IsExpired       bool `json:"is_expired"`
	IsAboutToExpire bool `json:"is_about_to_expire"`
}

func (h *PurchaseHandler) present(r *model.Redemption) recordResponse {
	now := h.svc.Now()
	return recordResponse{
		Redemption:      r,
		RemainingDays:   r.RemainingDays(now),
		IsExpired:       r.IsExpired(now),
		IsAboutToExpire: r.IsAboutToExpire(now),
	}
}

// target reads the authenticated user and the {id} path value.
func target(ctx *xhttp.RequestCtx) (userID, id int64, ok bool) {
	if userID, ok = currentUser(ctx); !ok {
		return 0, 0, false
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return userID, id, true
}

func (h *PurchaseHandler) Purchase(ctx *xhttp.RequestCtx) {
	userID, voucherID, ok := target(ctx)
	if !ok {
		return
	}
	var req purchaseRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	res, err := h.svc.Purchase(ctx, userID, voucherID, req.Gift || queryBool(ctx, "gift"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, res)
}

func (h *PurchaseHandler) ListPurchases(ctx *xhttp.RequestCtx) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	f := model.RedemptionFilter{
		UserID:    userID,
		VoucherID: queryInt64(ctx, "voucher_id"),
		From:      queryTime(ctx, "from"),
		To:        queryTime(ctx, "to"),
		Limit:     queryInt(ctx, "limit"),
		Offset:    queryInt(ctx, "offset"),
	}
	for _, s := range queryList(ctx, "status") {
		st := model.PurchaseStatus(s)
		if !st.Valid() {
			writeError(ctx, xhttp.StatusBadRequest, "unknown status "+s)
			return
		}
		f.Statuses = append(f.Statuses, st)
	}

	items, total, err := h.svc.ListUserVouchers(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	out := make([]recordResponse, 0, len(items))
	for _, r := range items {
		out = append(out, h.present(r))
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[recordResponse]{Items: out, Total: total})
}

func (h *PurchaseHandler) Summary(ctx *xhttp.RequestCtx) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	sum, err := h.svc.Summary(ctx, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, sum)
}

func (h *PurchaseHandler) GetPurchase(ctx *xhttp.RequestCtx) {
	userID, id, ok := target(ctx)
	if !ok {
		return
	}
	r, err := h.svc.Get(ctx, userID, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, h.present(r))
}

func (h *PurchaseHandler) Redeem(ctx *xhttp.RequestCtx) {
	userID, id, ok := target(ctx)
	if !ok {
		return
	}
	var req redeemRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	r, err := h.svc.Redeem(ctx, userID, id, req.Location, req.Notes)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, h.present(r))
}

func (h *PurchaseHandler) Cancel(ctx *xhttp.RequestCtx) {
	userID, id, ok := target(ctx)
	if !ok {
		return
	}
	var req reasonRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	r, err := h.svc.Cancel(ctx, userID, id, req.Reason)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, h.present(r))
}

func (h *PurchaseHandler) Refund(ctx *xhttp.RequestCtx) {
	userID, id, ok := target(ctx)
	if !ok {
		return
	}
	var req reasonRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	res, err := h.svc.Refund(ctx, userID, id, req.Reason)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, res)
}

func (h *PurchaseHandler) PreviewExpiry(ctx *xhttp.RequestCtx) {
	if !requireAdmin(ctx) {
		return
	}
	p, err := h.svc.PreviewExpiry(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, p)
}

func (h *PurchaseHandler) ExpireDue(ctx *xhttp.RequestCtx) {
	if !requireAdmin(ctx) {
		return
	}
	n, err := h.svc.ExpireDue(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]int64{"expired": n})
}
