package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/voucher-wallet/internal/model"
	xhttp "github.com/nimasrn/voucher-wallet/pkg/http"
)

type VoucherService interface {
	Create(ctx context.Context, merchantUserID int64, req model.VoucherCreateRequest) (*model.Voucher, error)
	Deactivate(ctx context.Context, merchantUserID, voucherID int64) error
	Get(ctx context.Context, id int64) (*model.Voucher, error)
	ListPublic(ctx context.Context, f model.VoucherFilter) ([]*model.Voucher, int64, error)
	Popular(ctx context.Context) ([]*model.Voucher, error)
	ListByMerchant(ctx context.Context, merchantUserID int64, f model.VoucherFilter) ([]*model.Voucher, int64, error)
}

type VoucherHandler struct {
	svc VoucherService
}

func NewVoucherHandler(svc VoucherService) *VoucherHandler {
	return &VoucherHandler{svc: svc}
}

func RegisterVoucherRoutes(g *router.Group, h *VoucherHandler) {
	g.GET("/vouchers", h.ListVouchers)
	g.GET("/vouchers/popular", h.Popular)
	g.GET("/vouchers/{id}", h.GetVoucher)
	g.POST("/merchant/vouchers", h.CreateVoucher)
	g.GET("/merchant/vouchers", h.ListMerchantVouchers)
	g.DELETE("/merchant/vouchers/{id}", h.DeactivateVoucher)
}

func voucherFilter(ctx *xhttp.RequestCtx) model.VoucherFilter {
	f := model.VoucherFilter{
		MerchantID: queryInt64(ctx, "merchant_id"),
		Limit:      queryInt(ctx, "limit"),
		Offset:     queryInt(ctx, "offset"),
	}
	if v := query(ctx, "category"); v != "" {
		f.Category = &v
	}
	if v := query(ctx, "voucher_type"); v != "" {
		typ := model.VoucherType(v)
		f.VoucherType = &typ
	}
	return f
}

func (h *VoucherHandler) ListVouchers(ctx *xhttp.RequestCtx) {
	items, total, err := h.svc.ListPublic(ctx, voucherFilter(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.Voucher]{Items: items, Total: total})
}

func (h *VoucherHandler) Popular(ctx *xhttp.RequestCtx) {
	items, err := h.svc.Popular(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.Voucher]{Items: items, Total: int64(len(items))})
}

func (h *VoucherHandler) GetVoucher(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	v, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, v)
}

func (h *VoucherHandler) CreateVoucher(ctx *xhttp.RequestCtx) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req model.VoucherCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	v, err := h.svc.Create(ctx, userID, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, v)
}

func (h *VoucherHandler) ListMerchantVouchers(ctx *xhttp.RequestCtx) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	items, total, err := h.svc.ListByMerchant(ctx, userID, voucherFilter(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.Voucher]{Items: items, Total: total})
}

func (h *VoucherHandler) DeactivateVoucher(ctx *xhttp.RequestCtx) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Deactivate(ctx, userID, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}
