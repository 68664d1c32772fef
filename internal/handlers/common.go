package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/nimasrn/voucher-wallet/internal/services"
	xhttp "github.com/nimasrn/voucher-wallet/pkg/http"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
)

var errInvalidID = errors.New("invalid id")

type listResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

var kindStatus = map[services.Kind]int{
	services.KindNotFound:            xhttp.StatusNotFound,
	services.KindWalletNotFound:      xhttp.StatusNotFound,
	services.KindAlreadyPurchased:    xhttp.StatusConflict,
	services.KindOutOfStock:          xhttp.StatusConflict,
	services.KindAlreadyRedeemed:     xhttp.StatusConflict,
	services.KindAlreadyTerminal:     xhttp.StatusConflict,
	services.KindConflict:            xhttp.StatusConflict,
	services.KindInsufficientBalance: xhttp.StatusPaymentRequired,
	services.KindNotRedeemable:       xhttp.StatusUnprocessableEntity,
	services.KindInvalidInput:        xhttp.StatusBadRequest,
	services.KindForbidden:           xhttp.StatusForbidden,
}

// writeServiceError renders a workflow error. System errors never leak their
// detail to the client.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	var se *services.Error
	if !errors.As(err, &se) || se.Kind == services.KindSystem {
		logger.Error("request failed", "path", string(ctx.Path()), "request_id", xhttp.RequestID(ctx),
			"error", err, "detail", services.Detail(err))
		writeJSON(ctx, xhttp.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	status, ok := kindStatus[se.Kind]
	if !ok {
		status = xhttp.StatusBadRequest
	}
	writeJSON(ctx, status, errorResponse{Error: se.Message, Kind: string(se.Kind), Reason: se.Reason})
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("response encoding failed", "error", err)
		status = xhttp.StatusInternalServerError
		b = []byte(`{"error":"internal error"}`)
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, errorResponse{Error: msg})
}

// currentUser writes 401 and returns false when the request is anonymous.
func currentUser(ctx *xhttp.RequestCtx) (int64, bool) {
	id, ok := xhttp.UserID(ctx)
	if !ok {
		writeError(ctx, xhttp.StatusUnauthorized, "authentication required")
	}
	return id, ok
}

func requireAdmin(ctx *xhttp.RequestCtx) bool {
	if _, ok := currentUser(ctx); !ok {
		return false
	}
	if !xhttp.IsAdmin(ctx) {
		writeError(ctx, xhttp.StatusForbidden, "admin only")
		return false
	}
	return true
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	raw, _ := ctx.UserValue(name).(string)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

func pathString(ctx *xhttp.RequestCtx, name string) string {
	s, _ := ctx.UserValue(name).(string)
	return s
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt(ctx *xhttp.RequestCtx, key string) int {
	n, _ := strconv.Atoi(query(ctx, key))
	return n
}

func queryInt64(ctx *xhttp.RequestCtx, key string) *int64 {
	v := query(ctx, key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func queryBool(ctx *xhttp.RequestCtx, key string) bool {
	v, _ := strconv.ParseBool(query(ctx, key))
	return v
}

func queryList(ctx *xhttp.RequestCtx, key string) []string {
	v := query(ctx, key)
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func queryTime(ctx *xhttp.RequestCtx, key string) *time.Time {
	v := query(ctx, key)
	if v == "" {
		return nil
	}
	t, err := parseTime(v)
	if err != nil {
		return nil
	}
	return &t
}

func parseTime(s string) (time.Time, error) {
	// RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
