package handler

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alanyoungcy/depthbot/internal/domain"
	"github.com/alanyoungcy/depthbot/internal/service"
)

// DepthAnalyzer answers depth queries.
type DepthAnalyzer interface {
	Analyze(ctx context.Context, rawSymbol, rawDepth string) (domain.Report, error)
}

var _ DepthAnalyzer = (*service.DepthService)(nil)

// depthQuery is the validated query string of GET /api/depth.
type depthQuery struct {
	Symbol string `validate:"required,max=32"`
	Depth  string `validate:"required,numeric"`
}

// DepthHandler exposes the depth analysis over HTTP.
type DepthHandler struct {
	analyzer DepthAnalyzer
	validate *validator.Validate
	logger   *slog.Logger
}

// NewDepthHandler creates a DepthHandler.
func NewDepthHandler(analyzer DepthAnalyzer, logger *slog.Logger) *DepthHandler {
	return &DepthHandler{
		analyzer: analyzer,
		validate: validator.New(),
		logger:   logHandler(logger, "depth"),
	}
}

// GetDepth returns the largest bid and ask clusters within depth percent of
// the current price.
// GET /api/depth?symbol=SOL&depth=5
func (h *DepthHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := depthQuery{
		Symbol: strings.TrimSpace(q.Get("symbol")),
		Depth:  strings.TrimSuffix(strings.TrimSpace(q.Get("depth")), "%"),
	}

	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				field := strings.ToLower(fe.Field())
				if fe.Tag() == "required" {
					msgs = append(msgs, field+" is required")
				} else {
					msgs = append(msgs, field+" is invalid")
				}
			}
			writeError(w, http.StatusBadRequest, "invalid_request", strings.Join(msgs, "; "))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid query")
		return
	}

	rep, err := h.analyzer.Analyze(r.Context(), req.Symbol, req.Depth)
	if err != nil {
		var ue *service.UserError
		if !errors.As(err, &ue) {
			h.logger.ErrorContext(r.Context(), "handler: depth failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, service.CodeInternal, "internal server error")
			return
		}
		status := statusFor(ue.Code)
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "60")
		}
		writeError(w, status, ue.Code, ue.Message)
		return
	}

	if left := time.Until(rep.ExpiresAt); left > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(math.Ceil(left.Seconds()))))
	}
	writeJSON(w, http.StatusOK, rep)
}

// statusFor maps a UserError code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case service.CodeInvalidFormat, service.CodeInvalidDepth:
		return http.StatusBadRequest
	case service.CodeUnsupportedAsset, service.CodeNotTradable:
		return http.StatusUnprocessableEntity
	case service.CodeRateLimited:
		return http.StatusTooManyRequests
	case service.CodeTimeout, service.CodeExchangeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
