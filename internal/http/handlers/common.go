package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/iago/reports-back/internal/domain"
	"github.com/iago/reports-back/internal/http/middleware"
	"github.com/iago/reports-back/internal/logging"
	"github.com/iago/reports-back/internal/report"
	"github.com/iago/reports-back/internal/repository"
	"github.com/iago/reports-back/internal/service"
	"go.uber.org/zap"
)

var errInvalidPayload = errors.New("invalid payload")

// API serves report queries and the export job lifecycle.
type API struct {
	engine  *report.Engine
	exports *service.ExportService
	logger  *zap.Logger
}

func NewAPI(engine *report.Engine, exports *service.ExportService, logger *zap.Logger) *API {
	return &API{
		engine:  engine,
		exports: exports,
		logger:  logging.OrNop(logger),
	}
}

// filterPayload is the wire form of domain.ReportFilter. Dates are RFC3339
// or YYYY-MM-DD; a bare end date covers the whole day.
type filterPayload struct {
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
	Since      string `json:"since,omitempty"`
	ProductID  string `json:"product_id,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	SupplierID string `json:"supplier_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Status     string `json:"status,omitempty"`
}

func (p filterPayload) toFilter() (domain.ReportFilter, error) {
	start, err := domain.ParseDate(p.StartDate, false)
	if err != nil {
		return domain.ReportFilter{}, err
	}
	end, err := domain.ParseDate(p.EndDate, true)
	if err != nil {
		return domain.ReportFilter{}, err
	}
	since, err := domain.ParseDate(p.Since, false)
	if err != nil {
		return domain.ReportFilter{}, err
	}
	return domain.ReportFilter{
		StartDate:  start,
		EndDate:    end,
		Since:      since,
		ProductID:  strings.TrimSpace(p.ProductID),
		CategoryID: strings.TrimSpace(p.CategoryID),
		CustomerID: strings.TrimSpace(p.CustomerID),
		SupplierID: strings.TrimSpace(p.SupplierID),
		UserID:     strings.TrimSpace(p.UserID),
		Status:     strings.TrimSpace(p.Status),
	}, nil
}

func filterFromQuery(query url.Values) filterPayload {
	return filterPayload{
		StartDate:  query.Get("start_date"),
		EndDate:    query.Get("end_date"),
		Since:      query.Get("since"),
		ProductID:  query.Get("product_id"),
		CategoryID: query.Get("category_id"),
		CustomerID: query.Get("customer_id"),
		SupplierID: query.Get("supplier_id"),
		UserID:     query.Get("user_id"),
		Status:     query.Get("status"),
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

// writeDomainError maps a failure class to its HTTP status.
func (api *API) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedReport), errors.Is(err, domain.ErrUnsupportedFormat):
		writeError(w, r, http.StatusBadRequest, "unsupported", err.Error())
	case errors.Is(err, domain.ErrInvalidFilter):
		writeError(w, r, http.StatusBadRequest, "invalid_filter", err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrDataSource):
		api.logger.Warn("data source failure",
			zap.String("request_id", middleware.GetRequestID(r.Context())), zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "data_source_error", "data source unavailable")
	default:
		api.logger.Error("request failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}
