package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/iago/reports-back/internal/domain"
)

type reportResponse struct {
	ReportType  domain.ReportType   `json:"report_type"`
	GeneratedAt time.Time           `json:"generated_at"`
	Filter      domain.ReportFilter `json:"filter"`
	Data        domain.Result       `json:"data"`
}

type comparisonRequest struct {
	PeriodA   filterPayload    `json:"period_a"`
	PeriodB   filterPayload    `json:"period_b"`
	Dimension domain.Dimension `json:"dimension,omitempty"`
	GroupBy   domain.GroupBy   `json:"group_by,omitempty"`
	Details   bool             `json:"details,omitempty"`
}

// Report serves GET /v1/reports/{type} with the filter taken from the query.
func (api *API) Report(w http.ResponseWriter, r *http.Request) {
	reportType, err := domain.ParseReportType(chi.URLParam(r, "type"))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	filter, err := filterFromQuery(r.URL.Query()).toFilter()
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	result, err := api.engine.Generate(r.Context(), filter, reportType)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{
		ReportType:  reportType,
		GeneratedAt: time.Now().UTC(),
		Filter:      filter,
		Data:        result,
	})
}

// Compare serves POST /v1/reports/comparison for two explicit periods.
func (api *API) Compare(w http.ResponseWriter, r *http.Request) {
	var request comparisonRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	filterA, err := request.PeriodA.toFilter()
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	filterB, err := request.PeriodB.toFilter()
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	result, err := api.engine.GenerateComparison(r.Context(), filterA, filterB, domain.ComparisonOptions{
		Dimension: request.Dimension,
		GroupBy:   request.GroupBy,
		Details:   request.Details,
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{
		ReportType:  domain.ReportTypeComparison,
		GeneratedAt: time.Now().UTC(),
		Filter:      filterA,
		Data:        result,
	})
}
