package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/iago/reports-back/internal/domain"
)

const defaultListLimit = 20

type exportRequest struct {
	ReportType string        `json:"report_type"`
	Format     string        `json:"format"`
	Filter     filterPayload `json:"filter"`
}

type jobResultView struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	DownloadURL string `json:"download_url"`
}

type jobView struct {
	JobID       string              `json:"job_id"`
	ReportType  domain.ReportType   `json:"report_type"`
	Format      domain.ExportFormat `json:"format"`
	Status      domain.JobStatus    `json:"status"`
	Progress    int                 `json:"progress"`
	Filter      domain.ReportFilter `json:"filter"`
	CreatedAt   time.Time           `json:"created_at"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Result      *jobResultView      `json:"result,omitempty"`
	Error       *jobErrorView       `json:"error,omitempty"`
	StatusURL   string              `json:"status_url"`
}

type jobErrorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusURL(jobID string) string {
	return "/v1/exports/" + jobID
}

func newJobView(job *domain.Job) jobView {
	view := jobView{
		JobID:       job.ID,
		ReportType:  job.Type,
		Format:      job.Format,
		Status:      job.Status,
		Progress:    job.Progress,
		Filter:      job.Filter,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		StatusURL:   statusURL(job.ID),
	}
	if job.Result != nil {
		view.Result = &jobResultView{
			Filename:    job.Result.Filename,
			ContentType: job.Result.ContentType,
			Size:        job.Result.Size,
			DownloadURL: statusURL(job.ID) + "/download",
		}
	}
	if strings.TrimSpace(job.Error) != "" {
		view.Error = &jobErrorView{Code: "processing_error", Message: job.Error}
	}
	return view
}

// CreateExport serves POST /v1/exports. The job runs in the background; the
// response only acknowledges it.
func (api *API) CreateExport(w http.ResponseWriter, r *http.Request) {
	var request exportRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	filter, err := request.Filter.toFilter()
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	job, err := api.exports.Enqueue(
		r.Context(),
		domain.ReportType(request.ReportType),
		domain.ExportFormat(request.Format),
		filter,
	)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", statusURL(job.ID))
	w.Header().Set("Retry-After", "1")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"status":      job.Status,
		"status_url":  statusURL(job.ID),
		"accepted_at": job.CreatedAt.Format(time.RFC3339Nano),
	})
}

// ListExports serves GET /v1/exports?limit=n, newest first.
func (api *API) ListExports(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "limit must be an integer")
			return
		}
		limit = parsed
	}

	jobs, err := api.exports.List(r.Context(), limit)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, newJobView(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (api *API) GetExport(w http.ResponseWriter, r *http.Request) {
	job, err := api.exports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobView(job))
}

// DownloadExport streams the finished artifact. Jobs that are not completed
// answer 409.
func (api *API) DownloadExport(w http.ResponseWriter, r *http.Request) {
	job, err := api.exports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	if job.Status != domain.JobStatusCompleted || job.Result == nil {
		writeError(w, r, http.StatusConflict, "not_ready", "export is "+string(job.Status))
		return
	}

	w.Header().Set("Content-Type", job.Result.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+job.Result.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(job.Result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(job.Result.Data)
}

func (api *API) CancelExport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if _, err := api.exports.Get(r.Context(), jobID); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	if !api.exports.Cancel(r.Context(), jobID) {
		writeError(w, r, http.StatusConflict, "already_finished", "export already finished")
		return
	}
	job, err := api.exports.Get(r.Context(), jobID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobView(job))
}

func (api *API) DeleteExport(w http.ResponseWriter, r *http.Request) {
	if !api.exports.Delete(r.Context(), chi.URLParam(r, "id")) {
		writeError(w, r, http.StatusNotFound, "not_found", "job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
