// Package api is the thin intake surface: create a job record, enqueue
// it, hand back the scan id. All real work happens in the consumer.
package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/complyscan/complyscan/internal/db"
	"github.com/complyscan/complyscan/internal/logger"
	"github.com/complyscan/complyscan/internal/queue"
	"github.com/complyscan/complyscan/models"
)

type Handler struct {
	Store db.Store
	Queue queue.Queue
}

func NewHandler(store db.Store, q queue.Queue) *Handler {
	return &Handler{Store: store, Queue: q}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scan", h.createScan)
	mux.HandleFunc("GET /scan/{id}", h.getScan)
	return mux
}

type createScanRequest struct {
	RepositoryURL string `json:"repositoryUrl"`
	Token         string `json:"token,omitempty"`
	UserID        string `json:"userId,omitempty"`
}

type createScanResponse struct {
	ScanID string            `json:"scanId"`
	Status models.ScanStatus `json:"status"`
}

func (h *Handler) createScan(w http.ResponseWriter, r *http.Request) {
	var req createScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validRepoURL(req.RepositoryURL) {
		httpError(w, http.StatusBadRequest, "repositoryUrl must be a valid http(s) URL")
		return
	}

	job := &models.ScanJob{
		ID:            uuid.New().String(),
		RepositoryURL: req.RepositoryURL,
		Token:         req.Token,
		UserID:        req.UserID,
		Status:        models.StatusQueued,
		CreatedAt:     time.Now(),
	}
	if err := h.Store.InsertJob(r.Context(), job); err != nil {
		logger.GetSugaredLogger().Errorf("insert job: %v", err)
		httpError(w, http.StatusServiceUnavailable, "could not create scan")
		return
	}
	if err := h.Queue.Enqueue(r.Context(), job.ID); err != nil {
		logger.GetSugaredLogger().Errorf("enqueue job %s: %v", job.ID, err)
		// No worker will ever see this record; leave it terminal rather
		// than stuck QUEUED forever.
		if ferr := h.Store.FailJob(r.Context(), job.ID, "enqueue failed"); ferr != nil {
			logger.GetSugaredLogger().Errorf("mark job %s failed: %v", job.ID, ferr)
		}
		httpError(w, http.StatusServiceUnavailable, "could not enqueue scan")
		return
	}

	writeJSON(w, http.StatusAccepted, createScanResponse{ScanID: job.ID, Status: job.Status})
}

func (h *Handler) getScan(w http.ResponseWriter, r *http.Request) {
	job, err := h.Store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		httpError(w, http.StatusNotFound, "scan not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func validRepoURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.GetSugaredLogger().Errorf("write response: %v", err)
	}
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
