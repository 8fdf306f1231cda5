package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/analysis"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/store"
)

type urlRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type jobStatusResponse struct {
	Status      model.JobStatus  `json:"status"`
	Result      *model.JobResult `json:"result"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// handleProspect accepts a URL and queues an asynchronous prospecting job.
// The response carries only the job id; results arrive via /job-status.
func (s *Server) handleProspect(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeURLRequest(w, r)
	if !ok {
		return
	}

	job, err := s.store.CreateJob(r.Context(), req.URL)
	if err != nil {
		zap.L().Error("create job failed", zap.String("url", req.URL), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not create job", nil)
		return
	}
	s.workers.Submit(job.ID)

	respondJSON(w, http.StatusAccepted, map[string]string{"jobId": job.ID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "jobId query parameter is required", nil)
		return
	}

	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		if store.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "job not found", nil)
			return
		}
		zap.L().Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not load job", nil)
		return
	}

	respondJSON(w, http.StatusOK, jobStatusResponse{
		Status:      job.Status,
		Result:      job.Result,
		LastUpdated: job.UpdatedAt,
	})
}

// handleAnalyze runs the competitor analysis chain synchronously, serving
// from the cache when a fresh entry exists.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeURLRequest(w, r)
	if !ok {
		return
	}

	report, cached, err := s.analyzer.Analyze(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidURL) {
			respondError(w, http.StatusBadRequest, "invalid url", nil)
			return
		}
		zap.L().Error("analysis failed", zap.String("url", req.URL), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "analysis failed", nil)
		return
	}

	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireBearer guards an endpoint with the configured token. An empty
// configured token locks the endpoint rather than opening it.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || s.cfg.Token == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) != 1 {
			respondError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decodeURLRequest parses and validates the {url} body shared by /prospect
// and /analyze. On failure it writes the 400 and returns ok=false.
func (s *Server) decodeURLRequest(w http.ResponseWriter, r *http.Request) (urlRequest, bool) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return req, false
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "validation failed", validationDetails(err))
		return req, false
	}
	return req, true
}

func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return details
}

func respondError(w http.ResponseWriter, code int, message string, details map[string]string) {
	body := map[string]any{"error": message}
	if len(details) > 0 {
		body["details"] = details
	}
	respondJSON(w, code, body)
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}
