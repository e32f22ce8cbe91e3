package httpadapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/oapi-codegen/runtime"

	"vanguard/internal/domain"
	"vanguard/internal/metrics"
	"vanguard/internal/ports"
	"vanguard/internal/services/audit"
)

// Auditor is the pipeline entry point shared with the chat bot.
type Auditor interface {
	Audit(ctx context.Context, target string) (audit.Outcome, error)
	Fix(ctx context.Context, target string) (audit.Outcome, error)
	FixJob(ctx context.Context, id int64) (audit.Outcome, error)
	Jobs(ctx context.Context) ([]domain.Job, error)
}

type Server struct {
	auditor Auditor
	reports ports.ReportStore
	log     *slog.Logger
}

func New(auditor Auditor, reports ports.ReportStore, log *slog.Logger) *Server {
	return &Server{auditor: auditor, reports: reports, log: log}
}

// Routes returns a chi.Router with the dashboard, API and document routes.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.requestLog)

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/reports/{name}", s.getReport)

	r.Route("/api", func(r chi.Router) {
		r.Post("/audit", s.postAudit)
		r.Post("/fix", s.postFix)
		r.Get("/jobs", s.listJobs)
		r.Get("/jobs.xlsx", s.exportJobs)
		r.Post("/jobs/{id}/fix", s.postFixJob)
	})
	return r
}

type targetRequest struct {
	Target *string `json:"target"`
}

type auditResponse struct {
	Status   string   `json:"status"`
	Cost     int      `json:"cost"`
	PDF      string   `json:"pdf"`
	Severity string   `json:"severity"`
	Issues   []string `json:"issues"`
	JobID    int64    `json:"job_id,omitempty"`
}

type fixResponse struct {
	Status string `json:"status"`
	PDF    string `json:"pdf"`
	JobID  int64  `json:"job_id,omitempty"`
}

type jobResponse struct {
	ID        int64     `json:"id"`
	Target    string    `json:"target"`
	Cost      int       `json:"cost"`
	Status    string    `json:"status"`
	PDF       string    `json:"pdf"`
	CreatedAt time.Time `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// decodeTarget reads {"target": "..."}; a missing field is a client error.
func decodeTarget(r *http.Request) (string, error) {
	var req targetRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		return "", domain.NewFailure(domain.MalformedRequest, err)
	}
	if req.Target == nil {
		return "", domain.NewFailure(domain.MalformedRequest, errors.New("target is required"))
	}
	return *req.Target, nil
}

func (s *Server) postAudit(w http.ResponseWriter, r *http.Request) {
	target, err := decodeTarget(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.auditor.Audit(r.Context(), target)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logPersistence(r, out)
	render.JSON(w, r, auditResponse{
		Status:   "FOUND",
		Cost:     out.Finding.Cost,
		PDF:      out.Document.Name,
		Severity: out.Finding.Severity.String(),
		Issues:   out.Finding.Issues,
		JobID:    out.Job.ID,
	})
}

func (s *Server) postFix(w http.ResponseWriter, r *http.Request) {
	target, err := decodeTarget(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.auditor.Fix(r.Context(), target)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logPersistence(r, out)
	render.JSON(w, r, fixResponse{Status: "FIXED", PDF: out.Document.Name, JobID: out.Job.ID})
}

func (s *Server) postFixJob(w http.ResponseWriter, r *http.Request) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		s.fail(w, r, domain.NewFailure(domain.MalformedRequest, err))
		return
	}
	out, err := s.auditor.FixJob(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, fixResponse{Status: "FIXED", PDF: out.Document.Name, JobID: out.Job.ID})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.auditor.Jobs(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, jobResponse{ID: j.ID, Target: j.Target, Cost: j.Cost, Status: string(j.Status), PDF: j.PDF, CreatedAt: j.CreatedAt})
	}
	render.JSON(w, r, resp)
}

func (s *Server) exportJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.auditor.Jobs(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="vanguard_jobs.xlsx"`)
	if err := writeJobsXLSX(w, jobs); err != nil {
		s.log.Error("export jobs", "err", err)
	}
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	rc, err := s.reports.Open(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "application/pdf")
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("serve report", "err", err)
	}
}

// logPersistence records a best-effort store failure; the response is unaffected.
func (s *Server) logPersistence(r *http.Request, out audit.Outcome) {
	if out.PersistErr != nil {
		s.log.Warn("job store not updated", "target", out.Finding.Target, "request_id", middleware.GetReqID(r.Context()), "err", out.PersistErr)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.MalformedRequest), errors.Is(err, ports.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyFixed):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
		msg = http.StatusText(code)
	}
	render.Status(r, code)
	render.JSON(w, r, errorResponse{Error: msg})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}
