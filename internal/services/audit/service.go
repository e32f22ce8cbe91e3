package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vanguard/internal/domain"
	"vanguard/internal/metrics"
	"vanguard/internal/ports"
	"vanguard/internal/services/report"
)

// Scanner turns one target into a finding. Scanners do not fail: problems
// reaching the target become issues on the finding.
type Scanner interface {
	Scan(ctx context.Context, target string) domain.Finding
}

type Renderer interface {
	Render(f domain.Finding, remediated bool) (report.Document, error)
}

// Deps are the collaborators of the audit pipeline.
type Deps struct {
	Site      Scanner
	Wallet    Scanner
	Renderer  Renderer
	Reports   ports.ReportStore
	Jobs      ports.JobRepository
	Broadcast ports.Broadcaster // optional
	Log       *slog.Logger
}

// Service is the single entry point both ingress paths call.
type Service struct {
	site      Scanner
	wallet    Scanner
	renderer  Renderer
	reports   ports.ReportStore
	jobs      ports.JobRepository
	broadcast ports.Broadcaster
	log       *slog.Logger
}

func New(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		site:      d.Site,
		wallet:    d.Wallet,
		renderer:  d.Renderer,
		reports:   d.Reports,
		jobs:      d.Jobs,
		broadcast: d.Broadcast,
		log:       log,
	}
}

// Outcome is what an audit or fix hands back to the ingress. PersistErr is set
// when the job store could not record the result; the document is still valid.
type Outcome struct {
	Finding    domain.Finding
	Document   report.Document
	Job        domain.Job
	PersistErr error
}

// Persisted reports whether the job store recorded this outcome.
func (o Outcome) Persisted() bool { return o.PersistErr == nil && o.Job.ID != 0 }

var errTargetRequired = errors.New("target is required")

func normalizeTarget(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", domain.NewFailure(domain.MalformedRequest, errTargetRequired)
	}
	return target, nil
}

// Audit scans a target, renders a discovery report and records a PENDING job.
func (s *Service) Audit(ctx context.Context, target string) (Outcome, error) {
	target, err := normalizeTarget(target)
	if err != nil {
		return Outcome{}, err
	}

	f := s.scan(ctx, target)
	doc, err := s.publishDocument(ctx, f, false)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Finding: f, Document: doc}

	job, err := s.jobs.Create(ctx, target, f.Cost, doc.Name)
	if err != nil {
		out.PersistErr = domain.NewFailure(domain.PersistenceFailure, err)
		metrics.PersistenceFailures.Inc()
	} else {
		out.Job = job
	}

	metrics.AuditsTotal.WithLabelValues(string(f.Kind), f.Severity.String()).Inc()
	s.publish(ports.Event{Type: "audit", Target: target, Severity: f.Severity.String(), Cost: f.Cost, PDF: doc.Name})
	s.log.Info("audit complete", "target", target, "kind", f.Kind, "severity", f.Severity.String(),
		"issues", len(f.Issues), "cost", f.Cost, "pdf", doc.Name, "job_id", out.Job.ID)
	return out, nil
}

// Fix re-runs the scan, renders a remediation report and moves the most
// recent PENDING job for the same target to FIXED. A missing job is recorded
// on the outcome, not returned.
func (s *Service) Fix(ctx context.Context, target string) (Outcome, error) {
	target, err := normalizeTarget(target)
	if err != nil {
		return Outcome{}, err
	}

	f := s.scan(ctx, target)
	doc, err := s.publishDocument(ctx, f, true)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Finding: f, Document: doc}

	job, err := s.jobs.MarkLatestFixed(ctx, target, doc.Name)
	if err != nil {
		out.PersistErr = domain.NewFailure(domain.PersistenceFailure, fmt.Errorf("mark %q fixed: %w", target, err))
		if !errors.Is(err, ports.ErrNotFound) {
			metrics.PersistenceFailures.Inc()
		}
	} else {
		out.Job = job
	}

	metrics.FixesTotal.Inc()
	s.publish(ports.Event{Type: "fix", Target: target, PDF: doc.Name})
	s.log.Info("fix complete", "target", target, "pdf", doc.Name, "job_id", out.Job.ID)
	return out, nil
}

// FixJob is Fix addressed by job id. Unlike Fix, the store is the point of
// the call, so its errors are returned.
func (s *Service) FixJob(ctx context.Context, id int64) (Outcome, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("get job %d: %w", id, err)
	}
	if !job.CanFix() {
		return Outcome{Job: job}, domain.ErrAlreadyFixed
	}

	f := s.scan(ctx, job.Target)
	doc, err := s.publishDocument(ctx, f, true)
	if err != nil {
		return Outcome{}, err
	}

	job, err = s.jobs.MarkFixed(ctx, id, doc.Name)
	if err != nil {
		return Outcome{}, fmt.Errorf("mark job %d fixed: %w", id, err)
	}

	metrics.FixesTotal.Inc()
	s.publish(ports.Event{Type: "fix", Target: job.Target, PDF: doc.Name})
	s.log.Info("fix complete", "target", job.Target, "pdf", doc.Name, "job_id", job.ID)
	return Outcome{Finding: f, Document: doc, Job: job}, nil
}

// Jobs lists every job, most recent first.
func (s *Service) Jobs(ctx context.Context) ([]domain.Job, error) {
	return s.jobs.List(ctx)
}

func (s *Service) scan(ctx context.Context, target string) domain.Finding {
	if Classify(target) == domain.TargetWebsite {
		return s.site.Scan(ctx, target)
	}
	return s.wallet.Scan(ctx, target)
}

func (s *Service) publishDocument(ctx context.Context, f domain.Finding, remediated bool) (report.Document, error) {
	doc, err := s.renderer.Render(f, remediated)
	if err != nil {
		return report.Document{}, fmt.Errorf("render report for %q: %w", f.Target, err)
	}
	if err := s.reports.Save(ctx, doc.Name, doc.Content); err != nil {
		return report.Document{}, fmt.Errorf("store report %s: %w", doc.Name, err)
	}
	return doc, nil
}

func (s *Service) publish(ev ports.Event) {
	if s.broadcast == nil {
		return
	}
	s.broadcast.Publish(ev)
}
