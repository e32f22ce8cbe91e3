package domain

import "time"

// Core domain models shared by the audit pipeline, the ingress adapters and
// the job store. Wire shapes live next to their adapters.

// TargetKind says which scanner handles a target.
type TargetKind string

const (
	TargetWebsite TargetKind = "WEBSITE"
	TargetWallet  TargetKind = "WALLET"
)

// Severity is an ordinal risk level. The zero value is invalid; scans start at SeverityLow.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

// Escalate returns the higher of s and to. Severity never goes down.
func (s Severity) Escalate(to Severity) Severity {
	if to > s {
		return to
	}
	return s
}

// ParseSeverity maps a level name back to a Severity.
func ParseSeverity(v string) (Severity, bool) {
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if s.String() == v {
			return s, true
		}
	}
	return 0, false
}

// Finding is the result of scanning one target once.
type Finding struct {
	Kind            TargetKind
	Target          string
	Issues          []string
	Severity        Severity
	RemediationDays int
	Cost            int

	// Wallet only.
	Balance string

	// Website only, informational.
	Domain     string
	StatusCode int

	// Failure is set when the scan could not complete; the issues then describe it.
	Failure *Failure
}

type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobFixed   JobStatus = "FIXED"
)

// Job is one persisted audit submission.
type Job struct {
	ID        int64
	Target    string
	Cost      int
	Status    JobStatus
	PDF       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanFix reports whether the job may transition to FIXED.
func (j Job) CanFix() bool { return j.Status == JobPending }
