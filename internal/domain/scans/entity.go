package scans

import (
	"time"
)

// JobID identifies one scan job.
type JobID string

// Status is the lifecycle state of a scan job. A job starts Pending, moves to
// Running once the runner picks it up, and transitions exactly once into one
// of the terminal states. A terminal job is never mutated again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ScanRequest is the caller-supplied description of a scan. It is immutable
// once submitted. Exactly one credential selector must be set: either
// AWSProfile, or the SSOAccountID/SSORoleName pair.
type ScanRequest struct {
	Regions    []string `json:"regions"`
	Services   []string `json:"services"`
	Frameworks []string `json:"frameworks,omitempty"`

	AWSProfile   string `json:"aws_profile,omitempty"`
	SSOAccountID string `json:"sso_account_id,omitempty"`
	SSORoleName  string `json:"sso_role_name,omitempty"`
}

// UsesSSO reports whether the request selects SSO role credentials.
func (r ScanRequest) UsesSSO() bool {
	return r.SSOAccountID != "" || r.SSORoleName != ""
}

// Validate checks the request before any job is created.
func (r ScanRequest) Validate() error {
	if len(r.Regions) == 0 {
		return ValidationError("at least one region is required")
	}
	if len(r.Services) == 0 {
		return ValidationError("at least one service is required")
	}
	if r.AWSProfile != "" && r.UsesSSO() {
		return ValidationError("aws_profile and SSO account/role are mutually exclusive")
	}
	if r.AWSProfile == "" && !r.UsesSSO() {
		return ValidationError("either aws_profile or SSO account/role must be set")
	}
	if r.UsesSSO() && (r.SSOAccountID == "" || r.SSORoleName == "") {
		return ValidationError("both sso_account_id and sso_role_name are required for SSO scans")
	}
	return nil
}

// ScanJob is the tracked state of one execution of the external scanner.
// Progress is 0-100 and never decreases while the job is Running. ReportPath
// is set only on Completed, Error only on Failed.
type ScanJob struct {
	ID          JobID       `json:"job_id"`
	Status      Status      `json:"status"`
	Progress    int         `json:"progress"`
	CurrentTask string      `json:"current_task"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	ReportPath  string      `json:"report_path,omitempty"`
	ArtifactURL string      `json:"artifact_url,omitempty"`
	Advice      string      `json:"advice,omitempty"`
	Error       string      `json:"error,omitempty"`
	Request     ScanRequest `json:"request"`
}

// Clone returns a copy safe to hand to readers while the original keeps
// being mutated under the registry lock.
func (j *ScanJob) Clone() *ScanJob {
	c := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
