package scans

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/cloud-screener/internal/application"
	domain "github.com/bryanwahyu/cloud-screener/internal/domain/scans"
	ssodomain "github.com/bryanwahyu/cloud-screener/internal/domain/sso"
)

// DefaultMarkers are the output substrings counted as service-start events
// for progress estimation. Matching is case-sensitive, one increment per
// matching line; the exact wording is the scanner's, not a contract.
var DefaultMarkers = []string{"Processing", "Scanning"}

// DefaultTailLines is how many trailing output lines go into a failure
// message.
const DefaultTailLines = 10

const adviceTimeout = 30 * time.Second

// Service drives scan jobs from submission to a terminal state. One
// background goroutine per job, started at submission and never re-entered;
// every failure path ends in StatusFailed, a job is never left Running.
type Service struct {
	Registry    domain.Registry
	Launcher    domain.Launcher
	Broadcaster domain.Broadcaster
	Auth        ssodomain.Authenticator
	Vendor      ssodomain.CredentialVendor
	Artifacts   domain.ArtifactStore // optional
	Advisor     domain.Advisor       // optional
	Clock       application.Clock
	Log         *zap.SugaredLogger

	// ReportRoot is where the scanner writes per-account report
	// directories; the first all-digit directory with an index artifact is
	// the job's report.
	ReportRoot string
	// Markers overrides DefaultMarkers when non-nil.
	Markers []string
	// TailLines overrides DefaultTailLines when positive.
	TailLines int

	mu      sync.Mutex
	cancels map[domain.JobID]context.CancelFunc
}

// Submit validates the request, creates a Pending job and starts its runner
// in the background. The returned snapshot is the job at creation time.
func (s *Service) Submit(req domain.ScanRequest) (*domain.ScanJob, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job := s.Registry.Create(req)

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.cancels == nil {
		s.cancels = make(map[domain.JobID]context.CancelFunc)
	}
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	go s.run(ctx, cancel, job.ID, req)
	return job, nil
}

// Get returns the current snapshot of a job.
func (s *Service) Get(id domain.JobID) (*domain.ScanJob, error) {
	return s.Registry.Get(id)
}

// List returns snapshots of all jobs in creation order.
func (s *Service) List() []*domain.ScanJob {
	return s.Registry.List()
}

// Subscribe attaches a live-progress watcher to a job. The channel is
// seeded with the current snapshot and closed after the first terminal one.
func (s *Service) Subscribe(id domain.JobID) (<-chan *domain.ScanJob, func(), error) {
	job, err := s.Registry.Get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.Broadcaster.Subscribe(id, job)
	return ch, cancel, nil
}

// Cancel terminates a running job's subprocess. The runner then drives the
// job to Failed with a cancellation error.
func (s *Service) Cancel(id domain.JobID) error {
	if _, err := s.Registry.Get(id); err != nil {
		return err
	}
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

func (s *Service) run(ctx context.Context, cancel context.CancelFunc, id domain.JobID, req domain.ScanRequest) {
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.cancels, id)
		s.mu.Unlock()
	}()

	if err := s.execute(ctx, id, req); err != nil {
		s.fail(id, err)
	}
}

// execute walks the job through its lifecycle. Any returned error is
// converted into the Failed terminal state by the caller; nil means the job
// already reached Completed.
func (s *Service) execute(ctx context.Context, id domain.JobID, req domain.ScanRequest) error {
	s.update(id, func(j *domain.ScanJob) {
		j.Status = domain.StatusRunning
		j.Progress = 5
		j.CurrentTask = "Preparing scan..."
	})

	// Resolve execution credentials. Exactly one path runs, enforced by the
	// request's mutually exclusive selector.
	var creds *ssodomain.RoleCredential
	if req.UsesSSO() {
		if !s.Auth.IsAuthenticated() {
			return fmt.Errorf("resolve credentials: %w", ssodomain.ErrUnauthenticated)
		}
		s.update(id, func(j *domain.ScanJob) {
			j.CurrentTask = "Getting SSO credentials..."
		})
		var err error
		creds, err = s.Vendor.GetRoleCredentials(ctx, req.SSOAccountID, req.SSORoleName)
		if err != nil {
			return fmt.Errorf("failed to get SSO credentials: %w", err)
		}
		s.update(id, func(j *domain.ScanJob) {
			j.CurrentTask = fmt.Sprintf("SSO credentials obtained for account %s", req.SSOAccountID)
		})
	}

	s.update(id, func(j *domain.ScanJob) {
		j.Progress = 10
		j.CurrentTask = fmt.Sprintf("Scanning %d services in %d regions...",
			len(req.Services), len(req.Regions))
	})

	exec, err := s.Launcher.Launch(ctx, req, creds)
	if err != nil {
		return err
	}

	// Consume output off the request path. Progress is floor-clamped at 90
	// until the process exits; all lines are retained for diagnostics.
	markers := s.Markers
	if markers == nil {
		markers = DefaultMarkers
	}
	total := len(req.Services)
	scanned := 0
	var lines []string

	for line := range exec.Lines() {
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if !matchesAny(line, markers) {
			continue
		}
		scanned++
		progress := min(10+int(float64(scanned)/float64(total)*80), 90)
		s.update(id, func(j *domain.ScanJob) {
			j.Progress = progress
			j.CurrentTask = truncate(line, 100)
		})
	}

	code, err := exec.Wait()
	if ctx.Err() == context.Canceled {
		return domain.ErrCancelled
	}
	if err != nil {
		return err
	}
	if code != 0 {
		return &domain.SubprocessError{ExitCode: code, Tail: s.tail(lines)}
	}

	reportPath, localIndex := discoverReport(s.ReportRoot)
	artifactURL := s.uploadArtifact(ctx, id, localIndex)

	done := s.Clock.Now()
	s.update(id, func(j *domain.ScanJob) {
		j.Status = domain.StatusCompleted
		j.Progress = 100
		j.CurrentTask = "Scan completed successfully"
		j.CompletedAt = &done
		j.ReportPath = reportPath
		j.ArtifactURL = artifactURL
	})
	s.Log.Infow("scan completed", "job_id", id, "report", reportPath)
	return nil
}

// fail drives the job into the Failed terminal state. This is the only sink
// for runner errors, so nothing escapes unrecorded.
func (s *Service) fail(id domain.JobID, cause error) {
	advice := s.advise(cause)
	done := s.Clock.Now()
	s.update(id, func(j *domain.ScanJob) {
		j.Status = domain.StatusFailed
		j.CurrentTask = "Scan failed"
		j.CompletedAt = &done
		j.Error = cause.Error()
		j.Advice = advice
	})
	s.Log.Warnw("scan failed", "job_id", id, "error", cause)
}

// advise asks the optional advisor for a hint when the scanner itself
// failed. Advisor errors are logged and swallowed; they must not change the
// job outcome.
func (s *Service) advise(cause error) string {
	var subErr *domain.SubprocessError
	if s.Advisor == nil || !errors.As(cause, &subErr) || len(subErr.Tail) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), adviceTimeout)
	defer cancel()
	advice, err := s.Advisor.Advise(ctx, strings.Join(subErr.Tail, "\n"))
	if err != nil {
		s.Log.Warnw("failure advisor unavailable", "error", err)
		return ""
	}
	return advice
}

// uploadArtifact pushes the report index to the optional artifact store.
// Upload failures are logged, not fatal: the local report already exists.
func (s *Service) uploadArtifact(ctx context.Context, id domain.JobID, localIndex string) string {
	if s.Artifacts == nil || localIndex == "" {
		return ""
	}
	account := filepath.Base(filepath.Dir(localIndex))
	key := fmt.Sprintf("%s/%s/index.html", account, id)
	url, err := s.Artifacts.UploadReport(ctx, localIndex, key)
	if err != nil {
		s.Log.Warnw("report upload failed", "job_id", id, "error", err)
		return ""
	}
	return url
}

// update applies a mutation and broadcasts the resulting snapshot. Writes
// to a job that already went terminal are dropped by the registry.
func (s *Service) update(id domain.JobID, fn func(*domain.ScanJob)) {
	job, err := s.Registry.Mutate(id, fn)
	if err != nil {
		s.Log.Errorw("job vanished from registry", "job_id", id, "error", err)
		return
	}
	s.Broadcaster.Publish(job)
}

// tail returns the last captured output lines for failure messages.
func (s *Service) tail(lines []string) []string {
	n := s.TailLines
	if n <= 0 {
		n = DefaultTailLines
	}
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

// discoverReport finds the scanner's output by convention: the first
// all-digit (account id) directory under root that contains an index
// artifact. Returns the web path and the local index file.
func discoverReport(root string) (webPath, localIndex string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", ""
	}
	for _, e := range entries {
		if !e.IsDir() || !allDigits(e.Name()) {
			continue
		}
		index := filepath.Join(root, e.Name(), "index.html")
		if _, err := os.Stat(index); err != nil {
			continue
		}
		return fmt.Sprintf("/reports/%s/index.html", e.Name()), index
	}
	return "", ""
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func matchesAny(line string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
