package scans

import (
	"context"

	"github.com/bryanwahyu/cloud-screener/internal/domain/sso"
)

// Registry is the single point of truth for job state. Mutate applies an
// atomic read-modify-write so concurrent readers never observe a partially
// updated record, and writes to a terminal job are silently dropped.
type Registry interface {
	Create(req ScanRequest) *ScanJob
	Get(id JobID) (*ScanJob, error)
	Mutate(id JobID, fn func(*ScanJob)) (*ScanJob, error)
	List() []*ScanJob
}

// Broadcaster fans out job snapshots to subscribers. The stream is closed
// after the first terminal snapshot is delivered.
type Broadcaster interface {
	// Subscribe registers a watcher for the job and seeds the channel with
	// current. The returned func unsubscribes without affecting others.
	Subscribe(id JobID, current *ScanJob) (<-chan *ScanJob, func())
	Publish(job *ScanJob)
}

// Execution is a running scanner process. Lines carries the merged
// stdout/stderr as text and is closed when the process exits; Wait must be
// called after Lines is drained and returns the exit code.
type Execution interface {
	Lines() <-chan string
	Wait() (int, error)
}

// Launcher spawns the external scanning process for a request. creds is nil
// for profile-based scans; the launcher then carries the profile name in the
// subprocess environment instead.
type Launcher interface {
	Launch(ctx context.Context, req ScanRequest, creds *sso.RoleCredential) (Execution, error)
}

// ArtifactStore uploads a completed report so it survives outside the
// scanner host. Optional: a nil store skips the upload.
type ArtifactStore interface {
	UploadReport(ctx context.Context, localPath, key string) (string, error)
}

// Advisor produces a remediation hint from the tail output of a failed
// scan. Optional: advisor errors never affect job state.
type Advisor interface {
	Advise(ctx context.Context, output string) (string, error)
}
