// Package broadcast fans out scan-job snapshots to live-progress watchers.
package broadcast

import (
	"sync"

	domain "github.com/bryanwahyu/cloud-screener/internal/domain/scans"
)

// subscriber channels are buffered; a watcher that falls this far behind
// starts losing intermediate snapshots, which is fine because progress is
// monotonic and the latest snapshot supersedes older ones.
const subscriberBuffer = 16

// Hub implements domain.Broadcaster. Subscribers are keyed by job so a
// disconnect removes one watcher without touching the rest, and the first
// terminal snapshot closes every channel for that job.
type Hub struct {
	mu     sync.Mutex
	nextID int
	topics map[domain.JobID]map[int]chan *domain.ScanJob
}

func NewHub() *Hub {
	return &Hub{topics: make(map[domain.JobID]map[int]chan *domain.ScanJob)}
}

// Subscribe registers a watcher for the job and seeds the channel with the
// current snapshot. If the job is already terminal the channel is closed
// right after the seed, so the watcher still sees the final state.
func (h *Hub) Subscribe(id domain.JobID, current *domain.ScanJob) (<-chan *domain.ScanJob, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan *domain.ScanJob, subscriberBuffer)
	if current != nil {
		ch <- current
		if current.Status.Terminal() {
			close(ch)
			return ch, func() {}
		}
	}

	subs, ok := h.topics[id]
	if !ok {
		subs = make(map[int]chan *domain.ScanJob)
		h.topics[id] = subs
	}
	h.nextID++
	key := h.nextID
	subs[key] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.topics[id]; ok {
			if ch, ok := subs[key]; ok {
				delete(subs, key)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.topics, id)
			}
		}
	}
	return ch, cancel
}

// Publish delivers a snapshot to every watcher of the job. Sends never
// block: a full subscriber buffer drops the intermediate snapshot. A
// terminal snapshot closes the topic.
func (h *Hub) Publish(job *domain.ScanJob) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[job.ID]
	if !ok {
		return
	}
	for _, ch := range subs {
		select {
		case ch <- job:
		default:
		}
	}
	if job.Status.Terminal() {
		for _, ch := range subs {
			close(ch)
		}
		delete(h.topics, job.ID)
	}
}
