package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/cloud-screener/internal/domain/scans"
)

func job(id string, status domain.Status, progress int) *domain.ScanJob {
	return &domain.ScanJob{ID: domain.JobID(id), Status: status, Progress: progress}
}

func TestSubscribeSeedsCurrentSnapshot(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("j1", job("j1", domain.StatusRunning, 30))
	defer cancel()

	got := <-ch
	assert.Equal(t, 30, got.Progress)
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("j1", job("j1", domain.StatusPending, 0))
	defer cancel()
	<-ch // seed

	h.Publish(job("j1", domain.StatusRunning, 50))
	got := <-ch
	assert.Equal(t, domain.StatusRunning, got.Status)
	assert.Equal(t, 50, got.Progress)
}

func TestPublishToOtherJobNotDelivered(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("j1", job("j1", domain.StatusPending, 0))
	defer cancel()
	<-ch

	h.Publish(job("j2", domain.StatusRunning, 50))
	select {
	case got := <-ch:
		t.Fatalf("unexpected delivery: %+v", got)
	default:
	}
}

func TestTerminalSnapshotClosesChannel(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("j1", job("j1", domain.StatusRunning, 90))
	defer cancel()
	<-ch

	h.Publish(job("j1", domain.StatusCompleted, 100))

	got, open := <-ch
	require.True(t, open)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	_, open = <-ch
	assert.False(t, open, "channel should close after terminal snapshot")
}

func TestSubscribeToTerminalJob(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("j1", job("j1", domain.StatusFailed, 40))
	defer cancel()

	got, open := <-ch
	require.True(t, open)
	assert.Equal(t, domain.StatusFailed, got.Status)

	_, open = <-ch
	assert.False(t, open)
}

func TestUnsubscribeLeavesOthersAttached(t *testing.T) {
	h := NewHub()
	ch1, cancel1 := h.Subscribe("j1", job("j1", domain.StatusRunning, 10))
	ch2, cancel2 := h.Subscribe("j1", job("j1", domain.StatusRunning, 10))
	defer cancel2()
	<-ch1
	<-ch2

	cancel1()
	_, open := <-ch1
	assert.False(t, open)

	h.Publish(job("j1", domain.StatusRunning, 60))
	got := <-ch2
	assert.Equal(t, 60, got.Progress)
}

func TestCancelIsIdempotent(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe("j1", job("j1", domain.StatusRunning, 10))
	cancel()
	cancel()
}

func TestFullBufferDropsIntermediateSnapshots(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("j1", job("j1", domain.StatusRunning, 0))
	defer cancel()

	// seed plus buffer capacity; everything beyond is dropped, the channel
	// still closes on the terminal publish
	for i := 0; i < subscriberBuffer*2; i++ {
		h.Publish(job("j1", domain.StatusRunning, i))
	}
	h.Publish(job("j1", domain.StatusCompleted, 100))

	last := -1
	for got := range ch {
		assert.GreaterOrEqual(t, got.Progress, last)
		last = got.Progress
	}
}
