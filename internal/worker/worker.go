// Package worker runs the per-engine poll loop: claim a descriptor, drive
// the synthesis capability, publish the artifact and terminal marker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"ttsgate/internal/engine"
	"ttsgate/internal/models"
	"ttsgate/internal/queue"
	"ttsgate/internal/registry"
	"ttsgate/internal/store"
)

// scanBackoff is how long the loop pauses after an unexpected scan error
// before trying again.
const scanBackoff = time.Second

type Worker struct {
	cap      engine.Capability
	queue    *queue.Queue
	store    *store.Store
	registry *registry.Registry
	interval time.Duration
}

func New(cap engine.Capability, q *queue.Queue, s *store.Store, r *registry.Registry, interval time.Duration) *Worker {
	return &Worker{
		cap:      cap,
		queue:    q,
		store:    s,
		registry: r,
		interval: interval,
	}
}

// Run publishes the readiness descriptor, requeues descriptors stranded by
// a previous crash, then scans the queue directory forever. Synthesis is
// strictly one job at a time: queued descriptors accumulate until drained,
// which is the backpressure mechanism for a capability that is not safe to
// invoke concurrently.
func (w *Worker) Run(ctx context.Context) error {
	name := w.cap.Engine()

	if err := w.queue.EnsureEngine(name); err != nil {
		return err
	}

	if err := w.registry.Publish(w.cap.Describe()); err != nil {
		return fmt.Errorf("failed to publish readiness for %s: %w", name, err)
	}

	if n, err := w.queue.RequeueClaimed(name); err != nil {
		log.Printf("[Worker %s] Requeue of stale claims failed: %v", name, err)
	} else if n > 0 {
		log.Printf("[Worker %s] Requeued %d stale claimed descriptor(s)", name, n)
	}

	log.Printf("[Worker %s] Ready, monitoring for jobs...", name)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Worker %s] Shutting down...", name)
			return nil
		default:
		}

		if err := w.scan(ctx); err != nil {
			log.Printf("[Worker %s] Scan error: %v", name, err)
			if !sleep(ctx, scanBackoff) {
				return nil
			}
			continue
		}

		if !sleep(ctx, w.interval) {
			return nil
		}
	}
}

// scan enumerates pending descriptors and processes each to completion.
// A bad job never stops the loop.
func (w *Worker) scan(ctx context.Context) error {
	name := w.cap.Engine()

	pending, err := w.queue.Pending(name)
	if err != nil {
		return err
	}

	for _, path := range pending {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		claimed, err := w.queue.Claim(name, path)
		if err != nil {
			// Lost the claim race or the file vanished; not ours.
			continue
		}
		w.process(ctx, claimed)
	}
	return nil
}

// process drives one claimed descriptor to a terminal state. The ordering
// is mandatory: output artifact first, then the marker, then descriptor
// deletion — a polling gateway must never see a marker without the artifact.
func (w *Worker) process(ctx context.Context, claimedPath string) {
	name := w.cap.Engine()

	job, err := w.queue.Read(claimedPath)
	if err != nil {
		// Malformed descriptor: discard and keep going.
		log.Printf("[Worker %s] Discarding %s: %v", name, filepath.Base(claimedPath), err)
		if rmErr := w.queue.Discard(claimedPath); rmErr != nil {
			log.Printf("[Worker %s] Failed to discard descriptor: %v", name, rmErr)
		}
		return
	}

	log.Printf("[Worker %s] Processing job %s: %q", name, job.ID, truncate(job.Text, 50))
	start := time.Now()

	audio, synthErr := w.synthesize(ctx, job)

	if synthErr == nil {
		if err := w.store.WriteOutput(job.ID, audio); err != nil {
			synthErr = err
		}
	}

	if synthErr == nil {
		if err := w.queue.MarkOK(job.ID); err != nil {
			log.Printf("[Worker %s] Failed to write ok marker for %s: %v", name, job.ID, err)
		}
		jobsProcessed.WithLabelValues(name, "ok").Inc()
		log.Printf("[Worker %s] Job %s completed in %s", name, job.ID, time.Since(start).Round(time.Millisecond))
	} else {
		msg := fmt.Sprintf("%s synthesis failed: %v", name, synthErr)
		if err := w.queue.MarkErr(job.ID, msg); err != nil {
			log.Printf("[Worker %s] Failed to write err marker for %s: %v", name, job.ID, err)
		}
		jobsProcessed.WithLabelValues(name, "err").Inc()
		log.Printf("[Worker %s] Job %s failed: %s", name, job.ID, msg)
	}

	// The descriptor is consumed either way; the gateway cleans up markers
	// and artifacts on its side.
	if err := w.queue.Discard(claimedPath); err != nil {
		log.Printf("[Worker %s] Failed to remove descriptor for %s: %v", name, job.ID, err)
	}
}

// synthesize resolves the voice selector and invokes the capability. The
// reference wav is deleted after use; the gateway's cleanup also removes it,
// so a missing file there is harmless.
func (w *Worker) synthesize(ctx context.Context, job *models.Job) ([]byte, error) {
	req := engine.Request{
		Text:     job.Text,
		Language: job.Language,
		Model:    job.Model,
		Speaker:  job.Speaker,
		RefWAV:   job.RefWAV,
	}

	switch {
	case job.Speaker != "":
		return w.cap.SynthesizeFromSpeaker(ctx, req)
	case job.RefWAV != "":
		audio, err := w.cap.SynthesizeFromReference(ctx, req)
		if rmErr := os.Remove(job.RefWAV); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Printf("[Worker %s] Failed to remove reference audio for %s: %v", w.cap.Engine(), job.ID, rmErr)
		}
		return audio, err
	default:
		return nil, errors.New("no speaker or reference audio provided")
	}
}

// RunAll supervises several poll loops in one process. Used by the
// gateway's embedded dev mode; production runs one process per engine.
func RunAll(ctx context.Context, workers ...*Worker) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	return g.Wait()
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
