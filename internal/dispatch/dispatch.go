// Package dispatch is the request-facing half of the job pipeline: validate,
// enqueue, wait for the terminal marker, collect the artifact, clean up.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"ttsgate/internal/models"
	"ttsgate/internal/queue"
	"ttsgate/internal/registry"
	"ttsgate/internal/store"
)

// MaxTextLen bounds the synthesized text length, matching the worker-side
// expectation that one job is at most a short paragraph.
const MaxTextLen = 1000

// Request carries everything needed to submit one synthesis job. Exactly one
// of Speaker or RefAudio selects the voice-conditioning mode.
type Request struct {
	Text     string
	Engine   string
	Model    string
	Language string
	Speaker  string
	RefAudio []byte // uploaded reference audio bytes, nil for speaker mode
}

type Dispatcher struct {
	queue   *queue.Queue
	store   *store.Store
	table   *registry.Table
	timeout time.Duration
	poll    time.Duration
}

func New(q *queue.Queue, s *store.Store, table *registry.Table, timeout, poll time.Duration) *Dispatcher {
	return &Dispatcher{
		queue:   q,
		store:   s,
		table:   table,
		timeout: timeout,
		poll:    poll,
	}
}

// Submit validates the request, persists reference audio if present, and
// atomically writes the job descriptor into the engine's queue. Returns the
// allocated job id. Validation failures happen before any file I/O.
func (d *Dispatcher) Submit(ctx context.Context, req *Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", validationErrorf("text cannot be empty")
	}
	if len(req.Text) > MaxTextLen {
		return "", validationErrorf("text too long (max %d characters)", MaxTextLen)
	}
	if req.Speaker != "" && req.RefAudio != nil {
		return "", validationErrorf("provide either a speaker or reference audio, not both")
	}
	if req.Speaker == "" && req.RefAudio == nil {
		return "", validationErrorf("no speaker or reference audio provided")
	}
	if !d.table.Has(req.Engine) {
		return "", fmt.Errorf("%w: %q", ErrEngineUnavailable, req.Engine)
	}

	id := uuid.NewString()
	job := &models.Job{
		ID:       id,
		Text:     req.Text,
		Language: req.Language,
		Model:    req.Model,
		Speaker:  req.Speaker,
	}
	if job.Language == "" {
		job.Language = "en"
	}

	if req.RefAudio != nil {
		path, err := d.store.SaveInput(id, req.RefAudio)
		if err != nil {
			return "", err
		}
		job.RefWAV = path
	}

	if err := d.queue.Submit(req.Engine, job); err != nil {
		// Don't leave the reference audio behind if the descriptor never
		// made it into the queue.
		if job.RefWAV != "" {
			d.removeLogged(id, "input", d.store.RemoveInput)
		}
		return "", err
	}

	jobsSubmitted.WithLabelValues(req.Engine).Inc()
	return id, nil
}

// Await blocks until a terminal marker appears for the job or the wait
// budget elapses. The wait is a cooperative poll-sleep: many Awaits can run
// concurrently without starving each other.
//
// Returns nil on success, ErrSynthesisFailed wrapping the worker's message,
// or ErrTimeout.
func (d *Dispatcher) Await(ctx context.Context, id string) error {
	deadline := time.Now().Add(d.timeout)

	for {
		status, msg, err := d.queue.CheckDone(id)
		if err != nil {
			return err
		}
		switch status {
		case queue.StatusOK:
			return nil
		case queue.StatusErr:
			return fmt.Errorf("%w: %s", ErrSynthesisFailed, msg)
		}

		if time.Now().After(deadline) {
			return ErrTimeout
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait cancelled: %w", ctx.Err())
		case <-time.After(d.poll):
		}
	}
}

// Retrieve reads the output artifact after a successful Await. A success
// marker without an artifact is a server fault (ErrArtifactMissing).
func (d *Dispatcher) Retrieve(id string) ([]byte, error) {
	if !d.store.HasOutput(id) {
		return nil, fmt.Errorf("%w: job %s", ErrArtifactMissing, id)
	}
	return d.store.ReadOutput(id)
}

// Cleanup unconditionally removes every job-scoped file: reference audio,
// output artifact and both markers. Failures are logged and counted, never
// raised — cleanup must not mask the job's actual outcome.
func (d *Dispatcher) Cleanup(id string) {
	d.removeLogged(id, "input", d.store.RemoveInput)
	d.removeLogged(id, "output", d.store.RemoveOutput)
	d.removeLogged(id, "markers", d.queue.ClearMarkers)
}

func (d *Dispatcher) removeLogged(id, what string, remove func(string) error) {
	if err := remove(id); err != nil {
		cleanupFailures.Inc()
		log.Printf("[Dispatch] Cleanup of %s for job %s failed: %v", what, id, err)
	}
}

// Synthesize runs the full submit → await → retrieve → cleanup sequence and
// returns the audio bytes. Job-scoped files are removed on every path.
func (d *Dispatcher) Synthesize(ctx context.Context, req *Request) ([]byte, error) {
	id, err := d.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := d.Await(ctx, id); err != nil {
		jobOutcomes.WithLabelValues(req.Engine, outcomeLabel(err)).Inc()
		d.Cleanup(id)
		return nil, err
	}

	audio, err := d.Retrieve(id)
	d.Cleanup(id)
	if err != nil {
		jobOutcomes.WithLabelValues(req.Engine, "artifact_missing").Inc()
		return nil, err
	}

	jobOutcomes.WithLabelValues(req.Engine, "ok").Inc()
	return audio, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
