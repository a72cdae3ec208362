// Package queue implements the shared-filesystem job queue that decouples the
// gateway from the engine worker processes.
//
// Layout under the data root:
//
//	queue/<engine>/job_<id>.json          pending descriptors
//	queue/<engine>/claimed/job_<id>.json  descriptor being processed
//	done/<id>.ok | done/<id>.err          terminal markers
//
// The discipline is single-writer-per-path-pattern: only the gateway creates
// descriptors, only the matching worker claims/deletes them and writes
// markers, and only the gateway deletes markers. That convention — not
// locking — is what keeps concurrent access safe.
package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ttsgate/internal/models"
)

// Marker states for a job id.
type Status int

const (
	StatusPending Status = iota // no terminal marker yet
	StatusOK
	StatusErr
)

type Queue struct {
	root string
}

func New(root string) *Queue {
	return &Queue{root: root}
}

// EnsureEngine creates the pending and claimed directories for an engine,
// plus the shared done directory. Safe to call from both sides.
func (q *Queue) EnsureEngine(engine string) error {
	for _, dir := range []string{q.claimedDir(engine), q.doneDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create queue dir %s: %w", dir, err)
		}
	}
	return nil
}

// Submit atomically writes a job descriptor into the engine's queue
// directory. The descriptor is written under a temporary name and renamed so
// a scanning worker never observes a partial file.
func (q *Queue) Submit(engine string, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	dir := q.engineDir(engine)
	tmp := filepath.Join(dir, "."+descriptorName(job.ID)+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write job descriptor: %w", err)
	}

	final := filepath.Join(dir, descriptorName(job.ID))
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to publish job descriptor: %w", err)
	}
	return nil
}

// Pending lists the engine's pending descriptor paths. Directory enumeration
// order is not guaranteed; the sort gives best-effort FIFO on id only.
func (q *Queue) Pending(engine string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(q.engineDir(engine), "job_*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue for %s: %w", engine, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Claim atomically moves a pending descriptor into the claimed directory and
// returns its new path. Claiming before processing means a second consumer
// scanning the same directory can never pick up the same job: the loser of
// the rename race gets an error and moves on.
func (q *Queue) Claim(engine, path string) (string, error) {
	claimed := filepath.Join(q.claimedDir(engine), filepath.Base(path))
	if err := os.Rename(path, claimed); err != nil {
		return "", fmt.Errorf("failed to claim %s: %w", filepath.Base(path), err)
	}
	return claimed, nil
}

// RequeueClaimed moves descriptors stranded in the claimed directory by a
// crashed worker back into the pending set. Called once at worker startup,
// before the first scan.
func (q *Queue) RequeueClaimed(engine string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(q.claimedDir(engine), "job_*.json"))
	if err != nil {
		return 0, fmt.Errorf("failed to scan claimed dir for %s: %w", engine, err)
	}
	n := 0
	for _, path := range matches {
		pending := filepath.Join(q.engineDir(engine), filepath.Base(path))
		if err := os.Rename(path, pending); err != nil {
			return n, fmt.Errorf("failed to requeue %s: %w", filepath.Base(path), err)
		}
		n++
	}
	return n, nil
}

// Read parses a descriptor. A parse error means the descriptor is malformed
// and should be discarded by the caller.
func (q *Queue) Read(path string) (*models.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("malformed descriptor %s: %w", filepath.Base(path), err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("malformed descriptor %s: missing id", filepath.Base(path))
	}
	return &job, nil
}

// Discard removes a descriptor (claimed or pending).
func (q *Queue) Discard(path string) error {
	return os.Remove(path)
}

// MarkOK writes the success marker for a job. The output artifact must
// already be fully visible before this is called.
func (q *Queue) MarkOK(id string) error {
	return q.writeMarker(id+".ok", "Success")
}

// MarkErr writes the failure marker; the file contents are the
// human-readable error message carried back to the caller verbatim.
func (q *Queue) MarkErr(id, message string) error {
	return q.writeMarker(id+".err", message)
}

func (q *Queue) writeMarker(name, contents string) error {
	tmp := filepath.Join(q.doneDir(), "."+name+".tmp")
	if err := os.WriteFile(tmp, []byte(contents), 0644); err != nil {
		return fmt.Errorf("failed to write marker %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(q.doneDir(), name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to publish marker %s: %w", name, err)
	}
	return nil
}

// CheckDone reports whether a terminal marker exists for the job and, for
// an error marker, the failure message.
func (q *Queue) CheckDone(id string) (Status, string, error) {
	if _, err := os.Stat(q.markerPath(id + ".ok")); err == nil {
		return StatusOK, "", nil
	}
	if data, err := os.ReadFile(q.markerPath(id + ".err")); err == nil {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = "unknown error"
		}
		return StatusErr, msg, nil
	}
	return StatusPending, "", nil
}

// ClearMarkers removes both markers for a job. Missing files are not errors;
// any other failure is returned so the caller can log it.
func (q *Queue) ClearMarkers(id string) error {
	for _, name := range []string{id + ".ok", id + ".err"} {
		if err := os.Remove(q.markerPath(name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove marker %s: %w", name, err)
		}
	}
	return nil
}

func (q *Queue) engineDir(engine string) string {
	return filepath.Join(q.root, "queue", engine)
}

func (q *Queue) claimedDir(engine string) string {
	return filepath.Join(q.engineDir(engine), "claimed")
}

func (q *Queue) doneDir() string {
	return filepath.Join(q.root, "done")
}

func (q *Queue) markerPath(name string) string {
	return filepath.Join(q.doneDir(), name)
}

func descriptorName(id string) string {
	return "job_" + id + ".json"
}
