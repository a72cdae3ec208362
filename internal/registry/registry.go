// Package registry is the readiness registry: each worker publishes one
// capability descriptor after its models load, and the gateway reads them
// all once at startup to build an immutable routing table.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ttsgate/internal/models"
)

type Registry struct {
	root string
}

func New(root string) *Registry {
	return &Registry{root: root}
}

// EnsureDir creates the info directory.
func (r *Registry) EnsureDir() error {
	if err := os.MkdirAll(r.infoDir(), 0755); err != nil {
		return fmt.Errorf("failed to create info dir: %w", err)
	}
	return nil
}

// Publish writes the engine's readiness descriptor. Called exactly once at
// worker startup; the file is never updated afterwards.
func (r *Registry) Publish(info *models.ReadinessInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal readiness info for %s: %w", info.Engine, err)
	}

	path := r.infoPath(info.Engine)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write readiness info: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to publish readiness info: %w", err)
	}
	return nil
}

// PublishError records a failed initialization so the gateway knows the
// engine exists but could not load, instead of waiting the full budget.
func (r *Registry) PublishError(engine string, cause error) error {
	return r.Publish(&models.ReadinessInfo{
		Engine: engine,
		Models: map[string]models.ModelInfo{},
		Error:  cause.Error(),
	})
}

// Read loads a single engine's readiness descriptor.
func (r *Registry) Read(engine string) (*models.ReadinessInfo, error) {
	data, err := os.ReadFile(r.infoPath(engine))
	if err != nil {
		return nil, err
	}
	var info models.ReadinessInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("malformed readiness info for %s: %w", engine, err)
	}
	return &info, nil
}

// AwaitAll polls until every named engine has published a readiness
// descriptor or the timeout elapses, then returns the capability table for
// whatever subset is ready. Engines that never showed up (or published an
// error record) are logged and rejected per-request later.
//
// The returned table is an immutable snapshot: it is built once here and
// must not be mutated afterwards, which is what makes lock-free concurrent
// reads from request handlers safe.
func (r *Registry) AwaitAll(ctx context.Context, engines []string, timeout, poll time.Duration) (*Table, error) {
	deadline := time.Now().Add(timeout)

	for {
		missing := r.missing(engines)
		if len(missing) == 0 {
			break
		}
		if time.Now().After(deadline) {
			log.Printf("[Registry] Startup wait expired; engines never ready: %v", missing)
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("readiness wait cancelled: %w", ctx.Err())
		case <-time.After(poll):
		}
	}

	table := &Table{engines: make(map[string]*models.ReadinessInfo)}
	for _, engine := range engines {
		info, err := r.Read(engine)
		if err != nil {
			continue
		}
		if info.Error != "" {
			log.Printf("[Registry] Engine %s failed to initialize: %s", engine, info.Error)
			continue
		}
		table.engines[engine] = info
		log.Printf("[Registry] Engine %s ready (%d models)", engine, len(info.Models))
	}
	return table, nil
}

func (r *Registry) missing(engines []string) []string {
	var missing []string
	for _, engine := range engines {
		if _, err := os.Stat(r.infoPath(engine)); err != nil {
			missing = append(missing, engine)
		}
	}
	return missing
}

func (r *Registry) infoDir() string {
	return filepath.Join(r.root, "info")
}

func (r *Registry) infoPath(engine string) string {
	return filepath.Join(r.infoDir(), engine+".json")
}

// Table is the gateway's in-memory capability snapshot. Built once during
// startup and read-only afterwards.
type Table struct {
	engines map[string]*models.ReadinessInfo
}

// Has reports whether the engine came up ready.
func (t *Table) Has(engine string) bool {
	_, ok := t.engines[engine]
	return ok
}

// Engines lists the ready engines in stable order.
func (t *Table) Engines() []string {
	names := make([]string, 0, len(t.engines))
	for name := range t.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Records flattens the table into engine×model capability rows for the
// models listing endpoint.
func (t *Table) Records() []models.ModelRecord {
	var records []models.ModelRecord
	for _, engine := range t.Engines() {
		info := t.engines[engine]
		keys := make([]string, 0, len(info.Models))
		for key := range info.Models {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			m := info.Models[key]
			records = append(records, models.ModelRecord{
				Engine:              engine,
				Model:               m.Name,
				Languages:           m.Languages,
				Speakers:            m.Speakers,
				SupportsCustomVoice: m.SupportsCustomVoice,
				Notes:               m.Notes,
			})
		}
	}
	return records
}
