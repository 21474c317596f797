package testkit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/metric"
	"goregime/ports"
)

// InMemoryStore implements ResultStore and ReaderPort with in-memory storage
type InMemoryStore struct {
	definitions map[core.MetricID]core.DefinitionHash
	runs        map[core.RunID]ports.RunDetail
	order       []core.RunID
	values      map[core.RunID][]metric.Value
	records     map[core.RunID][]inference.Record
	mu          sync.RWMutex
}

var (
	_ ports.ResultStore = (*InMemoryStore)(nil)
	_ ports.ReaderPort  = (*InMemoryStore)(nil)
)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		definitions: make(map[core.MetricID]core.DefinitionHash),
		runs:        make(map[core.RunID]ports.RunDetail),
		values:      make(map[core.RunID][]metric.Value),
		records:     make(map[core.RunID][]inference.Record),
	}
}

func (s *InMemoryStore) CheckDefinitions(ctx context.Context, defs []metric.Definition) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.checkDefinitions(defs)
}

func (s *InMemoryStore) checkDefinitions(defs []metric.Definition) error {
	for _, d := range defs {
		if h, ok := s.definitions[d.ID]; ok && h != d.Hash() {
			return fmt.Errorf("%w: %q", core.ErrDefinitionDrift, d.ID)
		}
	}
	return nil
}

// SaveResult validates everything before touching any map, so a refused run
// leaves the store unchanged.
func (s *InMemoryStore) SaveResult(ctx context.Context, res ports.RunBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res.Manifest == nil {
		return fmt.Errorf("result without manifest")
	}
	if err := s.checkDefinitions(res.Definitions); err != nil {
		return err
	}
	if _, ok := s.runs[res.Manifest.RunID]; ok {
		return fmt.Errorf("run %s already stored", res.Manifest.RunID)
	}

	for _, d := range res.Definitions {
		s.definitions[d.ID] = d.Hash()
	}
	runID := res.Manifest.RunID
	s.runs[runID] = ports.RunDetail{Manifest: *res.Manifest, Summary: res.Summary}
	s.order = append(s.order, runID)
	s.values[runID] = append([]metric.Value(nil), res.Values...)
	s.records[runID] = append([]inference.Record(nil), res.Records...)
	return nil
}

func (s *InMemoryStore) ListRuns(ctx context.Context, limit int) ([]ports.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ports.RunSummary, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		d := s.runs[s.order[i]]
		out = append(out, ports.RunSummary{
			RunID:       d.Manifest.RunID,
			Fingerprint: d.Manifest.Fingerprint.Fingerprint,
			Success:     d.Summary.Success(),
			CreatedAt:   d.Manifest.CreatedAt,
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) GetRun(ctx context.Context, runID core.RunID) (*ports.RunDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *InMemoryStore) ListValues(ctx context.Context, runID core.RunID) ([]metric.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]metric.Value(nil), s.values[runID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MetricID != out[j].MetricID {
			return out[i].MetricID < out[j].MetricID
		}
		return out[i].TermStart.Before(out[j].TermStart)
	})
	return out, nil
}

func (s *InMemoryStore) ListRecords(ctx context.Context, runID core.RunID) ([]inference.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]inference.Record(nil), s.records[runID]...), nil
}
