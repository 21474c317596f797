package metric

import (
	"fmt"

	"goregime/domain/core"
	"goregime/domain/series"
)

// Family is the declared, ordered list of metric definitions for one run.
type Family struct {
	Definitions []Definition `json:"definitions" yaml:"metrics"`
}

// Validate checks every definition against the series catalog and enforces
// unique ids.
func (f Family) Validate(catalog map[core.SeriesID]series.Meta) error {
	if len(f.Definitions) == 0 {
		return fmt.Errorf("%w: empty metric family", core.ErrInvalidDefinition)
	}
	seen := make(map[core.MetricID]bool, len(f.Definitions))
	for _, d := range f.Definitions {
		if seen[d.ID] {
			return fmt.Errorf("%w: %q", core.ErrDuplicateMetricID, d.ID)
		}
		seen[d.ID] = true

		meta, ok := catalog[d.Series]
		if !ok {
			return fmt.Errorf("%w: metric %q references %q", core.ErrUnknownSeries, d.ID, d.Series)
		}
		if err := d.Validate(meta); err != nil {
			return err
		}
	}
	return nil
}

// TestedIDs returns the ids entering multiple-testing correction, in declared
// order.
func (f Family) TestedIDs() []core.MetricID {
	ids := make([]core.MetricID, 0, len(f.Definitions))
	for _, d := range f.Definitions {
		if d.InFamily() {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Lookup finds a definition by id.
func (f Family) Lookup(id core.MetricID) (Definition, bool) {
	for _, d := range f.Definitions {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Hash fingerprints the family: the ordered definition hashes.
func (f Family) Hash() core.FamilyHash {
	parts := make([]string, len(f.Definitions))
	for i, d := range f.Definitions {
		parts[i] = d.Hash().String()
	}
	return core.FamilyHash(core.HashParts(parts...))
}

// Subset returns a family restricted to ids, keeping declared order. A subset
// is a different family: its q-values are not comparable to the parent's.
func (f Family) Subset(ids ...core.MetricID) Family {
	keep := make(map[core.MetricID]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	var out Family
	for _, d := range f.Definitions {
		if keep[d.ID] {
			out.Definitions = append(out.Definitions, d)
		}
	}
	return out
}
