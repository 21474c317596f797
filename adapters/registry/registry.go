// Package registry loads the metric family and series catalog from a YAML
// definition file.
package registry

import (
	"bytes"
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"goregime/domain/core"
	"goregime/domain/metric"
	"goregime/domain/series"
	"goregime/ports"
)

// MaxFileSize caps the registry file read into memory (1MB).
const MaxFileSize = 1024 * 1024

// File is the root of the registry document.
type File struct {
	Series  []series.Meta       `yaml:"series"`
	Metrics []metric.Definition `yaml:"metrics"`
}

// FileRegistry implements ports.DefinitionRegistry over a YAML file.
type FileRegistry struct {
	path   string
	logger *zap.Logger
}

var _ ports.DefinitionRegistry = (*FileRegistry)(nil)

// NewFileRegistry creates a registry reading path on every Load.
func NewFileRegistry(path string, logger *zap.Logger) *FileRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileRegistry{path: path, logger: logger}
}

// Load reads, parses and validates the registry. Every failure is structural.
func (r *FileRegistry) Load(ctx context.Context) (metric.Family, ports.SeriesCatalog, error) {
	if err := ctx.Err(); err != nil {
		return metric.Family{}, nil, err
	}
	info, err := os.Stat(r.path)
	if err != nil {
		return metric.Family{}, nil, eris.Wrapf(err, "registry: stat %s", r.path)
	}
	if info.Size() > MaxFileSize {
		return metric.Family{}, nil, eris.Errorf("registry: %s is %d bytes, limit %d", r.path, info.Size(), MaxFileSize)
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return metric.Family{}, nil, eris.Wrapf(err, "registry: read %s", r.path)
	}

	family, catalog, err := Parse(data)
	if err != nil {
		return metric.Family{}, nil, eris.Wrapf(err, "registry: %s", r.path)
	}
	r.logger.Info("registry loaded",
		zap.String("path", r.path),
		zap.Int("series", len(catalog)),
		zap.Int("metrics", len(family.Definitions)),
		zap.Int("tested", len(family.TestedIDs())),
		zap.String("family_hash", family.Hash().String()))
	return family, catalog, nil
}

// Parse decodes a registry document. Unknown keys are rejected so a typo in
// a definition cannot silently change its meaning.
func Parse(data []byte) (metric.Family, ports.SeriesCatalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc File
	if err := dec.Decode(&doc); err != nil {
		return metric.Family{}, nil, core.NewValidationError("registry", err.Error())
	}

	catalog := make(ports.SeriesCatalog, len(doc.Series))
	for _, m := range doc.Series {
		if m.ID == "" {
			return metric.Family{}, nil, core.NewValidationError("series.id", "missing")
		}
		if _, dup := catalog[m.ID]; dup {
			return metric.Family{}, nil, core.NewValidationError("series.id", "duplicate "+m.ID.String())
		}
		freq, err := series.ParseFrequency(string(m.Frequency))
		if err != nil {
			return metric.Family{}, nil, core.NewValidationError("series.frequency", err.Error())
		}
		m.Frequency = freq
		if m.UnitKind == "" {
			m.UnitKind = series.Level
		}
		catalog[m.ID] = m
	}

	family := metric.Family{Definitions: doc.Metrics}
	for i := range family.Definitions {
		if family.Definitions[i].Role == "" {
			family.Definitions[i].Role = metric.RolePrimary
		}
	}
	if err := family.Validate(catalog); err != nil {
		return metric.Family{}, nil, err
	}
	return family, catalog, nil
}
