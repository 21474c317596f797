package ports

import (
	"context"

	"goregime/domain/metric"
)

// DefinitionRegistry loads the declared metric family and the metadata of
// every series it references.
type DefinitionRegistry interface {
	Load(ctx context.Context) (metric.Family, SeriesCatalog, error)
}
