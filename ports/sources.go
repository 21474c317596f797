package ports

import (
	"context"

	"goregime/domain/core"
	"goregime/domain/series"
	"goregime/domain/term"
)

// CalendarSource yields the authoritative term calendar.
type CalendarSource interface {
	LoadCalendar(ctx context.Context) (term.Calendar, error)
}

// SeriesSource yields fully materialized observation series. Implementations
// must return observations in timestamp order.
type SeriesSource interface {
	LoadSeries(ctx context.Context, meta series.Meta) (series.Series, error)
}

// SeriesCatalog resolves series metadata by id.
type SeriesCatalog map[core.SeriesID]series.Meta
