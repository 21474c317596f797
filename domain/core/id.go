package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID    ID
	MetricID ID
	TermID   ID
	SeriesID ID
)

// NewRunID returns a fresh time-ordered run identifier.
func NewRunID() RunID { return RunID(NewID()) }

func (id RunID) String() string    { return ID(id).String() }
func (id MetricID) String() string { return ID(id).String() }
func (id TermID) String() string   { return ID(id).String() }
func (id SeriesID) String() string { return ID(id).String() }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseMetricID parses a string into MetricID. Metric ids are case-sensitive
// and may not carry surrounding whitespace.
func ParseMetricID(s string) (MetricID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("metric ID cannot be empty")
	}
	if strings.TrimSpace(s) != s {
		return "", fmt.Errorf("metric ID %q has surrounding whitespace", s)
	}
	return MetricID(s), nil
}

// ParseSeriesID parses a string into SeriesID
func ParseSeriesID(s string) (SeriesID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("series ID cannot be empty")
	}
	return SeriesID(strings.TrimSpace(s)), nil
}
