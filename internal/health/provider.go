// Package health defines the native health-data capability and the distance
// sync built on it.
package health

import (
	"context"
	"errors"
	"time"
)

// Provider errors.
var (
	ErrUnavailable   = errors.New("health data is not available on this device")
	ErrNotAuthorized = errors.New("health data access not authorized")
)

// SampleType identifies a queryable health sample.
type SampleType string

const (
	// SampleDistanceWalkingRunning is cumulative walking/running distance
	// in meters.
	SampleDistanceWalkingRunning SampleType = "distanceWalkingRunning"
)

// Scopes lists the sample types an authorization request covers.
type Scopes struct {
	Read  []SampleType
	Write []SampleType
}

// SampleRecord is a single health sample.
type SampleRecord struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
}

// SampleQuery selects samples of one type inside a date range.
type SampleQuery struct {
	SampleType SampleType
	StartDate  time.Time
	EndDate    time.Time
	Limit      int
}

// SampleResult is the outcome of a sample query.
type SampleResult struct {
	Count   int
	Records []SampleRecord
}

// Provider is the native health-data bridge. Implementations live outside
// this module; the sync engine only depends on this surface.
type Provider interface {
	// IsAvailable reports whether health data exists on this device.
	IsAvailable(ctx context.Context) error

	// RequestAuthorization prompts for access to the given scopes.
	RequestAuthorization(ctx context.Context, scopes Scopes) error

	// QuerySamples returns samples matching the query.
	QuerySamples(ctx context.Context, query SampleQuery) (SampleResult, error)
}
