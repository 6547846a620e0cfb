package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clearhealth/clearhealth-ai/internal/gateway"
	"github.com/clearhealth/clearhealth-ai/pkg/logging"
)

var (
	// ErrLookupDenied indicates the device location was denied or is
	// unavailable. Local to the lookup affordance; never a gateway error
	// and never a session phase change.
	ErrLookupDenied = errors.New("report: location denied or unavailable")

	// ErrLookupInFlight indicates a lookup was requested while one is
	// already pending.
	ErrLookupInFlight = errors.New("report: specialist lookup already in flight")
)

// Coordinates is a geographic position.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// LocationProvider resolves the device's current position. Resolution
// may fail or be denied.
type LocationProvider interface {
	Current(ctx context.Context) (Coordinates, error)
}

// LocationFunc adapts a function to a LocationProvider.
type LocationFunc func(ctx context.Context) (Coordinates, error)

func (f LocationFunc) Current(ctx context.Context) (Coordinates, error) { return f(ctx) }

// SpecialistLookup drives location-grounded provider search for one
// analysis result. Exactly one lookup may be in flight; a new result
// replaces the prior one.
type SpecialistLookup struct {
	mu      sync.Mutex
	finder  gateway.SpecialistFinder
	context string
	timeout time.Duration
	logger  *logging.Logger
	pending bool
	result  *gateway.SpecialistLookup
}

// lookupContext is the context string sent with the query.
func lookupContext(result *gateway.AnalysisResult) string {
	return fmt.Sprintf("%s. %s. Severity: %s", result.Title, result.Summary, result.Severity)
}

func newSpecialistLookup(finder gateway.SpecialistFinder, result *gateway.AnalysisResult, timeout time.Duration, logger *logging.Logger) *SpecialistLookup {
	return &SpecialistLookup{
		finder:  finder,
		context: lookupContext(result),
		timeout: timeout,
		logger:  logger,
	}
}

// Find resolves the device location and queries for nearby specialists.
// Location failure is reported as ErrLookupDenied, distinct from gateway
// errors. The new result replaces any prior one.
func (l *SpecialistLookup) Find(ctx context.Context, location LocationProvider) (*gateway.SpecialistLookup, error) {
	l.mu.Lock()
	if l.pending {
		l.mu.Unlock()
		return nil, ErrLookupInFlight
	}
	l.pending = true
	l.mu.Unlock()

	coords, err := location.Current(ctx)
	if err != nil {
		l.mu.Lock()
		l.pending = false
		l.mu.Unlock()
		l.logger.Warn("location resolution failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLookupDenied, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	found, err := l.finder.FindSpecialists(callCtx, l.context, coords.Latitude, coords.Longitude)
	cancel()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = false
	if err != nil {
		return nil, err
	}
	l.result = found
	return found, nil
}

// Result returns the most recent lookup result, or nil.
func (l *SpecialistLookup) Result() *gateway.SpecialistLookup {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result
}

// Clear discards the current result, re-enabling the trigger.
func (l *SpecialistLookup) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.result = nil
}

// Pending reports whether a lookup is in flight.
func (l *SpecialistLookup) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}
