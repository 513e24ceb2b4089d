// Package dispatch turns an incident into a recorded responder assignment:
// candidate selection, travel-time estimation, resolution, persistence and
// fan-out to downstream sinks.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
	"github.com/couchcryptid/responder-dispatch-service/internal/observability"
)

var (
	// ErrProviderFailed wraps any error returned by the travel-time provider.
	ErrProviderFailed = errors.New("travel-time provider failed")
	// ErrHistoryDisabled is returned by history reads when no store is configured.
	ErrHistoryDisabled = errors.New("dispatch history is disabled")
)

// Store persists dispatch records.
type Store interface {
	Save(ctx context.Context, rec domain.DispatchRecord) error
	Get(ctx context.Context, id string) (domain.DispatchRecord, error)
	List(ctx context.Context, limit int) ([]domain.DispatchRecord, error)
	Ping(ctx context.Context) error
}

// Sink receives every successful dispatch after it has been stored.
type Sink interface {
	Publish(ctx context.Context, rec domain.DispatchRecord) error
}

type namedSink struct {
	name string
	sink Sink
}

// Option configures a Service.
type Option func(*Service)

// WithStore records every dispatch in s before it is returned.
func WithStore(s Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithSink adds a downstream sink. Sink failures are logged, never returned.
func WithSink(name string, s Sink) Option {
	return func(svc *Service) { svc.sinks = append(svc.sinks, namedSink{name: name, sink: s}) }
}

// WithMaxCandidates limits provider requests to the n stations nearest the
// incident by straight line. Zero sends every station in the category.
func WithMaxCandidates(n int) Option {
	return func(svc *Service) { svc.maxCandidates = n }
}

// WithClock overrides the clock used for DecidedAt.
func WithClock(c clockwork.Clock) Option {
	return func(svc *Service) { svc.clock = c }
}

// WithIDGenerator overrides dispatch ID generation.
func WithIDGenerator(f func() string) Option {
	return func(svc *Service) { svc.newID = f }
}

// Service resolves incidents against a fixed station catalog.
type Service struct {
	catalog       *domain.StationCatalog
	provider      domain.TravelTimeProvider
	store         Store
	sinks         []namedSink
	index         map[domain.Category]*candidateIndex
	maxCandidates int
	clock         clockwork.Clock
	newID         func() string
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// NewService creates a dispatch service. The catalog must not be modified
// afterwards.
func NewService(catalog *domain.StationCatalog, provider domain.TravelTimeProvider, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		catalog:  catalog,
		provider: provider,
		index:    make(map[domain.Category]*candidateIndex),
		clock:    clockwork.NewRealClock(),
		newID:    func() string { return uuid.NewString() },
		metrics:  metrics,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, c := range domain.Categories {
		stations := catalog.Stations(c)
		metrics.CatalogStations.WithLabelValues(string(c)).Set(float64(len(stations)))
		if s.maxCandidates > 0 && len(stations) > s.maxCandidates {
			s.index[c] = newCandidateIndex(stations)
		}
	}
	return s
}

// Catalog returns the station catalog the service resolves against.
func (s *Service) Catalog() *domain.StationCatalog { return s.catalog }

// ProviderName reports which travel-time provider is active.
func (s *Service) ProviderName() string { return s.provider.Name() }

// Dispatch chooses the responder for req, records the decision and fans it
// out to the configured sinks.
func (s *Service) Dispatch(ctx context.Context, req domain.IncidentRequest) (domain.DispatchRecord, error) {
	start := time.Now()

	if !req.Category.Valid() {
		return s.fail(req.Category, "invalid_category", fmt.Errorf("%w: %q", domain.ErrInvalidCategory, req.Category))
	}
	incident := req.Location()
	if err := incident.Validate(); err != nil {
		return s.fail(req.Category, "invalid_incident", fmt.Errorf("%w: %v", domain.ErrInvalidIncident, err))
	}

	stations := s.candidates(req.Category, incident)
	if len(stations) == 0 {
		return s.fail(req.Category, "no_stations",
			fmt.Errorf("%w: category %q", domain.ErrNoStationsAvailable, req.Category))
	}

	estimates, err := s.estimate(ctx, incident, stations)
	if err != nil {
		return s.fail(req.Category, "provider", fmt.Errorf("%w: %v", ErrProviderFailed, err))
	}

	decision, err := domain.Resolve(req.Category, incident, estimates, s.catalog, s.logger)
	if err != nil {
		return s.fail(req.Category, resolveReason(err), err)
	}
	s.metrics.SkippedEstimates.Add(float64(len(decision.Skipped)))

	rec := domain.DispatchRecord{
		ID:               s.newID(),
		DispatchDecision: decision,
		Provider:         s.provider.Name(),
		Estimates:        estimates,
		DecidedAt:        s.clock.Now().UTC(),
	}

	if s.store != nil {
		if err := s.store.Save(ctx, rec); err != nil {
			return s.fail(req.Category, "store", fmt.Errorf("record dispatch: %w", err))
		}
	}

	s.publish(ctx, rec)

	s.metrics.DispatchRequests.WithLabelValues(string(req.Category), "success").Inc()
	s.metrics.DispatchDuration.WithLabelValues(string(req.Category)).Observe(time.Since(start).Seconds())
	s.logger.Info("dispatch resolved",
		"dispatch_id", rec.ID,
		"category", rec.Category,
		"station", rec.ChosenStation,
		"eta_minutes", rec.ETAMinutes,
		"provider", rec.Provider,
		"candidates", len(stations),
	)
	return rec, nil
}

func (s *Service) candidates(category domain.Category, incident domain.Coordinate) []domain.Station {
	if idx, ok := s.index[category]; ok {
		return idx.nearest(incident, s.maxCandidates)
	}
	return s.catalog.Stations(category)
}

func (s *Service) estimate(ctx context.Context, incident domain.Coordinate, stations []domain.Station) ([]domain.TravelEstimate, error) {
	name := s.provider.Name()
	start := time.Now()
	estimates, err := s.provider.Estimate(ctx, incident, stations)
	s.metrics.ProviderDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.ProviderRequests.WithLabelValues(name, "error").Inc()
		return nil, err
	}
	s.metrics.ProviderRequests.WithLabelValues(name, "success").Inc()
	return estimates, nil
}

func (s *Service) publish(ctx context.Context, rec domain.DispatchRecord) {
	for _, ns := range s.sinks {
		if err := ns.sink.Publish(ctx, rec); err != nil {
			s.metrics.SinkPublishes.WithLabelValues(ns.name, "error").Inc()
			s.logger.Error("publish dispatch failed", "sink", ns.name, "dispatch_id", rec.ID, "error", err)
			continue
		}
		s.metrics.SinkPublishes.WithLabelValues(ns.name, "success").Inc()
	}
}

func (s *Service) fail(category domain.Category, reason string, err error) (domain.DispatchRecord, error) {
	label := string(category)
	if !category.Valid() {
		label = "unknown"
	}
	s.metrics.DispatchRequests.WithLabelValues(label, "error").Inc()
	s.metrics.ResolveErrors.WithLabelValues(reason).Inc()
	s.logger.Warn("dispatch failed", "category", category, "reason", reason, "error", err)
	return domain.DispatchRecord{}, err
}

func resolveReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCategory):
		return "invalid_category"
	case errors.Is(err, domain.ErrNoStationsAvailable):
		return "no_stations"
	case errors.Is(err, domain.ErrNoParsableEstimate):
		return "no_parsable_estimate"
	case errors.Is(err, domain.ErrStationNotInCatalog):
		return "station_not_in_catalog"
	default:
		return "other"
	}
}

// CheckReadiness reports whether the service can take dispatches: the catalog
// has stations and the history store, if any, is reachable.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if s.catalog.Total() == 0 {
		return errors.New("station catalog is empty")
	}
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			return fmt.Errorf("dispatch history unavailable: %w", err)
		}
	}
	return nil
}

// Get returns a stored dispatch by ID.
func (s *Service) Get(ctx context.Context, id string) (domain.DispatchRecord, error) {
	if s.store == nil {
		return domain.DispatchRecord{}, ErrHistoryDisabled
	}
	return s.store.Get(ctx, id)
}

// Recent returns up to limit stored dispatches, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.DispatchRecord, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.store.List(ctx, limit)
}
