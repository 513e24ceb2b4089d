package httpadapter

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/responder-dispatch-service/internal/dispatch"
	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
)

const (
	maxIncidentBytes    = 64 << 10
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type stationEstimate struct {
	Distance string `json:"distance"`
	Duration string `json:"duration"`
}

// calculateResponse is the dispatch record plus the field names the
// original browser console reads.
type calculateResponse struct {
	Success bool `json:"success"`
	domain.DispatchRecord

	DispatchID    string                     `json:"dispatchId"`
	NearestUnit   string                     `json:"nearestUnit"`
	UnitLocation  domain.Coordinate          `json:"unitLocation"`
	AllStations   map[string]stationEstimate `json:"allStations"`
	EmergencyType domain.Category            `json:"emergencyType"`
}

func newCalculateResponse(rec domain.DispatchRecord) calculateResponse {
	all := make(map[string]stationEstimate, len(rec.Estimates))
	for _, e := range rec.Estimates {
		all[e.StationName] = stationEstimate{Distance: e.DistanceText, Duration: e.DurationText}
	}
	return calculateResponse{
		Success:        true,
		DispatchRecord: rec,
		DispatchID:     rec.ID,
		NearestUnit:    rec.ChosenStation,
		UnitLocation:   rec.StationLocation,
		AllStations:    all,
		EmergencyType:  rec.Category,
	}
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	catalog := s.dispatcher.Catalog()
	counts := make(map[domain.Category]int, len(domain.Categories))
	for _, c := range domain.Categories {
		counts[c] = catalog.Len(c)
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "online",
		"service":       serviceName,
		"version":       s.version,
		"provider":      s.dispatcher.ProviderName(),
		"totalStations": catalog.Total(),
		"stations":      counts,
		"endpoints": map[string]string{
			"calculate":  "POST /calculate",
			"stations":   "GET /stations?type={fire|medical|police}",
			"dispatches": "GET /dispatches?limit=N",
			"dispatch":   "GET /dispatches/{id}",
			"health":     "GET /healthz",
			"ready":      "GET /readyz",
			"metrics":    "GET /metrics",
		},
	})
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIncidentBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("request body too large or unreadable"))
		return
	}

	req, err := domain.DecodeIncident(body)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	rec, err := s.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, newCalculateResponse(rec))
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	catalog := s.dispatcher.Catalog()

	raw := r.URL.Query().Get("type")
	if raw == "" {
		sharedobs.WriteJSON(w, http.StatusOK, catalog)
		return
	}

	category, err := domain.ParseCategory(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"type":     category,
		"stations": domain.StationList(catalog.Stations(category)),
	})
}

func (s *Server) handleListDispatches(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	recs, err := s.dispatcher.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	if recs == nil {
		recs = []domain.DispatchRecord{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"dispatches": recs})
}

func (s *Server) handleGetDispatch(w http.ResponseWriter, r *http.Request) {
	rec, err := s.dispatcher.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, rec)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "status", status, "error", err)
	}
	sharedobs.WriteJSON(w, status, errorResponse{Success: false, Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidIncident), errors.Is(err, domain.ErrInvalidCategory):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoStationsAvailable),
		errors.Is(err, domain.ErrDispatchNotFound),
		errors.Is(err, dispatch.ErrHistoryDisabled):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoParsableEstimate), errors.Is(err, dispatch.ErrProviderFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
