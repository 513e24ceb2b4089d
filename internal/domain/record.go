package domain

import (
	"errors"
	"time"
)

// ErrDispatchNotFound is returned when a dispatch ID has no stored record.
var ErrDispatchNotFound = errors.New("dispatch not found")

// DispatchRecord is a resolved dispatch as persisted and published: the
// decision plus the estimates it was chosen from.
type DispatchRecord struct {
	ID string `json:"id"`
	DispatchDecision
	Provider  string           `json:"provider"`
	Estimates []TravelEstimate `json:"estimates"`
	DecidedAt time.Time        `json:"decidedAt"`
}
