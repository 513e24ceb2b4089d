package domain

import (
	"context"
	"time"
)

// IncidentMessage is an undecoded incident request read from the intake topic.
type IncidentMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}
