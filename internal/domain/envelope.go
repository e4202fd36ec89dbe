package domain

import (
	"context"
	"time"
)

// RawEvent is an unprocessed scenario request read from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is an encoded wind field destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Output message header names.
const (
	HeaderScenarioID  = "scenario_id"
	HeaderLeadIndex   = "lead_index"
	HeaderEncoding    = "encoding"
	HeaderGeneratedAt = "generated_at"
	HeaderFingerprint = "fingerprint"
)
