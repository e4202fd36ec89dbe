package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-data-windfield/internal/codec"
	"github.com/couchcryptid/storm-data-windfield/internal/domain"
	"github.com/couchcryptid/storm-data-windfield/internal/observability"
)

// FieldBuilder implements Builder: it parses a scenario request, builds the
// wind field and encodes it for the sink topic.
type FieldBuilder struct {
	generator domain.FieldGenerator
	defaults  domain.Defaults
	encoding  codec.Encoding
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewFieldBuilder creates a FieldBuilder. Scenarios are resolved against
// defaults before they reach the generator, so the generator only ever sees
// fully specified scenarios.
func NewFieldBuilder(gen domain.FieldGenerator, defaults domain.Defaults, enc codec.Encoding, logger *slog.Logger, metrics *observability.Metrics) *FieldBuilder {
	return &FieldBuilder{
		generator: gen,
		defaults:  defaults,
		encoding:  enc,
		logger:    logger,
		metrics:   metrics,
	}
}

// Build parses raw as a JSON scenario and returns the encoded field. A
// request without an ID takes the message key as its ID.
func (b *FieldBuilder) Build(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	start := time.Now()

	s, err := domain.ParseScenario(raw.Value)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	if s.ID == "" && len(raw.Key) > 0 {
		s.ID = string(raw.Key)
	}

	doc, err := b.Document(ctx, s)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	data, err := codec.Encode(doc, b.encoding)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	b.metrics.FieldBuildDuration.Observe(time.Since(start).Seconds())
	b.logger.Debug("field built",
		"scenario_id", doc.Scenario.Key(),
		"levels", len(doc.Levels),
		"rows", doc.Size.Rows,
		"cols", doc.Size.Cols,
		"bytes", len(data),
	)

	return domain.OutputEvent{
		Key:     []byte(doc.Scenario.Key()),
		Value:   data,
		Headers: outputHeaders(doc, b.encoding),
	}, nil
}

// Document resolves s, builds its field and wraps it with the resolved
// scenario so the result can be regenerated on its own.
func (b *FieldBuilder) Document(ctx context.Context, s domain.Scenario) (codec.Document, error) {
	resolved, err := s.Resolve(b.defaults)
	if err != nil {
		return codec.Document{}, err
	}
	field, err := b.generator.Generate(ctx, resolved)
	if err != nil {
		return codec.Document{}, fmt.Errorf("scenario %s: %w", resolved.Key(), err)
	}
	b.metrics.GridCellsGenerated.Add(float64(field.Size().Cells() * field.Len()))
	return codec.FromField(field, resolved, domain.Now()), nil
}

func outputHeaders(doc codec.Document, enc codec.Encoding) map[string]string {
	return map[string]string{
		domain.HeaderScenarioID:  doc.Scenario.Key(),
		domain.HeaderLeadIndex:   strconv.Itoa(doc.Scenario.LeadIndex),
		domain.HeaderEncoding:    string(enc),
		domain.HeaderGeneratedAt: doc.GeneratedAt.Format(time.RFC3339),
		domain.HeaderFingerprint: doc.Scenario.Fingerprint(),
	}
}
