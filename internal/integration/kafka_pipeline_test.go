//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-windfield/internal/adapter/kafka"
	"github.com/couchcryptid/storm-data-windfield/internal/codec"
	"github.com/couchcryptid/storm-data-windfield/internal/config"
	"github.com/couchcryptid/storm-data-windfield/internal/domain"
	"github.com/couchcryptid/storm-data-windfield/internal/observability"
	"github.com/couchcryptid/storm-data-windfield/internal/pipeline"
	"github.com/couchcryptid/storm-data-windfield/internal/plan"
)

const (
	testSourceTopic = "test-scenario-requests"
	testSinkTopic   = "test-wind-fields"
)

// fieldMessage holds a decoded message read from the sink topic.
type fieldMessage struct {
	Doc     codec.Document
	Key     string
	Headers map[string]string
}

// readField reads a single message from the sink consumer and decodes it
// according to its encoding header.
func readField(ctx context.Context, t *testing.T, consumer *kafkago.Reader) fieldMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	enc, err := codec.ParseEncoding(headers[domain.HeaderEncoding])
	require.NoError(t, err)
	doc, err := codec.Decode(msg.Value, enc)
	require.NoError(t, err, "decode sink message")

	return fieldMessage{Doc: doc, Key: string(msg.Key), Headers: headers}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
		FieldEncoding:      codec.EncodingMsgpackZstd,
	}
}

func defaultPlanRequests(t *testing.T) []domain.Scenario {
	t.Helper()
	scenarios, err := plan.Default().Scenarios()
	require.NoError(t, err)
	return scenarios
}

func newSinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader and
// kafka.Writer round-trip a scenario request and its field through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := testConfig(broker, "test-reader")
	p := plan.Default()

	request := defaultPlanRequests(t)[1]
	payload, err := json.Marshal(request)
	require.NoError(t, err)

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{Key: []byte(request.ID), Value: payload}))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte(request.ID), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	defaults := p.Defaults()
	builder := pipeline.NewFieldBuilder(domain.NewGenerator(defaults), defaults, cfg.FieldEncoding, discardLogger(), observability.NewMetricsForTesting())
	out, err := builder.Build(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.OutputEvent{out}))

	fm := readField(ctx, t, newSinkConsumer(t, broker))
	assert.Equal(t, request.ID, fm.Key)
	assert.Equal(t, request.ID, fm.Headers[domain.HeaderScenarioID])
	assert.Equal(t, "1", fm.Headers[domain.HeaderLeadIndex])
	_, err = time.Parse(time.RFC3339, fm.Headers[domain.HeaderGeneratedAt])
	assert.NoError(t, err, "generated_at should be valid RFC3339")

	assert.InDelta(t, 2.05, fm.Doc.StdDev, 1e-12)
	assert.Equal(t, domain.GridSize{Rows: 9, Cols: 22}, fm.Doc.Size)
	assert.Len(t, fm.Doc.Levels, 13)
}

// TestPipelineEndToEnd wires the full pipeline (Reader → FieldBuilder →
// Writer) with real Kafka and checks every default-plan field regenerates
// bit for bit from its document.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := testConfig(broker, "test-pipeline")
	requests := defaultPlanRequests(t)

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, len(requests))
	for _, r := range requests {
		payload, err := json.Marshal(r)
		require.NoError(t, err)
		msgs = append(msgs, kafkago.Message{Key: []byte(r.ID), Value: payload})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	defaults := plan.Default().Defaults()
	metrics := observability.NewMetricsForTesting()
	builder := pipeline.NewFieldBuilder(domain.NewGenerator(defaults), defaults, cfg.FieldEncoding, discardLogger(), metrics)
	p := pipeline.New(reader, builder, writer, discardLogger(), metrics, 50, 4)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := newSinkConsumer(t, broker)
	received := make(map[string]fieldMessage, len(requests))
	for len(received) < len(requests) {
		fm := readField(ctx, t, consumer)
		received[fm.Key] = fm
	}

	pipelineCancel()
	require.NoError(t, <-errCh)
	require.NoError(t, p.CheckReadiness(ctx))

	wantStd := map[int]float64{0: 2.0, 1: 2.05, 2: 2.1, 7: 2.35}
	for _, r := range requests {
		fm, ok := received[r.ID]
		require.True(t, ok, "missing field for %s", r.ID)
		assert.InDelta(t, wantStd[r.LeadIndex], fm.Doc.StdDev, 1e-12, r.ID)

		want, err := r.Build(defaults)
		require.NoError(t, err)
		got, err := fm.Doc.Field()
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "field for %s does not regenerate", r.ID)
	}
}

// TestPipelineBuildError verifies that an invalid request (poison pill) is
// skipped and the pipeline continues processing valid requests.
func TestPipelineBuildError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := testConfig(broker, "test-poison")
	valid := defaultPlanRequests(t)[0]
	validPayload, err := json.Marshal(valid)
	require.NoError(t, err)

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("mixed"), Value: []byte(`{"region": {"south": 0, "north": 1, "east": 0, "west": 1, "resolution": 0.5}, "levels": [500, "700hPa"]}`)},
		kafkago.Message{Key: []byte(valid.ID), Value: validPayload},
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	defaults := plan.Default().Defaults()
	metrics := observability.NewMetricsForTesting()
	builder := pipeline.NewFieldBuilder(domain.NewGenerator(defaults), defaults, cfg.FieldEncoding, discardLogger(), metrics)
	p := pipeline.New(reader, builder, writer, discardLogger(), metrics, 50, 2)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := newSinkConsumer(t, broker)
	fm := readField(ctx, t, consumer)
	assert.Equal(t, valid.ID, fm.Key)

	// Verify no second message arrives (both poison pills were skipped).
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
