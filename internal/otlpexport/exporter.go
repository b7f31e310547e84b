// Package otlpexport ships application transitions and key presses to an
// OpenTelemetry collector as OTLP log records over gRPC.
package otlpexport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"

	"github.com/rustacademy/academy/internal/model"
)

const (
	DefaultServiceName   = "academy"
	DefaultBatchSize     = 256
	DefaultFlushInterval = 2 * time.Second
	DefaultTimeout       = 5 * time.Second
	DefaultQueueSize     = 4096

	scopeName = "github.com/rustacademy/academy/internal/runtime"
)

var _ model.TransitionSink = (*Exporter)(nil)

// Config holds exporter settings.
type Config struct {
	Endpoint      string
	ServiceName   string
	BatchSize     int
	FlushInterval time.Duration
	Timeout       time.Duration
	QueueSize     int
}

func (c *Config) defaults() {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
}

// Stats reports exporter counters.
type Stats struct {
	Exported uint64 `json:"exported"`
	Dropped  uint64 `json:"dropped"`
	Failed   uint64 `json:"failed"`
	Bytes    uint64 `json:"bytes"`
}

// Exporter batches records and sends them with the OTLP logs service.
// Record methods never block: when the queue is full records are dropped.
type Exporter struct {
	cfg    Config
	client collogspb.LogsServiceClient
	conn   *grpc.ClientConn
	queue  chan *logspb.LogRecord

	exported atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
	bytes    atomic.Uint64
}

// Dial connects to the collector at cfg.Endpoint without TLS.
func Dial(cfg Config) (*Exporter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("otlpexport: endpoint is empty")
	}
	conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("otlpexport: dial %s: %w", cfg.Endpoint, err)
	}
	e := New(collogspb.NewLogsServiceClient(conn), cfg)
	e.conn = conn
	return e, nil
}

// New creates an exporter using an existing client.
func New(client collogspb.LogsServiceClient, cfg Config) *Exporter {
	cfg.defaults()
	return &Exporter{
		cfg:    cfg,
		client: client,
		queue:  make(chan *logspb.LogRecord, cfg.QueueSize),
	}
}

// RecordTransition queues a transition as an INFO log record.
func (e *Exporter) RecordTransition(t model.Transition) {
	sev := logspb.SeverityNumber_SEVERITY_NUMBER_INFO
	if !t.Rendered {
		sev = logspb.SeverityNumber_SEVERITY_NUMBER_DEBUG
	}
	e.enqueue(&logspb.LogRecord{
		TimeUnixNano:         uint64(t.At.UnixNano()),
		ObservedTimeUnixNano: uint64(t.At.UnixNano()),
		SeverityNumber:       sev,
		SeverityText:         severityText(sev),
		Body:                 stringValue(t.Message),
		Attributes: []*commonpb.KeyValue{
			intAttr("academy.seq", int64(t.Seq)),
			stringAttr("academy.message", t.Message),
			stringAttr("academy.payload", t.Payload),
			intAttr("academy.click_count", int64(t.ClickCount)),
			stringAttr("academy.search_text", t.SearchText),
			intAttr("academy.random_number", int64(t.RandomNumber)),
			stringAttr("academy.clock_time", t.ClockTime),
			boolAttr("academy.rendered", t.Rendered),
			intAttr("academy.cards", int64(t.Cards)),
		},
	})
}

// RecordKey queues a key press log record.
func (e *Exporter) RecordKey(k model.KeyEvent) {
	e.enqueue(&logspb.LogRecord{
		TimeUnixNano:         uint64(k.At.UnixNano()),
		ObservedTimeUnixNano: uint64(k.At.UnixNano()),
		SeverityNumber:       logspb.SeverityNumber_SEVERITY_NUMBER_INFO,
		SeverityText:         "INFO",
		Body:                 stringValue("key pressed: " + k.Key),
		Attributes: []*commonpb.KeyValue{
			intAttr("academy.seq", int64(k.Seq)),
			stringAttr("academy.key", k.Key),
		},
	})
}

func (e *Exporter) enqueue(r *logspb.LogRecord) {
	select {
	case e.queue <- r:
	default:
		e.dropped.Add(1)
	}
}

// Run exports batches until ctx is cancelled, then flushes what is queued.
func (e *Exporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]*logspb.LogRecord, 0, e.cfg.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := e.Export(ctx, batch); err != nil {
			log.Printf("otlpexport: export %d records: %v", len(batch), err)
		}
		batch = make([]*logspb.LogRecord, 0, e.cfg.BatchSize)
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case r := <-e.queue:
					batch = append(batch, r)
				default:
					break drain
				}
			}
			final, cancel := context.WithTimeout(context.Background(), e.cfg.Timeout)
			flush(final)
			cancel()
			return nil
		case r := <-e.queue:
			batch = append(batch, r)
			if len(batch) >= e.cfg.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// Export sends records in one request.
func (e *Exporter) Export(ctx context.Context, records []*logspb.LogRecord) error {
	if len(records) == 0 {
		return nil
	}
	req := e.request(records)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.client.Export(ctx, req)
	if err != nil {
		e.failed.Add(uint64(len(records)))
		return fmt.Errorf("otlpexport: export: %w", err)
	}

	rejected := int64(0)
	if ps := resp.GetPartialSuccess(); ps != nil {
		rejected = ps.GetRejectedLogRecords()
		if rejected > 0 {
			log.Printf("otlpexport: collector rejected %d records: %s", rejected, ps.GetErrorMessage())
		}
	}
	e.failed.Add(uint64(rejected))
	e.exported.Add(uint64(int64(len(records)) - rejected))
	e.bytes.Add(uint64(proto.Size(req)))
	return nil
}

func (e *Exporter) request(records []*logspb.LogRecord) *collogspb.ExportLogsServiceRequest {
	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource: &resourcepb.Resource{
				Attributes: []*commonpb.KeyValue{stringAttr("service.name", e.cfg.ServiceName)},
			},
			ScopeLogs: []*logspb.ScopeLogs{{
				Scope:      &commonpb.InstrumentationScope{Name: scopeName},
				LogRecords: records,
			}},
		}},
	}
}

// Stats returns a snapshot of the exporter counters.
func (e *Exporter) Stats() Stats {
	return Stats{
		Exported: e.exported.Load(),
		Dropped:  e.dropped.Load(),
		Failed:   e.failed.Load(),
		Bytes:    e.bytes.Load(),
	}
}

// Close releases the gRPC connection opened by Dial.
func (e *Exporter) Close() error {
	if e.conn == nil {
		return nil
	}
	return e.conn.Close()
}

func severityText(s logspb.SeverityNumber) string {
	if s == logspb.SeverityNumber_SEVERITY_NUMBER_DEBUG {
		return "DEBUG"
	}
	return "INFO"
}

func stringValue(s string) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: s}}
}

func stringAttr(k, v string) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: k, Value: stringValue(v)}
}

func intAttr(k string, v int64) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: k, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: v}}}
}

func boolAttr(k string, v bool) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: k, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: v}}}
}
