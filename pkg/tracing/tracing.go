package tracing

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tempvoice"

// Span attribute keys shared by the lifecycle, bridge and HTTP layers.
// Snowflake ids are recorded as decimal strings.
var (
	GuildIDKey   = attribute.Key("tempvoice.guild_id")
	RoomIDKey    = attribute.Key("tempvoice.room_id")
	MemberIDKey  = attribute.Key("tempvoice.member_id")
	OperationKey = attribute.Key("tempvoice.operation")
	FrameKey     = attribute.Key("bridge.frame")
	CommandKey   = attribute.Key("platform.command")
)

type Config struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	JaegerURL   string  `yaml:"jaeger_url"`
	Environment string  `yaml:"environment"`
	SampleRate  float64 `yaml:"sample_rate"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "tempvoice",
		JaegerURL:   "http://localhost:14268/api/traces",
		Environment: "development",
		SampleRate:  1.0,
	}
}

// Provider owns the exporter pipeline. The zero value is a disabled
// provider whose Shutdown does nothing.
type Provider struct {
	sdk *tracesdk.TracerProvider
}

// Init installs a global tracer provider exporting to Jaeger. When tracing
// is disabled the global no-op provider stays in place.
func Init(cfg Config, version string) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("jaeger exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(version),
		semconv.DeploymentEnvironmentKey.String(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	sdk := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(cfg.SampleRate))),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return &Provider{sdk: sdk}, nil
}

// Shutdown flushes buffered spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// RecordError marks the span in ctx as failed.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func snowflake(key attribute.Key, id uint64) attribute.KeyValue {
	return key.String(strconv.FormatUint(id, 10))
}

func TraceHTTPRequest(ctx context.Context, method, route string) (context.Context, trace.Span) {
	return StartSpan(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(semconv.HTTPMethodKey.String(method), semconv.HTTPRouteKey.String(route)),
	)
}

// TraceBridgeMessage covers the handling of one inbound gateway frame.
func TraceBridgeMessage(ctx context.Context, frame string) (context.Context, trace.Span) {
	return StartSpan(ctx, "bridge."+frame,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(FrameKey.String(frame)),
	)
}

// TraceLifecycle covers one room operation. Zero ids are omitted.
func TraceLifecycle(ctx context.Context, operation string, guildID, roomID, memberID uint64) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{OperationKey.String(operation)}
	for _, id := range []struct {
		key attribute.Key
		val uint64
	}{{GuildIDKey, guildID}, {RoomIDKey, roomID}, {MemberIDKey, memberID}} {
		if id.val != 0 {
			attrs = append(attrs, snowflake(id.key, id.val))
		}
	}
	return StartSpan(ctx, "lifecycle."+operation, trace.WithAttributes(attrs...))
}

// TracePlatformCommand covers one command round trip to the gateway.
func TracePlatformCommand(ctx context.Context, command string) (context.Context, trace.Span) {
	return StartSpan(ctx, "platform."+command,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(CommandKey.String(command)),
	)
}
