// Package telemetry wires OpenTelemetry tracing and metrics for issuevec.
//
// A pipeline run opens one span per state transition. The embedding client
// and vector store record request counters and latency histograms on the
// meter returned by Telemetry.Meter. Export goes over OTLP (gRPC by default,
// or HTTP/protobuf) and is off unless OTEL_ENABLE=true.
//
// Telemetry never fails a run: if a provider cannot be built, the instance is
// marked degraded and callers fall back to the global no-op providers.
//
// Tests use NewTestTelemetry, which records spans in memory and exposes a
// manual metric reader:
//
//	tt := telemetry.NewTestTelemetry()
//	client := embeddings.New(cfg, embeddings.WithMeter(tt.Meter("test")))
//	total, _ := tt.CounterTotal(ctx, "issuevec.embedding.requests")
package telemetry
