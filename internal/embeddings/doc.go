// Package embeddings turns issue text into vectors through a remote embedding
// service.
//
// The default provider speaks the OpenAI embeddings API directly over HTTP.
// A langchaingo-backed provider is available for OpenAI-compatible servers
// that langchaingo already knows how to address. Both providers refuse to run
// without a credential and reject empty text before any network call.
//
// Every call records a request counter, an error counter and a latency
// histogram on the configured OpenTelemetry meter.
package embeddings
