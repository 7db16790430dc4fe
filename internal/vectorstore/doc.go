// Package vectorstore writes vector records into a vector index.
//
// Three backends implement Store:
//   - fuelix (default): a REST vector service addressed by region and namespace
//   - qdrant: a Qdrant server over native gRPC (port 6334)
//   - chromem: an embedded chromem-go database persisted to disk
//
// EnsureCollection is idempotent on every backend: a collection that already
// exists is success. Upsert sends the whole batch in one request and an empty
// batch is acknowledged as skipped without contacting the backend.
//
// Failures are *StoreError values; Op tells collection creation apart from
// upsert.
package vectorstore
