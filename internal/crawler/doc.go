// Package crawler defines the domain model shared by the extractors, the
// orchestrator and the persistence layer: catalog entries, entity records,
// the append-only run result, and the collaborator interfaces they depend on.
package crawler
