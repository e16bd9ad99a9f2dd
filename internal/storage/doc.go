package storage

// Package storage provides the persistence layer behind the scheduling
// engine and the importer.
//
// It currently supports:
//   - Anchor record upserts + pending-plan queries
//   - Chunked task-instance bulk inserts
//   - Match result appends (import audit trail)
