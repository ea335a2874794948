// Package core provides the business logic of the reject list service.
//
// The package is independent of any transport: the HTTP layer in internal/web
// and the rejectctl CLI both drive it through [Service].
//
// # Records and Stores
//
// A [Record] is one reject list entry. Persistence is behind [Store]; the
// in-process [MemoryStore] serves tests and single-node setups, and
// internal/storage provides the PostgreSQL implementation. Stores stamp
// created_at and updated_at in the organizational time zone, truncated to
// microseconds, and never move updated_at backwards.
//
// # Writes
//
// Client payloads are decoded by [DecodeFields] into tri-state [Fields] so
// partial updates can distinguish an absent attribute from an explicit null.
// Type errors surface from decoding; length limits are enforced by the store.
// Both are reported as [ValidationErrors].
//
// # Ingestion
//
// [Ingester] skips a submission when a stored record has the same name
// (case-insensitive), contact number and proposal date. Bulk ingests run in
// input order, see their own earlier items, and never roll back. The duplicate
// check and the insert are not atomic, so concurrent identical submissions can
// both persist.
//
// # Queries
//
// [Query] combines a free-text search, a status filter ("ALL" disables it) and
// a name filter with AND. Stores implementing [Searcher] evaluate queries
// themselves; [Find] falls back to [Filter] over the full listing otherwise.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a code for support reference (REC, AUTH, ING, DB).
package core
