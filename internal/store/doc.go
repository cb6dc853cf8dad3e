// Package store persists talks, documents, normalized entities, and the
// append-only review decision log in SQLite.
//
// Ownership rules: entity identity and occurrence mapping change only through
// the normalizer; decision state changes only through the review ledger.
// Sanitized output is derived and never stored as authority.
package store
