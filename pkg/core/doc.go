// Package core defines the shared language of dbdeck.
//
// This package contains:
//   - Schema values (Column, ForeignKey)
//   - Mutations (CellUpdate, RowDelete) consumed by engine commits
//   - Query values (WhereEntry, QueryResponse)
//   - Connection descriptors (ConnectionConfig, TunnelConfig)
//   - The error taxonomy shared by every engine
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
