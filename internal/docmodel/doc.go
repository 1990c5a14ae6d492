// Package docmodel defines the value types shared by every layer of the
// per-workspace document store: the immutable Document, the sparse Query
// selector language, the two total orderings documents are sorted under,
// content-hash computation, and the store's error taxonomy.
//
// Nothing in this package talks to a driver or a validator. It is pure
// value types and pure functions, imported by internal/driver,
// internal/querysql, internal/store and internal/asyncstore alike.
package docmodel
