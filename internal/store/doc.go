// Package store defines the search history repository and its records.
// Implementations live in internal/storage; this package must not import
// database drivers or concrete clients.
package store
