// Package pool exposes the pool engine as the cellarpool.pool.v1.PoolService
// gRPC API.
//
// Messages are plain Go structs carried by a JSON codec registered under the
// "json" content subtype. The server maps domain errors to gRPC statuses with
// ErrorInfo details; the client maps them back so callers can keep matching
// with errors.Is.
package pool
