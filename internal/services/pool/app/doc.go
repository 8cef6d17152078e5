// Package app assembles the pool service runtime: ledger storage, the engine,
// the gRPC API, the read-only HTTP API and the event relay.
package app
