// Package domain maps MCP tool calls and resource reads onto the pool service
// API.
//
// Each tool forwards one call to PoolService on behalf of the session actor
// and returns a structured result that MCP clients can render.
package domain
