// Package service hosts the MCP server that exposes pool operations as agent
// tools and resources over stdio or HTTP.
package service
