// Package mcp connects allycheck to Model Context Protocol servers.
//
// The client side discovers the tools of configured servers and registers
// them in a tools.Registry, so remote tools are called exactly like local
// ones. The server side exposes a registry to external MCP clients.
package mcp

import "time"

// ServerStatus represents the connection status of an MCP server.
type ServerStatus string

const (
	ServerStatusUnknown      ServerStatus = "unknown"
	ServerStatusConnecting   ServerStatus = "connecting"
	ServerStatusConnected    ServerStatus = "connected"
	ServerStatusDisconnected ServerStatus = "disconnected"
	ServerStatusError        ServerStatus = "error"
)

// Protocol represents the MCP transport protocol.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"  // streamable HTTP
	ProtocolStdio Protocol = "stdio" // subprocess
)

// ServerConfig configures one MCP server.
type ServerConfig struct {
	ID       string   `yaml:"id"`
	Enabled  bool     `yaml:"enabled"`
	Protocol string   `yaml:"protocol"`
	BaseURL  string   `yaml:"base_url"` // http
	Command  string   `yaml:"command"`  // stdio
	Args     []string `yaml:"args"`
	Timeout  string   `yaml:"timeout"`
	// Prefix is prepended to remote tool names to avoid collisions with
	// local tools. Empty registers names unchanged.
	Prefix string `yaml:"prefix"`
}

// GetTimeout returns the per-call timeout.
func (c ServerConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Server is a connected MCP server as seen by the manager.
type Server struct {
	ID            string       `json:"server_id"`
	Name          string       `json:"name"`
	Version       string       `json:"version"`
	Protocol      Protocol     `json:"protocol"`
	Status        ServerStatus `json:"status"`
	Tools         []string     `json:"tools"`
	LastConnected time.Time    `json:"last_connected"`
}
