package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"allycheck/internal/logging"
	"allycheck/internal/tools"
)

// ClientManager manages connections to multiple MCP servers.
type ClientManager struct {
	mu sync.RWMutex

	version string
	configs map[string]ServerConfig
	conns   map[string]*connection

	// transport builds the client transport for a server.
	transport func(cfg ServerConfig) (sdkmcp.Transport, error)
}

type connection struct {
	cfg     ServerConfig
	server  *Server
	session *sdkmcp.ClientSession
}

// NewClientManager creates a manager for the given servers.
func NewClientManager(version string, configs []ServerConfig) *ClientManager {
	m := &ClientManager{
		version:   version,
		configs:   make(map[string]ServerConfig, len(configs)),
		conns:     make(map[string]*connection),
		transport: newTransport,
	}
	for _, c := range configs {
		m.configs[c.ID] = c
	}
	return m
}

func newTransport(cfg ServerConfig) (sdkmcp.Transport, error) {
	switch Protocol(cfg.Protocol) {
	case ProtocolStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("mcp server %s: command is required for stdio", cfg.ID)
		}
		return &sdkmcp.CommandTransport{Command: exec.Command(cfg.Command, cfg.Args...)}, nil
	case ProtocolHTTP:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("mcp server %s: base_url is required for http", cfg.ID)
		}
		return &sdkmcp.StreamableClientTransport{Endpoint: cfg.BaseURL}, nil
	default:
		return nil, fmt.Errorf("mcp server %s: unsupported protocol %q", cfg.ID, cfg.Protocol)
	}
}

// ConnectAll connects every enabled server. Failures are collected; servers
// that connect stay connected.
func (m *ClientManager) ConnectAll(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.configs))
	for id, cfg := range m.configs {
		if cfg.Enabled {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := m.Connect(ctx, id); err != nil {
			logging.MCPWarn("Failed to connect to MCP server %s: %v", id, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Connect establishes a session with one server.
func (m *ClientManager) Connect(ctx context.Context, serverID string) error {
	m.mu.RLock()
	cfg, ok := m.configs[serverID]
	_, connected := m.conns[serverID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown MCP server: %s", serverID)
	}
	if connected {
		return nil
	}

	transport, err := m.transport(cfg)
	if err != nil {
		return err
	}

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "allycheck", Version: m.version}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connect to MCP server %s: %w", serverID, err)
	}

	server := &Server{
		ID:            serverID,
		Name:          serverID,
		Protocol:      Protocol(cfg.Protocol),
		Status:        ServerStatusConnected,
		LastConnected: time.Now(),
	}
	if init := session.InitializeResult(); init != nil && init.ServerInfo != nil {
		server.Name = init.ServerInfo.Name
		server.Version = init.ServerInfo.Version
	}

	m.mu.Lock()
	if _, raced := m.conns[serverID]; raced {
		m.mu.Unlock()
		_ = session.Close()
		return nil
	}
	m.conns[serverID] = &connection{cfg: cfg, server: server, session: session}
	m.mu.Unlock()

	logging.MCP("Connected to MCP server %s (%s %s)", serverID, server.Name, server.Version)
	return nil
}

// Disconnect closes the session with one server.
func (m *ClientManager) Disconnect(serverID string) error {
	m.mu.Lock()
	conn, ok := m.conns[serverID]
	delete(m.conns, serverID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("server not connected: %s", serverID)
	}
	conn.server.Status = ServerStatusDisconnected
	return conn.session.Close()
}

// DisconnectAll closes every session.
func (m *ClientManager) DisconnectAll() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*connection)
	m.mu.Unlock()

	for id, conn := range conns {
		if err := conn.session.Close(); err != nil {
			logging.MCPWarn("Error closing MCP session %s: %v", id, err)
		}
	}
}

// Servers returns a snapshot of connected servers sorted by id.
func (m *ClientManager) Servers() []Server {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Server, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, *c.server)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *ClientManager) conn(serverID string) (*connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conns[serverID]
	if !ok {
		return nil, fmt.Errorf("server not connected: %s", serverID)
	}
	return c, nil
}

// DiscoverTools lists a server's tools and wraps each as a registry tool.
func (m *ClientManager) DiscoverTools(ctx context.Context, serverID string) ([]*tools.Tool, error) {
	conn, err := m.conn(serverID)
	if err != nil {
		return nil, err
	}

	var remote []*sdkmcp.Tool
	params := &sdkmcp.ListToolsParams{}
	for {
		res, err := conn.session.ListTools(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list tools of %s: %w", serverID, err)
		}
		remote = append(remote, res.Tools...)
		if res.NextCursor == "" {
			break
		}
		params = &sdkmcp.ListToolsParams{Cursor: res.NextCursor}
	}

	out := make([]*tools.Tool, 0, len(remote))
	names := make([]string, 0, len(remote))
	for _, rt := range remote {
		t, err := m.wrap(serverID, conn.cfg, rt)
		if err != nil {
			logging.MCPWarn("Skipping tool %s from %s: %v", rt.Name, serverID, err)
			continue
		}
		out = append(out, t)
		names = append(names, t.Name)
	}

	m.mu.Lock()
	conn.server.Tools = names
	m.mu.Unlock()

	logging.MCP("Discovered %d tools from %s", len(out), serverID)
	return out, nil
}

// RegisterTools discovers the tools of every connected server and registers
// them. It returns the number of tools registered.
func (m *ClientManager) RegisterTools(ctx context.Context, registry *tools.Registry) (int, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)

	count := 0
	for _, id := range ids {
		discovered, err := m.DiscoverTools(ctx, id)
		if err != nil {
			return count, err
		}
		for _, t := range discovered {
			if err := registry.Register(t); err != nil {
				if errors.Is(err, tools.ErrToolAlreadyRegistered) {
					logging.MCPWarn("Remote tool %s shadows a local tool, skipped", t.Name)
					continue
				}
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func (m *ClientManager) wrap(serverID string, cfg ServerConfig, rt *sdkmcp.Tool) (*tools.Tool, error) {
	schema, err := schemaMap(rt.InputSchema)
	if err != nil {
		return nil, err
	}
	remoteName := rt.Name
	return &tools.Tool{
		Name:        cfg.Prefix + remoteName,
		Description: rt.Description,
		Category:    tools.CategoryRemote,
		Schema:      tools.ToolSchema{Raw: schema},
		Priority:    40,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return m.CallTool(ctx, serverID, remoteName, args)
		},
	}, nil
}

// schemaMap normalises a remote input schema into a JSON object.
func schemaMap(schema any) (map[string]any, error) {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("input schema is not an object: %w", err)
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	return out, nil
}

// CallTool invokes a tool on a server and returns its text content.
// Transport failures are transient; a tool-reported error is not.
func (m *ClientManager) CallTool(ctx context.Context, serverID, name string, args map[string]any) (string, error) {
	conn, err := m.conn(serverID)
	if err != nil {
		return "", err
	}

	if args == nil {
		args = map[string]any{}
	}
	ctx, cancel := context.WithTimeout(ctx, conn.cfg.GetTimeout())
	defer cancel()

	res, err := conn.session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", tools.Transient(fmt.Errorf("call %s on %s: %w", name, serverID, err))
	}

	text := contentText(res)
	if res.IsError {
		if text == "" {
			text = "remote tool reported an error"
		}
		return "", errors.New(text)
	}
	return text, nil
}

func contentText(res *sdkmcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 && res.StructuredContent != nil {
		if data, err := json.Marshal(res.StructuredContent); err == nil {
			return string(data)
		}
	}
	return strings.Join(parts, "\n")
}
