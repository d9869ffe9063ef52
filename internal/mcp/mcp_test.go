package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"allycheck/internal/tools"
)

type echoArgs struct {
	Text string `json:"text"`
}

func (a *echoArgs) Validate() error {
	if a.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

func localRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	reg.MustRegister(tools.NewTyped("echo", "Echo text back", tools.CategoryReference,
		tools.ToolSchema{
			Required:   []string{"text"},
			Properties: map[string]tools.Property{"text": {Type: "string", Description: "Text to echo"}},
		},
		func(_ context.Context, args echoArgs) (string, error) {
			return "echo: " + args.Text, nil
		},
	))
	reg.MustRegister(&tools.Tool{
		Name:        "broken",
		Description: "Always fails",
		Execute: func(context.Context, map[string]any) (string, error) {
			return "", errors.New("upstream exploded")
		},
	})
	return reg
}

// connectPair serves reg over in-memory transports and returns a manager
// connected to it as server "docs".
func connectPair(t *testing.T, ctx context.Context, reg *tools.Registry, prefix string) *ClientManager {
	t.Helper()
	serverT, clientT := sdkmcp.NewInMemoryTransports()

	session, err := NewServer(reg, "test").Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })

	m := NewClientManager("test", []ServerConfig{{ID: "docs", Enabled: true, Protocol: "stdio", Prefix: prefix, Timeout: "5s"}})
	m.transport = func(ServerConfig) (sdkmcp.Transport, error) { return clientT, nil }
	if err := m.ConnectAll(ctx); err != nil {
		t.Fatalf("ConnectAll: %v", err)
	}
	t.Cleanup(m.DisconnectAll)
	return m
}

func TestBridgeRegistersRemoteTools(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m := connectPair(t, ctx, localRegistry(t), "remote_")

	servers := m.Servers()
	if len(servers) != 1 || servers[0].Name != "allycheck" || servers[0].Status != ServerStatusConnected {
		t.Fatalf("unexpected servers: %+v", servers)
	}

	reg := tools.NewRegistry()
	n, err := m.RegisterTools(ctx, reg)
	if err != nil {
		t.Fatalf("RegisterTools: %v", err)
	}
	if n != 2 || !reg.Has("remote_echo") || !reg.Has("remote_broken") {
		t.Fatalf("registered %d tools: %v", n, reg.Names())
	}

	echo := reg.Get("remote_echo")
	if echo.Category != tools.CategoryRemote {
		t.Errorf("category = %s", echo.Category)
	}
	schema := echo.Definition().Parameters
	if schema["type"] != "object" {
		t.Errorf("remote schema not preserved: %v", schema)
	}
	if _, ok := schema["properties"].(map[string]any)["text"]; !ok {
		t.Errorf("remote schema lost its properties: %v", schema)
	}

	res, err := reg.Execute(ctx, "remote_echo", map[string]any{"text": "hej"})
	if err != nil {
		t.Fatalf("remote_echo: %v", err)
	}
	if res.Result != "echo: hej" {
		t.Errorf("result = %q", res.Result)
	}
}

func TestBridgeRemoteErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m := connectPair(t, ctx, localRegistry(t), "")

	_, err := m.CallTool(ctx, "docs", "broken", nil)
	if err == nil || !strings.Contains(err.Error(), "upstream exploded") {
		t.Fatalf("expected remote error text, got %v", err)
	}
	if tools.IsTransient(err) {
		t.Error("tool-reported errors must not be retried")
	}

	_, err = m.CallTool(ctx, "docs", "echo", map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "missing required argument") {
		t.Errorf("expected validation message from remote, got %v", err)
	}

	if _, err := m.CallTool(ctx, "missing", "echo", nil); err == nil {
		t.Error("expected error for unknown server")
	}
}

func TestRegisterToolsSkipsShadowedNames(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m := connectPair(t, ctx, localRegistry(t), "")

	reg := localRegistry(t)
	n, err := m.RegisterTools(ctx, reg)
	if err != nil {
		t.Fatalf("RegisterTools: %v", err)
	}
	if n != 0 {
		t.Errorf("expected local tools to win, %d remote tools registered", n)
	}
}

func TestConnectErrors(t *testing.T) {
	m := NewClientManager("test", []ServerConfig{
		{ID: "bad", Enabled: true, Protocol: "carrier-pigeon"},
		{ID: "off", Enabled: false, Protocol: "stdio"},
	})
	err := m.ConnectAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unsupported protocol") {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if len(m.Servers()) != 0 {
		t.Error("no server should be connected")
	}
	if err := m.Connect(context.Background(), "nope"); err == nil {
		t.Error("expected unknown server error")
	}
	if err := m.Disconnect("bad"); err == nil {
		t.Error("expected not-connected error")
	}
}

func TestServerConfigTimeout(t *testing.T) {
	if (ServerConfig{}).GetTimeout() != 30*time.Second {
		t.Error("default timeout should be 30s")
	}
	if (ServerConfig{Timeout: "2s"}).GetTimeout() != 2*time.Second {
		t.Error("timeout not parsed")
	}
}
