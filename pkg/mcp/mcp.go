// Package mcp implements §4.9's client-facing MCP contract: discover tools
// from an external MCP server over stdio and invoke them, registering the
// discovered tools into a pkg/tool.Registry with conservative default
// capability flags. Only the client side is in scope — the wire transport
// itself is mcp-go's.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"coreagent/pkg/tool"
)

const protocolVersion = "2024-11-05"

// Config describes how to launch and address one MCP server subprocess.
type Config struct {
	// Name prefixes every discovered tool's name (server__tool) so two
	// servers exposing the same tool name never collide in a Registry.
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// Client is a lazily-connected MCP stdio client for one server.
type Client struct {
	cfg Config

	mu     sync.Mutex
	client *client.Client
}

// New creates a Client. No connection is made until Discover is called.
func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Close terminates the underlying subprocess, if connected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// Discover connects (on first call) and returns every tool the server
// exposes as a tool.Tool ready for Registry.RegisterMCP. Capability flags
// default conservatively: not read-only (an MCP tool's side effects are
// opaque to us) and not streaming.
func (c *Client) Discover(ctx context.Context) ([]tool.Tool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		if err := c.connectLocked(ctx); err != nil {
			return nil, fmt.Errorf("mcp: connect %s: %w", c.cfg.Name, err)
		}
	}

	resp, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp: list tools from %s: %w", c.cfg.Name, err)
	}

	tools := make([]tool.Tool, 0, len(resp.Tools))
	for _, spec := range resp.Tools {
		spec := spec
		qualifiedName := c.cfg.Name + "__" + spec.Name
		tools = append(tools, tool.Tool{
			Name:        qualifiedName,
			Description: spec.Description,
			Schema:      convertSchema(spec.InputSchema),
			Handler: func(ctx context.Context, args string) (tool.Result, error) {
				return c.invoke(ctx, spec.Name, args)
			},
		})
	}
	return tools, nil
}

// DiscoverAndRegister discovers the server's tools and registers them into
// reg. Per §4.9, a connection failure is not fatal to the caller's startup:
// it is returned here so the caller can log it, but the affected tools are
// simply absent from reg and therefore from the rendered prompt.
func (c *Client) DiscoverAndRegister(ctx context.Context, reg *tool.Registry) error {
	tools, err := c.Discover(ctx)
	if err != nil {
		return err
	}
	reg.RegisterMCP(tools...)
	return nil
}

func (c *Client) connectLocked(ctx context.Context) error {
	mcpClient, err := client.NewStdioMCPClient(c.cfg.Command, envSlice(c.cfg.Env), c.cfg.Args...)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("start subprocess: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "coreagent", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = protocolVersion
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	c.client = mcpClient
	return nil
}

func (c *Client) invoke(ctx context.Context, toolName, argsJSON string) (tool.Result, error) {
	var args map[string]any
	if strings.TrimSpace(argsJSON) != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return tool.Result{Output: fmt.Sprintf("mcp: invalid arguments: %v", err), IsError: true}, nil
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args

	c.mu.Lock()
	mcpClient := c.client
	c.mu.Unlock()
	if mcpClient == nil {
		return tool.Result{}, fmt.Errorf("mcp: %s: not connected", c.cfg.Name)
	}

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return tool.Result{}, fmt.Errorf("mcp: call %s: %w", toolName, err)
	}
	return contentResult(resp)
}

// contentResult flattens an MCP CallToolResult's content blocks into a
// tool.Result, walking the raw JSON-RPC payload with gjson rather than
// type-asserting through mcp-go's Content []any union by hand.
func contentResult(resp *mcp.CallToolResult) (tool.Result, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return tool.Result{}, fmt.Errorf("mcp: encode result: %w", err)
	}
	return contentResultFromJSON(raw), nil
}

func contentResultFromJSON(raw []byte) tool.Result {
	isError := gjson.GetBytes(raw, "isError").Bool()
	var texts []string
	for _, block := range gjson.GetBytes(raw, "content").Array() {
		if block.Get("type").String() == "text" {
			texts = append(texts, block.Get("text").String())
		}
	}
	return tool.Result{Output: strings.Join(texts, "\n"), IsError: isError}
}

// convertSchema reshapes an MCP tool's input schema into the map JSON
// Schema form pkg/tool.Tool.Schema expects, patching in a "type": "object"
// default via sjson when the server omits it rather than round-tripping
// through a typed struct to set one field.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	return convertSchemaJSON(raw)
}

func convertSchemaJSON(raw []byte) map[string]any {
	if !gjson.GetBytes(raw, "type").Exists() {
		if patched, err := sjson.SetBytes(raw, "type", "object"); err == nil {
			raw = patched
		}
	}
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return map[string]any{"type": "object"}
	}
	return result
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
