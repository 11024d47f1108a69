package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultRequestTimeout = 120 * time.Second

// HTTPAgentClient talks to the agent service over its JSON HTTP API.
type HTTPAgentClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPAgentClient creates a client for the agent service at baseURL.
func NewHTTPAgentClient(logger *slog.Logger, baseURL string) *HTTPAgentClient {
	return &HTTPAgentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
		logger:  logger.With("module", "collaborator"),
	}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
}

type chatResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Chat sends a message without pinning an agent.
func (c *HTTPAgentClient) Chat(ctx context.Context, message, sessionID string) (string, error) {
	return c.send(ctx, chatRequest{Message: message, SessionID: sessionID})
}

// ChatWithAgent sends a message to the named agent.
func (c *HTTPAgentClient) ChatWithAgent(ctx context.Context, agentID, message, sessionID string) (string, error) {
	return c.send(ctx, chatRequest{Message: message, SessionID: sessionID, AgentID: agentID})
}

func (c *HTTPAgentClient) send(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent service request failed: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read agent response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("agent service returned status %d: %s", resp.StatusCode, data)
	}

	var parsed chatResponse

	err = json.Unmarshal(data, &parsed)
	if err != nil {
		return "", fmt.Errorf("failed to decode agent response: %w", err)
	}

	if parsed.Error != "" {
		return "", fmt.Errorf("agent service error: %s", parsed.Error)
	}

	return parsed.Response, nil
}

// HTTPToolExecutor invokes tools through the tool service HTTP API.
type HTTPToolExecutor struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPToolExecutor creates an executor for the tool service at baseURL.
func NewHTTPToolExecutor(logger *slog.Logger, baseURL string) *HTTPToolExecutor {
	return &HTTPToolExecutor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
		logger:  logger.With("module", "collaborator"),
	}
}

type toolRequest struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ExecuteTool runs the named tool. A failed invocation comes back as a
// ToolResult with Success false; err is reserved for transport failures.
func (e *HTTPToolExecutor) ExecuteTool(ctx context.Context, toolName string, parameters map[string]any) (*ToolResult, error) {
	started := time.Now()

	body, err := json.Marshal(toolRequest{Tool: toolName, Parameters: parameters})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/tools/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build tool request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tool service request failed: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			e.logger.Error("failed to close response body", "error", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool response: %w", err)
	}

	result := &ToolResult{ExecutionTimeMs: time.Since(started).Milliseconds()}

	if resp.StatusCode != http.StatusOK {
		result.Success = false
		result.Error = fmt.Sprintf("tool service returned status %d: %s", resp.StatusCode, data)

		return result, nil
	}

	err = json.Unmarshal(data, result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tool response: %w", err)
	}

	if result.ExecutionTimeMs == 0 {
		result.ExecutionTimeMs = time.Since(started).Milliseconds()
	}

	return result, nil
}

// HTTPToolCatalog lists tools from an MCP server's HTTP listing endpoint.
type HTTPToolCatalog struct {
	serverID string
	baseURL  string
	client   *http.Client
}

// NewHTTPToolCatalog creates a catalog for the MCP server at baseURL.
func NewHTTPToolCatalog(serverID, baseURL string) *HTTPToolCatalog {
	return &HTTPToolCatalog{
		serverID: serverID,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// ListTools fetches the server's tool listing, stamping each descriptor
// with the server id.
func (c *HTTPToolCatalog) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tool listing request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tool listing request failed: %w", err)
	}

	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tool listing returned status %d", resp.StatusCode)
	}

	var listing struct {
		Tools []ToolDescriptor `json:"tools"`
	}

	err = json.NewDecoder(resp.Body).Decode(&listing)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tool listing: %w", err)
	}

	for i := range listing.Tools {
		listing.Tools[i].ServerID = c.serverID
	}

	return listing.Tools, nil
}
