// Package resources implements MCP resource handlers for change requests.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (specchain://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/specchain/internal/changes"
	"github.com/HendryAvila/specchain/internal/config"
)

// ChangeRequestsURI addresses the change request list.
const ChangeRequestsURI = "specchain://change-requests"

// Handler manages specchain resource endpoints.
type Handler struct {
	store changes.Store
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store changes.Store) *Handler {
	return &Handler{store: store}
}

// ChangeRequestsResource returns the MCP resource definition for the
// change request list.
func (h *Handler) ChangeRequestsResource() mcp.Resource {
	return mcp.NewResource(
		ChangeRequestsURI,
		"Change Requests",
		mcp.WithResourceDescription("Every change request of the project with its status and propagation steps"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleChangeRequests returns the change requests of the current project
// as JSON.
func (h *Handler) HandleChangeRequests(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	root, err := findRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	list, err := h.store.List(root)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling change requests: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}

// findRoot walks up from cwd looking for specchain.yaml, falling back
// to cwd.
func findRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		if config.Exists(filepath.Join(current, config.DefaultFileName)) {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return dir, nil
		}
		current = parent
	}
}
