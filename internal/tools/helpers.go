// Package tools implements MCP tool handlers for document chains and
// change requests.
//
// Each tool is a struct that receives its dependencies via the constructor
// (DIP) and exposes Definition() and Handle() for registration with mcp-go.
//
// Design principles:
// - SRP: each file = one tool
// - DIP: tools depend on interfaces (Engine, History), not concretions
// - OCP: new tools are added without modifying existing ones
//
// Tools carry no business logic: they parse arguments, call the engine and
// render markdown.
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/config"
	"github.com/HendryAvila/specchain/internal/propagation"
)

// Engine is the change-propagation engine the tools drive.
// *propagation.Orchestrator satisfies it.
type Engine interface {
	Dispatch(ctx context.Context, req propagation.Request) (*propagation.Result, error)
	ValidateChain(ctx context.Context, workspaceRoot, configPath string) (*chain.Report, error)
}

// findProjectRoot walks up from the current working directory looking
// for a specchain.yaml. If none is found, returns cwd.
// This allows tools to work from any subdirectory of the project.
func findProjectRoot() (string, error) {
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
			// Reached filesystem root; the caller decides what to do.
			return dir, nil
		}
		current = parent
	}
}

// resolveConfig returns the project root and the configuration path a
// tool should use. An empty path means the specchain.yaml found by
// findProjectRoot; a relative one resolves against that root.
func resolveConfig(configPath string) (root, path string, err error) {
	root, err = findProjectRoot()
	if err != nil {
		return "", "", err
	}
	if configPath == "" {
		configPath = config.DefaultFileName
	}
	if filepath.IsAbs(configPath) {
		return filepath.Dir(configPath), configPath, nil
	}
	return root, filepath.Join(root, configPath), nil
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// listArg extracts a list of strings. Hosts send either a JSON array or a
// comma-separated string; both are accepted. Blank items are dropped.
func listArg(req mcp.CallToolRequest, key string) []string {
	var raw []string
	switch v := req.GetArguments()[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = v
	case string:
		raw = strings.Split(v, ",")
	}

	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// engineError turns user errors into tool results and passes internal
// failures through as Go errors.
func engineError(err error) (*mcp.CallToolResult, error) {
	if propagation.IsUserError(err) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}
