// Package server wires all components and creates the MCP server instance.
//
// This is the composition root (DIP): it creates concrete implementations
// and injects them into the tools/prompts/resources that depend on abstractions.
// No business logic lives here, only wiring.
package server

import (
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/changes"
	"github.com/HendryAvila/specchain/internal/ledger"
	"github.com/HendryAvila/specchain/internal/metrics"
	"github.com/HendryAvila/specchain/internal/prompts"
	"github.com/HendryAvila/specchain/internal/propagation"
	"github.com/HendryAvila/specchain/internal/resources"
	"github.com/HendryAvila/specchain/internal/staleness"
	"github.com/HendryAvila/specchain/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DefaultGitTimeout bounds each git invocation.
const DefaultGitTimeout = 10 * time.Second

// Options selects how the engine is assembled.
type Options struct {
	Logger *slog.Logger
	// GitTimeout defaults to DefaultGitTimeout when not positive.
	GitTimeout time.Duration
	// Ledger configures the audit ledger. A zero DataDir means
	// ledger.DefaultConfig().
	Ledger ledger.Config
	// DisableLedger skips the audit ledger entirely.
	DisableLedger bool
	// DisableCheckpoints skips the git checkpoint before propagation.
	DisableCheckpoints bool
	// Metrics, when set, observes transitions and validations.
	Metrics *metrics.Metrics
}

// Components is the assembled engine, shared by the MCP server and the CLI.
type Components struct {
	Store        changes.Store
	Orchestrator *propagation.Orchestrator
	Detector     *staleness.Detector
	// Ledger is nil when disabled or when it failed to open.
	Ledger  *ledger.Store
	Metrics *metrics.Metrics
}

// Wire assembles the engine. The ledger is an independent subsystem: if
// it fails to open, the engine works without it and a warning is logged.
//
// The returned cleanup function closes the ledger and must be called on
// shutdown. It is always non-nil.
func Wire(opts Options) (*Components, func()) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.GitTimeout
	if timeout <= 0 {
		timeout = DefaultGitTimeout
	}

	c := &Components{
		Store:    changes.NewFileStore(),
		Detector: staleness.NewDetector(staleness.GitOpener(timeout, logger), logger),
		Metrics:  opts.Metrics,
	}

	cleanup := noop
	if !opts.DisableLedger {
		cfg := opts.Ledger
		if cfg.DataDir == "" {
			cfg = ledger.DefaultConfig()
		}
		store, err := ledger.New(cfg, logger)
		if err != nil {
			logger.Warn("audit ledger disabled", "error", err)
		} else {
			c.Ledger = store
			cleanup = func() {
				if err := store.Close(); err != nil {
					logger.Warn("ledger close", "error", err)
				}
			}
		}
	}

	orchOpts := []propagation.Option{propagation.WithLogger(logger)}
	if !opts.DisableCheckpoints {
		orchOpts = append(orchOpts, propagation.WithCheckpoints(propagation.GitCheckpoints(timeout, logger)))
	}
	if c.Ledger != nil {
		orchOpts = append(orchOpts, propagation.WithObserver(c.Ledger))
	}
	if c.Metrics != nil {
		orchOpts = append(orchOpts, propagation.WithObserver(c.Metrics))
	}
	c.Orchestrator = propagation.New(c.Store, chain.NewLinker(c.Detector, logger), orchOpts...)

	return c, cleanup
}

// New creates and configures the MCP server with all tools, prompts,
// and resources registered.
//
// The returned cleanup function must be called on shutdown (typically via
// defer). It is always non-nil.
func New(opts Options) (*server.MCPServer, func()) {
	c, cleanup := Wire(opts)

	s := server.NewMCPServer(
		"specchain",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	validateTool := tools.NewValidateChainTool(c.Orchestrator)
	s.AddTool(validateTool.Definition(), validateTool.Handle)

	stalenessTool := tools.NewDetectStalenessTool(c.Detector)
	s.AddTool(stalenessTool.Definition(), stalenessTool.Handle)

	simulateTool := tools.NewSimulateImpactTool(c.Orchestrator)
	s.AddTool(simulateTool.Definition(), simulateTool.Handle)

	crTool := tools.NewManageChangeRequestTool(c.Orchestrator)
	s.AddTool(crTool.Definition(), crTool.Handle)

	// chain_history needs the ledger; without it the tool is not offered.
	if c.Ledger != nil {
		historyTool := tools.NewChainHistoryTool(c.Ledger)
		s.AddTool(historyTool.Definition(), historyTool.Handle)
	}

	// --- Register prompts ---

	propagatePrompt := prompts.NewPropagatePrompt()
	s.AddPrompt(propagatePrompt.Definition(), propagatePrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(c.Store)
	s.AddResource(resourceHandler.ChangeRequestsResource(), resourceHandler.HandleChangeRequests)

	return s, cleanup
}

// noop is the cleanup used when no ledger is open.
func noop() {}

func serverInstructions() string {
	return `You have access to specchain, a consistency and change-propagation engine
for chains of design documents (functions list → requirements → basic design →
detail design → test specs ...). Documents cross-reference each other through
identifiers such as REQ-001, SCR-003 or CLS-012.

## WHEN TO USE specchain

- After editing any chain document: run validate_chain to find orphaned ids
  (defined upstream, never referenced downstream) and missing ids (referenced
  downstream, never defined upstream).
- Before editing: run simulate_impact to see every section that cites the ids
  you are about to change.
- For any change that must reach other documents: use manage_change_request.
- When code moved faster than docs: run detect_staleness.

## CHANGE REQUEST LIFECYCLE

INITIATED → ANALYZING → IMPACT_ANALYZED → APPROVED → PROPAGATING → VALIDATED → COMPLETED
Any non-terminal status may go to CANCELLED.

1. create: origin_doc, description, changed_ids (or old_content + new_content)
2. analyze: computes impact and the propagation plan (needs config_path)
3. approve: records conflicts with other in-flight change requests
4. propagate_next: call once per step
   - UPSTREAM SUGGESTION steps are non-destructive; ask the user before editing
   - DOWNSTREAM CASCADE steps must be applied
5. validate: re-runs chain validation once every step is done
6. complete: closes the change request and appends a changelog row

Never skip statuses. Never edit files under workspace-docs/change-requests/
by hand; always go through manage_change_request.

## HISTORY

chain_history shows past transitions and validation runs when the audit
ledger is enabled.`
}
