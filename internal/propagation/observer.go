package propagation

import (
	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/changes"
)

// Observer is notified after the orchestrator persists a change. It's an
// optional dependency: the orchestrator works fine without observers.
//
// Implementations must not block and must not fail the caller. Errors are
// theirs to log.
type Observer interface {
	// OnTransition is called after cr moved from `from` to cr.Status and
	// the record was written.
	OnTransition(cr *changes.ChangeRequest, from changes.Status, reason string)
	// OnChainValidated is called after a chain validation run.
	OnChainValidated(configPath string, report *chain.Report)
}

// observers fans one event out to every registered observer. Nil entries
// are skipped.
type observers []Observer

func (obs observers) transition(cr *changes.ChangeRequest, from changes.Status, reason string) {
	for _, o := range obs {
		if o != nil {
			o.OnTransition(cr, from, reason)
		}
	}
}

func (obs observers) chainValidated(configPath string, report *chain.Report) {
	for _, o := range obs {
		if o != nil {
			o.OnChainValidated(configPath, report)
		}
	}
}
