package ledger

import (
	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/changes"
)

// OnTransition records the transition. This method is best-effort: save
// failures are logged and never reach the caller.
func (s *Store) OnTransition(cr *changes.ChangeRequest, from changes.Status, reason string) {
	if _, err := s.RecordEvent(cr, from, reason); err != nil {
		s.logger.Warn("ledger: transition not recorded", "cr", cr.ID, "to", cr.Status, "error", err)
	}
}

// OnChainValidated records a validation run, best-effort.
func (s *Store) OnChainValidated(configPath string, report *chain.Report) {
	if _, err := s.RecordRun(configPath, report); err != nil {
		s.logger.Warn("ledger: validation run not recorded", "config", configPath, "error", err)
	}
}
