package database

import (
	"github.com/hashicorp/go-hclog"
)

// Ledger records session lifecycle events without ever blocking or
// failing the caller — a nil Ledger (no database connected) is a
// valid, inert no-op.
type Ledger struct {
	logger hclog.Logger
}

// NewLedger wraps the connected DB, if any, for async writes.
func NewLedger(logger hclog.Logger) *Ledger {
	return &Ledger{logger: logger}
}

// Record appends an entry in the background. Failures are logged at
// Warn and otherwise swallowed.
func (l *Ledger) Record(sessionID string, event LedgerEvent, mode, sourceURL, detail string) {
	conn := DB()
	if conn == nil {
		return
	}
	entry := SessionLedgerEntry{
		SessionID: sessionID,
		Event:     event,
		Mode:      mode,
		SourceURL: sourceURL,
		Detail:    detail,
	}
	go func() {
		if err := conn.Create(&entry).Error; err != nil && l.logger != nil {
			l.logger.Warn("failed to write session ledger entry", "session", sessionID, "event", event, "error", err)
		}
	}()
}

// Totals returns per-event counts for the /stats endpoint. Returns an
// empty map, not an error, if the ledger is disabled.
func (l *Ledger) Totals() map[LedgerEvent]int64 {
	result := map[LedgerEvent]int64{}
	conn := DB()
	if conn == nil {
		return result
	}

	var rows []struct {
		Event LedgerEvent
		Count int64
	}
	if err := conn.Model(&SessionLedgerEntry{}).
		Select("event, count(*) as count").
		Group("event").
		Scan(&rows).Error; err != nil {
		if l.logger != nil {
			l.logger.Warn("failed to read ledger totals", "error", err)
		}
		return result
	}
	for _, r := range rows {
		result[r.Event] = r.Count
	}
	return result
}
