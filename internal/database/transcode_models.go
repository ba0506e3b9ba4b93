package database

import (
	"time"

	"gorm.io/gorm"

	"github.com/mantonx/streamgate/internal/utils"
)

// LedgerEvent names a session lifecycle transition recorded to the
// session ledger.
type LedgerEvent string

const (
	EventCreated  LedgerEvent = "created"
	EventStarted  LedgerEvent = "started"
	EventFallback LedgerEvent = "fallback"
	EventStopped  LedgerEvent = "stopped"
	EventEvicted  LedgerEvent = "evicted"
	EventFailed   LedgerEvent = "failed"
)

// SessionLedgerEntry is a single best-effort audit row. It is written
// asynchronously by the engine and read only by the /stats endpoint;
// nothing on the request hot path depends on it existing. The ID is a
// generated UUID rather than an auto-increment integer so rows written
// by concurrent goroutines never contend on a sequence.
type SessionLedgerEntry struct {
	ID        string      `gorm:"primaryKey;type:varchar(36)"`
	SessionID string      `gorm:"index;type:varchar(128);not null"`
	Event     LedgerEvent `gorm:"type:varchar(32);not null"`
	Mode      string      `gorm:"type:varchar(32)"`
	SourceURL string      `gorm:"type:varchar(2048)"`
	Detail    string      `gorm:"type:varchar(512)"`
	CreatedAt time.Time   `gorm:"index"`
}

// BeforeCreate assigns a UUID primary key if one hasn't already been
// set.
func (e *SessionLedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.NewUUID()
	}
	return nil
}

func (SessionLedgerEntry) TableName() string {
	return "session_ledger_entries"
}
