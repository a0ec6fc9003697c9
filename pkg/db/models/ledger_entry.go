package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/agrimandi/agrimarket-backend/pkg/enums"
)

// Entry statuses. Posted entries are the canonical money movement; memo
// entries mirror a movement into the counterparty's ledger view and carry no
// balance weight. Corrections are new compensating entries, never edits.
const (
	LedgerEntryStatusPosted = "posted"
	LedgerEntryStatusMemo   = "memo"
)

// LedgerEntry records an immutable value movement between two parties.
type LedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FromPartyID uuid.UUID             `gorm:"column:from_party_id;type:uuid;not null"`
	ToPartyID   uuid.UUID             `gorm:"column:to_party_id;type:uuid;not null"`
	AmountCents int64                 `gorm:"column:amount_cents;not null"`
	Kind        enums.LedgerEntryKind `gorm:"column:kind;type:ledger_entry_kind;not null"`
	RelatedID   uuid.UUID             `gorm:"column:related_id;type:uuid;not null"`
	Status      string                `gorm:"column:status;not null;default:'posted'"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
