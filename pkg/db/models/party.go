package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrimandi/agrimarket-backend/pkg/enums"
)

// ReservedAgentPoolRef is the well-known external ref of the insurance pool
// party that stands in when no agent resolves. Modeling the fallback as a real
// party keeps every ledger entry anchored to two existing parties.
const ReservedAgentPoolRef = "agent-pool"

// ReservedTreasuryRef is the external ref of the treasury party that top-up
// funds are sourced from, so fund additions stay double-entry.
const ReservedTreasuryRef = "treasury"

// Party is any balance-holding participant: buyer, seller, carrier,
// cold-storage operator, insurance agent, admin or driver.
type Party struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalRef  string          `gorm:"column:external_ref;uniqueIndex;not null"`
	Name         string          `gorm:"column:name;not null"`
	Email        string          `gorm:"column:email;uniqueIndex;not null"`
	Role         enums.PartyRole `gorm:"column:role;type:party_role;not null"`
	BalanceCents int64           `gorm:"column:balance_cents;not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
