package enums

import "fmt"

// PartyRole maps to the party_role enum in Postgres.
type PartyRole string

const (
	PartyRoleBuyer       PartyRole = "buyer"
	PartyRoleSeller      PartyRole = "seller"
	PartyRoleLogistics   PartyRole = "logistics"
	PartyRoleColdStorage PartyRole = "coldstorage"
	PartyRoleInsurance   PartyRole = "insurance"
	PartyRoleAdmin       PartyRole = "admin"
	PartyRoleDriver      PartyRole = "driver"
)

var validPartyRoles = []PartyRole{
	PartyRoleBuyer,
	PartyRoleSeller,
	PartyRoleLogistics,
	PartyRoleColdStorage,
	PartyRoleInsurance,
	PartyRoleAdmin,
	PartyRoleDriver,
}

// IsValid reports whether the value matches the canonical party role enum.
func (r PartyRole) IsValid() bool {
	for _, candidate := range validPartyRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParsePartyRole converts raw input into PartyRole.
func ParsePartyRole(value string) (PartyRole, error) {
	for _, candidate := range validPartyRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid party role %q", value)
}
