package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleMaster     = "master"
	RoleUser       = "user"
)

// AccountStatusActive marks a user that receives analysis snapshots.
const AccountStatusActive = 1

// Account is one node of the superadmin -> admin -> master -> user tree.
type Account struct {
	ID       string `gorm:"type:varchar(64);primaryKey" json:"id"`
	Role     string `gorm:"type:varchar(16);not null;index:idx_accounts_role_parent,priority:1" json:"role"`
	ParentID string `gorm:"type:varchar(64);index:idx_accounts_role_parent,priority:2" json:"parent_id"`

	Name   string `gorm:"type:varchar(200)" json:"name"`
	Email  string `gorm:"type:varchar(200)" json:"email"`
	Status int    `gorm:"not null;default:1" json:"status"`

	Balance decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"balance"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// IsOwnerRole reports whether role names one of the three owner tiers.
func IsOwnerRole(role string) bool {
	switch role {
	case RoleSuperadmin, RoleAdmin, RoleMaster:
		return true
	default:
		return false
	}
}
