package model

import (
	"strings"
	"time"
)

const BrokerDhan = "dhan"

// Account is one stored brokerage account row. The credential store (an
// external collaborator) owns writes to Creds; this service only reads it.
type Account struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"index" json:"user_id"`
	Broker      string `gorm:"size:20;not null;default:dhan" json:"broker"`
	AccountID   string `gorm:"size:60;index;not null" json:"account_id"`
	DisplayName string `gorm:"size:120" json:"display_name"`
	Capital     float64 `json:"capital"`
	// Creds holds the broker credential blob as written by the credential
	// store, including the current session token. Kept opaque here so a
	// token refresh never requires a schema change.
	Creds     string    `gorm:"type:text" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName allows you to control the exact table name for accounts.
func (Account) TableName() string {
	return "accounts"
}

// AccountConnection is the resolved, read-only snapshot of one brokerage
// account used by a single operation. It is rebuilt from the registry at the
// start of every operation so out-of-band token refreshes are picked up.
type AccountConnection struct {
	AccountID       string
	DisplayName     string
	SessionToken    string
	CapitalBaseline float64
}

// HasToken reports whether the connection carries a usable session token.
// Token-less accounts are skipped by reads and rejected by writes.
func (c AccountConnection) HasToken() bool {
	return strings.TrimSpace(c.SessionToken) != ""
}

// User identifies the authenticated caller. Authentication itself is owned
// by an external collaborator; this service only consumes the identity.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"size:60;uniqueIndex" json:"username"`
}
