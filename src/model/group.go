package model

import "time"

// Group bundles a source brokerage account with member accounts so one
// source instruction can be replicated across all members.
type Group struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	UserID          uint          `gorm:"index" json:"user_id"`
	Name            string        `gorm:"size:60;not null" json:"name"`
	SourceAccountID string        `gorm:"size:60;not null" json:"source_account_id"`
	Members         []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// TableName allows you to control the exact table name for groups.
func (Group) TableName() string {
	return "copy_groups"
}

// GroupMember is one replicated-to account. Multiplier scales the source
// quantity for this member.
type GroupMember struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	GroupID    uint    `gorm:"index" json:"group_id"`
	AccountID  string  `gorm:"size:60;not null" json:"account_id"`
	Multiplier float64 `gorm:"not null;default:1" json:"multiplier"`
}

// TableName allows you to control the exact table name for group members.
func (GroupMember) TableName() string {
	return "copy_group_members"
}
