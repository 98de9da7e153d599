package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Reminder is a dated note attached to a contract, e.g. a notice deadline.
type Reminder struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	BeraterID  snowflake.ID `gorm:"not null;index" json:"berater_id"`
	ContractID snowflake.ID `gorm:"not null;index" json:"contract_id"`
	DueAt      time.Time    `gorm:"not null" json:"due_at"`
	Note       string       `json:"note,omitempty"`
	CreatedBy  snowflake.ID `json:"created_by"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (Reminder) TableName() string { return "reminders" }
