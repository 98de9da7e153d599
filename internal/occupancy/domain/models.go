package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// MeterHistory is one occupancy interval of a meter. Rows are append-only;
// EndDate is set once when the occupancy closes.
type MeterHistory struct {
	ID         snowflake.ID  `json:"id" gorm:"primaryKey"`
	MeterID    snowflake.ID  `json:"meter_id" gorm:"not null;index"`
	BeraterID  snowflake.ID  `json:"berater_id" gorm:"not null;index"`
	CustomerID snowflake.ID  `json:"customer_id" gorm:"not null"`
	ContractID *snowflake.ID `json:"contract_id,omitempty" gorm:"index"`
	StartDate  time.Time     `json:"start_date" gorm:"not null"`
	EndDate    *time.Time    `json:"end_date,omitempty"`
	CreatedAt  time.Time     `json:"created_at" gorm:"not null"`
}

func (MeterHistory) TableName() string { return "meter_histories" }

func (h MeterHistory) Open() bool { return h.EndDate == nil }

func (h MeterHistory) Interval() Interval {
	return Interval{Start: h.StartDate, End: h.EndDate}
}

// BelongsTo reports whether the entry was opened for contractID.
func (h MeterHistory) BelongsTo(contractID snowflake.ID) bool {
	return contractID != 0 && h.ContractID != nil && *h.ContractID == contractID
}

// Interval is a closed date range. A nil End extends to infinity.
type Interval struct {
	Start time.Time
	End   *time.Time
}

// Assignment is the occupancy-relevant view of a contract.
type Assignment struct {
	ContractID snowflake.ID
	BeraterID  snowflake.ID
	MeterID    snowflake.ID
	CustomerID snowflake.ID
	StartDate  time.Time
	EndDate    *time.Time
}

type OpenAssignmentRequest struct {
	MeterID    snowflake.ID
	BeraterID  snowflake.ID
	CustomerID snowflake.ID
	ContractID *snowflake.ID
	StartDate  time.Time
}
