package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type MeterType string

const (
	MeterTypeElectricity MeterType = "electricity"
	MeterTypeGas         MeterType = "gas"
	MeterTypeWater       MeterType = "water"
	MeterTypeHeat        MeterType = "heat"
)

// Meter is a physical supply point. CurrentCustomerID is owned by the
// occupancy coordinator and mirrors the customer of the active contract.
type Meter struct {
	ID                snowflake.ID  `json:"id" gorm:"primaryKey"`
	BeraterID         snowflake.ID  `json:"berater_id" gorm:"not null;index"`
	MeterNumber       string        `json:"meter_number" gorm:"type:text;not null;uniqueIndex:ux_meters_meter_number"`
	MeterType         MeterType     `json:"meter_type" gorm:"type:text;not null"`
	Location          string        `json:"location,omitempty" gorm:"type:text"`
	CurrentCustomerID *snowflake.ID `json:"current_customer_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time     `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Meter) TableName() string { return "meters" }

// OccupiedBy reports whether the meter is currently held by customerID.
func (m Meter) OccupiedBy(customerID snowflake.ID) bool {
	return m.CurrentCustomerID != nil && *m.CurrentCustomerID == customerID
}
