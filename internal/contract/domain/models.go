package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/contractdesk/internal/audit/domain"
	"github.com/smallbiznis/contractdesk/internal/clock"
	"github.com/smallbiznis/contractdesk/internal/lifecycle"
	"gorm.io/datatypes"
)

type Status = lifecycle.Status

const (
	StatusDraft    = lifecycle.Draft
	StatusActive   = lifecycle.Active
	StatusEnded    = lifecycle.Ended
	StatusArchived = lifecycle.Archived
)

// Attachment is the metadata of a stored contract file.
type Attachment struct {
	ID          string       `json:"id"`
	FileName    string       `json:"file_name"`
	StorageKey  string       `json:"storage_key"`
	ContentType string       `json:"content_type,omitempty"`
	Size        int64        `json:"size"`
	UploadedAt  time.Time    `json:"uploaded_at"`
	UploadedBy  snowflake.ID `json:"uploaded_by"`
}

type Contract struct {
	ID                     snowflake.ID                    `gorm:"primaryKey" json:"id"`
	BeraterID              snowflake.ID                    `gorm:"not null;uniqueIndex:ux_contracts_berater_number,priority:1" json:"berater_id"`
	ContractNumber         string                          `gorm:"type:varchar(64);not null;uniqueIndex:ux_contracts_berater_number,priority:2" json:"contract_number"`
	CustomerID             snowflake.ID                    `gorm:"not null;index" json:"customer_id"`
	MeterID                snowflake.ID                    `gorm:"not null;index" json:"meter_id"`
	SupplierID             *snowflake.ID                   `json:"supplier_id,omitempty"`
	SupplierContractNumber string                          `json:"supplier_contract_number,omitempty"`
	StartDate              time.Time                       `gorm:"not null" json:"start_date"`
	DurationMonths         int                             `gorm:"not null" json:"duration_months"`
	EndDate                time.Time                       `gorm:"not null" json:"end_date"`
	Status                 Status                          `gorm:"type:varchar(16);not null;index" json:"status"`
	Notes                  string                          `json:"notes,omitempty"`
	Attachments            datatypes.JSONSlice[Attachment] `json:"attachments"`
	CreatedBy              snowflake.ID                    `gorm:"not null" json:"created_by"`
	CreatedAt              time.Time                       `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time                       `gorm:"not null" json:"updated_at"`

	AuditLog []auditdomain.AuditLog `gorm:"-" json:"audit_log,omitempty"`
}

func (Contract) TableName() string { return "contracts" }

func (c Contract) IsActive() bool { return c.Status == StatusActive }

// ComputeEndDate adds months to start, clamping to the last day of the month.
func ComputeEndDate(start time.Time, months int) time.Time {
	return clock.AddMonths(clock.Date(start), months)
}

// EndsBefore reports whether the contract's end date lies before day.
func (c Contract) EndsBefore(day time.Time) bool {
	return clock.Date(c.EndDate).Before(clock.Date(day))
}
