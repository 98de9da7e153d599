package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/bwmarrin/snowflake"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	"gorm.io/gorm"
)

// ContractCounter holds the last issued sequence value of a scope. Rows are
// created by the first increment and never deleted.
type ContractCounter struct {
	Scope     string    `gorm:"primaryKey;type:varchar(64)"`
	Value     int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ContractCounter) TableName() string { return "contract_counters" }

// Scope selects the counter a number is drawn from.
type Scope struct {
	BeraterID snowflake.ID
	Prefix    string
	Year      int
	Legacy    bool
	Padding   int
}

// Key is the counter row key: "<berater>:<year>", or "<berater>" for the
// legacy format which never resets.
func (s Scope) Key() string {
	if s.Legacy {
		return s.BeraterID.String()
	}
	return s.BeraterID.String() + ":" + strconv.Itoa(s.Year)
}

func (s Scope) Validate() error {
	if s.BeraterID == 0 {
		return ErrInvalidScope
	}
	if !s.Legacy && (s.Year < 1000 || s.Year > 9999) {
		return ErrInvalidScope
	}
	return nil
}

// Counter atomically increments and returns the value of a scope.
type Counter interface {
	Increment(ctx context.Context, db *gorm.DB, scope Scope) (int64, error)
}

// ExistsFunc reports whether a formatted number is already taken.
type ExistsFunc func(ctx context.Context, number string) (bool, error)

const DefaultPrefix = "V"

// NormalizePrefix keeps upper-case ASCII letters and digits.
func NormalizePrefix(prefix string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(prefix) {
		if r > unicode.MaxASCII {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return DefaultPrefix
	}
	return b.String()
}

// Format renders "<PREFIX>-<YEAR>-<seq>" with seq zero-padded, or the legacy
// "<PREFIX><seq>".
func Format(scope Scope, seq int64) string {
	prefix := NormalizePrefix(scope.Prefix)
	if scope.Legacy {
		return fmt.Sprintf("%s%d", prefix, seq)
	}
	padding := scope.Padding
	if padding <= 0 {
		padding = 4
	}
	return fmt.Sprintf("%s-%d-%0*d", prefix, scope.Year, padding, seq)
}

// Fallback suffixes a colliding number with a millisecond timestamp.
func Fallback(number string, at time.Time) string {
	return fmt.Sprintf("%s-%d", number, at.UnixMilli())
}

var (
	ErrSequenceExhausted = ierr.Sentinel("sequence_exhausted", ierr.ErrSystem)
	ErrInvalidScope      = ierr.Sentinel("invalid_sequence_scope", ierr.ErrValidation)
)
