// Package option holds composable gorm query options used by the generic
// repository.
package option

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/contractdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

type Operator string

const (
	EQ   Operator = "="
	NEQ  Operator = "<>"
	GT   Operator = ">"
	GTE  Operator = ">="
	LT   Operator = "<"
	LTE  Operator = "<="
	IN   Operator = "IN"
	LIKE Operator = "LIKE"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator filters on a single column. Field names come from code, never
// from callers.
func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		switch cond.Operator {
		case IN:
			return db.Where(fmt.Sprintf("%s IN ?", cond.Field), cond.Value)
		default:
			return db.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
		}
	})
}

// WithSearch matches term case-insensitively against any of fields.
func WithSearch(term string, fields ...string) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		term = strings.TrimSpace(term)
		if term == "" || len(fields) == 0 {
			return db
		}
		pattern := "%" + strings.ToLower(term) + "%"
		clauses := make([]string, 0, len(fields))
		args := make([]any, 0, len(fields))
		for _, field := range fields {
			clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE ?", field))
			args = append(args, pattern)
		}
		return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	})
}

type SortBy struct {
	Field     string
	Direction string
}

// WithQuerySortBy validates field against allowed and normalizes direction.
func WithQuerySortBy(field, direction string, allowed map[string]bool) SortBy {
	if !allowed[field] {
		field = "created_at"
	}
	direction = strings.ToLower(strings.TrimSpace(direction))
	if direction != "asc" {
		direction = "desc"
	}
	return SortBy{Field: field, Direction: direction}
}

func WithSortBy(sort SortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order(fmt.Sprintf("%s %s", sort.Field, sort.Direction)).Order("id " + sort.Direction)
	})
}

// ApplyPagination applies a keyset cursor over (created_at, id) descending and
// fetches one extra row so callers can tell whether more pages exist.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := p.PageSize
		if size <= 0 {
			size = 50
		}
		if strings.TrimSpace(p.PageToken) != "" {
			cursor, err := pagination.DecodeCursor(p.PageToken)
			if err == nil {
				createdAt, perr := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
				id, ierr := strconv.ParseInt(cursor.ID, 10, 64)
				if perr == nil && ierr == nil {
					db = db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
				}
			}
		}
		return db.Limit(size + 1)
	})
}
