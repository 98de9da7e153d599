package repository

import (
	"context"

	"github.com/smallbiznis/contractdesk/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm-backed store for simple filtered reads and
// writes. Multi-record invariants live in the domain repositories instead.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
