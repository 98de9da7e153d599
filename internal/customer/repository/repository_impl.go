package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/customer/domain"
	"github.com/smallbiznis/contractdesk/pkg/db/option"
	"github.com/smallbiznis/contractdesk/pkg/db/pagination"
	"github.com/smallbiznis/contractdesk/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (id, berater_id, name, email, phone, address, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.ID,
		customer.BeraterID,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.Address,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET name = ?, email = ?, phone = ?, address = ?, updated_at = ?
		 WHERE berater_id = ? AND id = ?`,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.Address,
		customer.UpdatedAt,
		customer.BeraterID,
		customer.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, beraterID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, berater_id, name, email, phone, address, created_at, updated_at
		 FROM customers WHERE berater_id = ? AND id = ?`,
		beraterID,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, beraterID snowflake.ID, search string, page pagination.Pagination) ([]*domain.Customer, error) {
	store := repository.ProvideStore[domain.Customer](db)
	return store.Find(ctx, &domain.Customer{BeraterID: beraterID},
		option.WithSearch(search, "name", "email"),
		option.WithSortBy(option.SortBy{Field: "created_at", Direction: "desc"}),
		option.ApplyPagination(page),
	)
}
