// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-docchat-backend/internal/domain"
)

// GetUser fetches a user by ID. Returns ErrNotFound when absent.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureUser fetches the user row for id, creating an empty one when it does
// not exist yet. The auth boundary guarantees the identity; the row only
// carries billing state.
func EnsureUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	u, err := GetUser(ctx, db, id)
	if err == nil {
		return u, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	u = &domain.User{ID: id, CreatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateStripeCustomerID records the payment-processor customer id minted
// for the user during their first checkout.
func UpdateStripeCustomerID(ctx context.Context, db *gorm.DB, id, customerID string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("stripe_customer_id", customerID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
