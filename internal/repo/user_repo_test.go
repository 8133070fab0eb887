package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-docchat-backend/internal/domain"
	"gorm.io/gorm"
)

func TestEnsureUser_CreatesOnFirstContact(t *testing.T) {
	db := newRepoDB(t, &domain.User{})
	ctx := context.Background()

	u, err := EnsureUser(ctx, db, "u1")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u.ID != "u1" || u.StripeCustomerID != "" {
		t.Fatalf("unexpected user: %+v", u)
	}

	// Second call returns the same row.
	again, err := EnsureUser(ctx, db, "u1")
	if err != nil || again.ID != "u1" {
		t.Fatalf("EnsureUser again: user=%+v err=%v", again, err)
	}
	var n int64
	db.Model(&domain.User{}).Count(&n)
	if n != 1 {
		t.Fatalf("user rows = %d, want 1", n)
	}
}

func TestGetUser_Missing(t *testing.T) {
	db := newRepoDB(t, &domain.User{})
	if _, err := GetUser(context.Background(), db, "ghost"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("want ErrRecordNotFound, got %v", err)
	}
}

func TestUpdateStripeCustomerID(t *testing.T) {
	db := newRepoDB(t, &domain.User{})
	ctx := context.Background()
	if _, err := EnsureUser(ctx, db, "u1"); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}

	if err := UpdateStripeCustomerID(ctx, db, "u1", "cus_123"); err != nil {
		t.Fatalf("UpdateStripeCustomerID: %v", err)
	}
	u, err := GetUser(ctx, db, "u1")
	if err != nil || u.StripeCustomerID != "cus_123" {
		t.Fatalf("customer id not persisted: user=%+v err=%v", u, err)
	}

	if err := UpdateStripeCustomerID(ctx, db, "ghost", "cus_x"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("missing user: want ErrRecordNotFound, got %v", err)
	}
}

func TestUserIsSubscribed(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var nilUser *domain.User
	if nilUser.IsSubscribed(now) {
		t.Fatalf("nil user must not be subscribed")
	}

	u := &domain.User{}
	if u.IsSubscribed(now) {
		t.Fatalf("empty user must not be subscribed")
	}

	end := now.Add(24 * time.Hour)
	u = &domain.User{StripeSubscriptionID: "sub_1", StripeCurrentPeriodEnd: &end}
	if !u.IsSubscribed(now) {
		t.Fatalf("active subscription not recognized")
	}

	// Within the grace window after period end.
	past := now.Add(-domain.SubscriptionGrace + time.Hour)
	u.StripeCurrentPeriodEnd = &past
	if !u.IsSubscribed(now) {
		t.Fatalf("grace window not honored")
	}

	// Beyond the grace window.
	expired := now.Add(-domain.SubscriptionGrace - time.Hour)
	u.StripeCurrentPeriodEnd = &expired
	if u.IsSubscribed(now) {
		t.Fatalf("expired subscription still active")
	}
}
