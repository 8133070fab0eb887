// Package services – BillingService
//
// This file implements BillingService, which decides which payment-processor
// session a user needs: subscribed customers are routed to the self-serve
// billing portal, everyone else to a subscription checkout for the paid plan.
// The processor hosts both pages; this service only mints the redirect URL.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-docchat-backend/internal/billing"
	"github.com/tbourn/go-docchat-backend/internal/config"
	"github.com/tbourn/go-docchat-backend/internal/repo"
)

// BillingService mints checkout and billing-portal sessions.
type BillingService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Sessions is the payment-processor client.
	Sessions billing.SessionCreator
	// Plans supplies the paid plan's price id.
	Plans config.PlansConfig
	// ReturnURL is where the processor sends the user afterwards.
	ReturnURL string
}

// NewBillingService constructs a BillingService.
func NewBillingService(db *gorm.DB, sessions billing.SessionCreator, plans config.PlansConfig, returnURL string) *BillingService {
	return &BillingService{DB: db, Sessions: sessions, Plans: plans, ReturnURL: returnURL}
}

// Session returns the redirect URL appropriate for userID: the billing
// portal when an active subscription with a known customer id exists, a new
// subscription checkout otherwise. The user row is created on first contact.
func (s *BillingService) Session(ctx context.Context, userID string) (string, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "Session",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	u, err := repo.EnsureUser(ctx, s.DB, userID)
	if err != nil {
		return "", err
	}

	if u.IsSubscribed(time.Now().UTC()) && u.StripeCustomerID != "" {
		return s.Sessions.CreateBillingPortalSession(ctx, u.StripeCustomerID, s.ReturnURL)
	}

	if s.Plans.Pro.PriceID == "" {
		return "", ErrNoPriceConfigured
	}
	return s.Sessions.CreateCheckoutSession(ctx, billing.CheckoutParams{
		PriceID:    s.Plans.Pro.PriceID,
		SuccessURL: s.ReturnURL,
		CancelURL:  s.ReturnURL,
		UserID:     userID,
	})
}

// PlanInfo describes the plan currently governing a user.
type PlanInfo struct {
	Plan       config.Plan
	Subscribed bool
}

// Plan resolves the plan currently governing userID. Users without a row or
// without an active subscription are on the free tier.
func (s *BillingService) Plan(ctx context.Context, userID string) (PlanInfo, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "Plan",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return PlanInfo{Plan: s.Plans.Free}, nil
		}
		return PlanInfo{}, err
	}
	if u.IsSubscribed(time.Now().UTC()) {
		return PlanInfo{Plan: s.Plans.Pro, Subscribed: true}, nil
	}
	return PlanInfo{Plan: s.Plans.Free}, nil
}
