// Billing HTTP handlers.
//
// This file exposes the subscription endpoints:
//   - POST /billing/session   (mint a checkout or portal redirect URL)
//   - GET  /billing/plan      (current plan and its ceilings)
//
// The payment processor hosts the actual pages; these endpoints only return
// redirect URLs and plan metadata.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-docchat-backend/internal/services"
)

//
// DTOs
//

// BillingSessionResponse carries the processor-hosted redirect URL.
type BillingSessionResponse struct {
	URL string `json:"url" example:"https://checkout.stripe.com/c/pay/cs_test_..."`
}

// PlanResponse describes the plan currently governing the user.
type PlanResponse struct {
	Name           string `json:"name" example:"Pro"`
	Slug           string `json:"slug" example:"pro"`
	Subscribed     bool   `json:"subscribed"`
	PagesPerPDF    int    `json:"pages_per_pdf" example:"25"`
	MaxUploadBytes int64  `json:"max_upload_bytes" example:"16777216"`
}

//
// Handlers
//

// CreateBillingSession godoc
// @ID          createBillingSession
// @Summary     Start a billing session
// @Description Returns the billing-portal URL for subscribed users, or a subscription checkout URL otherwise.
// @Tags        Billing
// @Produce     json
//
// @Success     200  {object}  handlers.BillingSessionResponse
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse "Billing failed"
// @Router      /billing/session [post]
func (h *Handlers) CreateBillingSession(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}

	url, err := h.billSvc.Session(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, services.ErrNoPriceConfigured) {
			fail(c, http.StatusInternalServerError, ErrCodeBillingFailed, "no price configured for plan")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeBillingFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, BillingSessionResponse{URL: url})
}

// GetPlan godoc
// @ID          getPlan
// @Summary     Current plan
// @Description Returns the plan governing the user together with its upload ceilings.
// @Tags        Billing
// @Produce     json
//
// @Success     200  {object}  handlers.PlanResponse
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /billing/plan [get]
func (h *Handlers) GetPlan(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}

	info, err := h.billSvc.Plan(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, PlanResponse{
		Name:           info.Plan.Name,
		Slug:           info.Plan.Slug,
		Subscribed:     info.Subscribed,
		PagesPerPDF:    info.Plan.PagesPerPDF,
		MaxUploadBytes: info.Plan.MaxUploadBytes,
	})
}
