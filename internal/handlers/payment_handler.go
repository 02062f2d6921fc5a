package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/venuebook/internal/services"
)

// maxWebhookBody bounds the payload read before the signature is checked.
const maxWebhookBody = 1 << 20

func CreateCheckoutSession(cs *services.CheckoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.CheckoutInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respondError(c, fmt.Errorf("%w: invalid request payload: %v", services.ErrValidation, err))
			return
		}

		session, err := cs.CreateSession(c.Request.Context(), bearerCredential(c), c.GetHeader("Origin"), &in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessionId": session.ID})
	}
}

// StripeWebhook hands the untouched body to the webhook service; the signature covers
// the exact bytes the provider sent.
func StripeWebhook(ws *services.WebhookService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
		payload, err := c.GetRawData()
		if err != nil {
			respondError(c, fmt.Errorf("%w: unreadable body: %v", services.ErrValidation, err))
			return
		}

		if _, err := ws.HandleEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func MyBookings(bs *services.BookingsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := currentIdentity(c)
		if !ok {
			return
		}
		bookings, err := bs.ListForUser(c.Request.Context(), identity)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bookings": bookings})
	}
}
