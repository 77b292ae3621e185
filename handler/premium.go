package handler

import (
	"net/http"

	"github.com/AnTengye/contractchat/service"
	"github.com/gin-gonic/gin"
)

type PremiumHandler struct {
	premium  *service.PremiumReconciler
	checkout *service.Checkout
}

func NewPremiumHandler(premium *service.PremiumReconciler, checkout *service.Checkout) *PremiumHandler {
	return &PremiumHandler{premium: premium, checkout: checkout}
}

func (h *PremiumHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"has_premium": h.premium.HasPremium(),
		"refreshing":  h.premium.Refreshing(),
	})
}

// Refresh always answers 200; a failed refresh simply reports no premium.
func (h *PremiumHandler) Refresh(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"has_premium": h.premium.Refresh(c.Request.Context())})
}

func (h *PremiumHandler) Checkout(c *gin.Context) {
	url, err := h.checkout.CreateSession(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout_url": url})
}
