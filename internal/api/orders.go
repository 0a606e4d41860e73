package api

import (
	"net/http"
	"time"

	"gallery-store/internal/models"
	"gallery-store/internal/service"

	"github.com/gin-gonic/gin"
)

type otpResponse struct {
	Success   bool      `json:"success"`
	Code      string    `json:"code,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) generateCheckoutOTP(c *gin.Context) {
	otp, err := h.svc.OTPs.Issue(c.Request.Context(), authUser(c).ID, models.OTPPurposeCheckout)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := otpResponse{Success: true, ExpiresAt: otp.ExpiresAt}
	if h.opts.ExposeOTPCode {
		resp.Code = otp.Code
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) verifyOTP(c *gin.Context) {
	var req service.VerifyOTPRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	ok, err := h.svc.OTPs.Verify(c.Request.Context(), authUser(c).ID, req.Code, req.Purpose)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid or expired code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	order, err := h.svc.Orders.PlaceOrder(c.Request.Context(), authUser(c).ID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.svc.Orders.GetUserOrders(c.Request.Context(), authUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	order, err := h.svc.Orders.GetOrder(c.Request.Context(), authUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) listAllOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListOrders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req service.UpdateOrderStatusRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	order, err := h.svc.Orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
