package api

import (
	"net/http"

	"gallery-store/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) getCart(c *gin.Context) {
	lines, err := h.svc.Carts.Get(c.Request.Context(), authUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lines)
}

func (h *Handler) addToCart(c *gin.Context) {
	var req service.AddToCartRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	item, err := h.svc.Carts.Add(c.Request.Context(), authUser(c).ID, req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	productID, err := parseID(c, "productId")
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req service.UpdateCartRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	item, err := h.svc.Carts.Update(c.Request.Context(), authUser(c).ID, productID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	productID, err := parseID(c, "productId")
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.svc.Carts.Remove(c.Request.Context(), authUser(c).ID, productID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.svc.Carts.Clear(c.Request.Context(), authUser(c).ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) cartSummary(c *gin.Context) {
	summary, err := h.svc.Carts.Summary(c.Request.Context(), authUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
