package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) revenue(c *gin.Context) {
	points, err := h.svc.Analytics.Revenue(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *Handler) orderStatus(c *gin.Context) {
	counts, err := h.svc.Analytics.OrderStatusBreakdown(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *Handler) summary(c *gin.Context) {
	summary, err := h.svc.Analytics.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// export streams the workbook only once it was fully built
func (h *Handler) export(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.svc.Analytics.Export(c.Request.Context(), &buf); err != nil {
		h.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("gallery-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
