package api

import (
	"errors"
	"net/http"

	"travel-sales-service/internal/service"
	"travel-sales-service/internal/store"
	"travel-sales-service/internal/util"

	"github.com/gin-gonic/gin"
)

// The provider expects its own envelope back, not our error format. A 500
// makes the provider retry the delivery later; a 404 acknowledges an unknown
// merchant transaction id without creating anything.

func callbackEnvelope(ok bool, message string) gin.H {
	if ok {
		return gin.H{"error": 0, "status": 1, "message": message, "values": true}
	}
	return gin.H{"error": 1, "status": 0, "message": message, "values": false}
}

// gatewayCallback handles the provider's payment notification webhook
func (h *Handler) gatewayCallback(c *gin.Context) {
	var cb service.GatewayCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		util.WebhookCallbacksTotal.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusBadRequest, callbackEnvelope(false, "Datos inválidos"))
		return
	}

	// Callbacks carry no operator identity; audit rows attribute them to
	// the system actor.
	_, err := h.gatewayService.HandleGatewayCallback(c.Request.Context(), &cb, 0)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.WebhookCallbacksTotal.WithLabelValues("not_found").Inc()
			c.JSON(http.StatusNotFound, callbackEnvelope(false, "Pago no encontrado"))
			return
		}
		util.WebhookCallbacksTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, callbackEnvelope(false, "Error interno del servidor"))
		return
	}

	util.WebhookCallbacksTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, callbackEnvelope(true, "Pago procesado correctamente"))
}

// paymentStatus is the polling endpoint consumed by the frontend QR screen
func (h *Handler) paymentStatus(c *gin.Context) {
	paymentID, ok := pathID(c)
	if !ok {
		return
	}

	proj, err := h.gatewayService.PaymentStatus(c.Request.Context(), paymentID)
	if err != nil {
		respondError(c, err, "Failed to load payment status")
		return
	}

	c.JSON(http.StatusOK, proj)
}
