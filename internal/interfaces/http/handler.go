package httpinterface

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tdex-network/fiatln-daemon/internal/core/application/pubsub"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/messages"
	"github.com/tdex-network/fiatln-daemon/pkg/mathutil"
)

// WebhookService manages the webhooks notified about orders and
// transactions.
type WebhookService interface {
	AddWebhook(ctx context.Context, event, endpoint, secret string) (string, error)
	RemoveWebhook(ctx context.Context, id string) error
	ListWebhooks(ctx context.Context, event string) ([]pubsub.WebhookInfo, error)
}

type handler struct {
	commands    *commandBridge
	webhookSvc  WebhookService
	settings    domain.Settings
	isConnected func() bool
}

func (h *handler) registerRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/orders/buy", h.placeBuyOrder)
		v1.POST("/orders/sell", h.placeSellOrder)
		v1.GET("/orders", h.listOrders)
		v1.DELETE("/orders/:id", h.cancelOrder)
		v1.GET("/config", h.getConfig)
		v1.PUT("/config", h.setConfig)
		if h.webhookSvc != nil {
			v1.GET("/webhooks", h.listWebhooks)
			v1.POST("/webhooks", h.addWebhook)
			v1.DELETE("/webhooks/:id", h.removeWebhook)
		}
	}
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"connected": h.isConnected == nil || h.isConnected(),
	})
}

func (h *handler) placeBuyOrder(c *gin.Context) {
	h.placeOrder(c, domain.OrderKindBuy)
}

func (h *handler) placeSellOrder(c *gin.Context) {
	h.placeOrder(c, domain.OrderKindSell)
}

func (h *handler) placeOrder(c *gin.Context, kind domain.OrderKind) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd, err := h.parsePlaceOrder(req, kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := h.commands.execute(c.Request.Context(), func(ref messages.CommandRef) messages.Command {
		cmd.CommandRef = ref
		if kind == domain.OrderKindBuy {
			return messages.PlaceBuyOrder{PlaceOrder: cmd}
		}
		return messages.PlaceSellOrder{PlaceOrder: cmd}
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	result, ok := payload.(messages.PlaceOrderResult)
	if !ok {
		abortWithError(c, fmt.Errorf("unexpected payload %T", payload))
		return
	}
	c.JSON(http.StatusCreated, placeOrderResponse{OrderID: result.OrderID})
}

// parsePlaceOrder converts the decimal values of req to base units. The
// amounts are in the unit of the asset given by the order.
func (h *handler) parsePlaceOrder(
	req placeOrderRequest, kind domain.OrderKind,
) (messages.PlaceOrder, error) {
	amountDivisor := h.settings.FiatDivisor
	if kind == domain.OrderKindSell {
		amountDivisor = h.settings.CryptoDivisor
	}

	limitRate, err := mathutil.ParseUnits(req.LimitRate, h.settings.RateDivisor)
	if err != nil {
		return messages.PlaceOrder{}, fmt.Errorf("invalid limit_rate: %w", err)
	}
	amount, err := mathutil.ParseUnits(req.Amount, amountDivisor)
	if err != nil {
		return messages.PlaceOrder{}, fmt.Errorf("invalid amount: %w", err)
	}
	var perTxMaxAmount int64
	if len(req.PerTxMaxAmount) > 0 {
		perTxMaxAmount, err = mathutil.ParseUnits(req.PerTxMaxAmount, amountDivisor)
		if err != nil {
			return messages.PlaceOrder{}, fmt.Errorf("invalid per_tx_max_amount: %w", err)
		}
	}

	return messages.PlaceOrder{
		LimitRate:         uint64(limitRate),
		LimitRateInverted: req.LimitRateInverted,
		Amount:            amount,
		PerTxMaxAmount:    perTxMaxAmount,
	}, nil
}

func (h *handler) listOrders(c *gin.Context) {
	payload, err := h.commands.execute(c.Request.Context(), func(ref messages.CommandRef) messages.Command {
		return messages.ListOrders{CommandRef: ref}
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	infos, _ := payload.([]messages.OrderInfo)
	orders := make([]orderView, 0, len(infos))
	for _, info := range infos {
		orders = append(orders, newOrderView(info, h.settings))
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *handler) cancelOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	if _, err := h.commands.execute(c.Request.Context(), func(ref messages.CommandRef) messages.Command {
		return messages.CancelOrder{CommandRef: ref, OrderID: orderID}
	}); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *handler) getConfig(c *gin.Context) {
	payload, err := h.commands.execute(c.Request.Context(), func(ref messages.CommandRef) messages.Command {
		return messages.GetConfig{CommandRef: ref}
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"values": payload})
}

func (h *handler) setConfig(c *gin.Context) {
	var req setConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := h.commands.execute(c.Request.Context(), func(ref messages.CommandRef) messages.Command {
		return messages.SetConfig{CommandRef: ref, Values: req.Values}
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"values": payload})
}

func (h *handler) listWebhooks(c *gin.Context) {
	webhooks, err := h.webhookSvc.ListWebhooks(c.Request.Context(), c.Query("event"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": webhooks})
}

func (h *handler) addWebhook(c *gin.Context) {
	var req addWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.webhookSvc.AddWebhook(
		c.Request.Context(), req.Event, req.Endpoint, req.Secret,
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, addWebhookResponse{ID: id})
}

func (h *handler) removeWebhook(c *gin.Context) {
	if err := h.webhookSvc.RemoveWebhook(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func abortWithError(c *gin.Context, err error) {
	var cmdErr messages.CommandError
	if !errors.As(err, &cmdErr) {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch cmdErr.Code {
	case messages.ErrorCodeInvalidParams:
		status = http.StatusBadRequest
	case messages.ErrorCodeNoSuchOrder:
		status = http.StatusNotFound
	case messages.ErrorCodeNoConnection:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": cmdErr.Message, "code": cmdErr.Code.String()})
}
