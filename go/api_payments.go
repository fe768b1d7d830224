package marketplaceserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	paymentmapper "github.com/Apurer/course-marketplace-api/internal/domains/payments/adapters/http/mapper"
	paymentsapp "github.com/Apurer/course-marketplace-api/internal/domains/payments/application"
	paymentsports "github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	apierrors "github.com/Apurer/course-marketplace-api/internal/shared/errors"
)

// SignatureHeader carries the provider's hex HMAC over the raw webhook body.
const SignatureHeader = "X-Payment-Signature"

const maxWebhookBody = 64 << 10

// PaymentsAPI wires HTTP transport with the payments bounded context.
type PaymentsAPI struct {
	service paymentsports.Service
}

func NewPaymentsAPI(service paymentsports.Service) PaymentsAPI {
	return PaymentsAPI{service: service}
}

// Post /payments/sessions
// Opens a checkout for a course or level
func (api *PaymentsAPI) CreateSession(c *gin.Context) {
	var payload paymentmapper.SessionRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	target, err := payload.ToTarget()
	if err != nil {
		respondProblem(c, apierrors.ErrValidation.WithDetail(err.Error()))
		return
	}
	session, err := api.service.CreateSession(c.Request.Context(), buyerID(c), target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, paymentmapper.FromCheckout(session))
}

// Get /payments/sessions/:orderCode/status
// Polls the provider for the order and reports where it stands
func (api *PaymentsAPI) GetStatus(c *gin.Context) {
	code, ok := parseOrderCode(c)
	if !ok {
		return
	}
	outcome, err := api.service.Poll(c.Request.Context(), code, buyerID(c))
	if err != nil {
		if errors.Is(err, paymentsports.ErrGatewayUnavailable) {
			// the stored state is still a valid answer for a poller
			if order, getErr := api.service.GetOrder(c.Request.Context(), code, buyerID(c)); getErr == nil {
				c.JSON(http.StatusOK, paymentmapper.FromStaleOrder(order))
				return
			}
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentmapper.FromOutcome(outcome))
}

// Post /payments/sessions/:orderCode/confirm
// Re-checks the provider after the buyer reports a completed payment
func (api *PaymentsAPI) Confirm(c *gin.Context) {
	code, ok := parseOrderCode(c)
	if !ok {
		return
	}
	outcome, err := api.service.Confirm(c.Request.Context(), code, buyerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentmapper.FromOutcome(outcome))
}

// Post /payments/sessions/:orderCode/cancel
// Abandons an open checkout
func (api *PaymentsAPI) Cancel(c *gin.Context) {
	code, ok := parseOrderCode(c)
	if !ok {
		return
	}
	var payload paymentmapper.CancelRequest
	// the body is optional
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	outcome, err := api.service.Cancel(c.Request.Context(), code, buyerID(c), payload.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentmapper.FromOutcome(outcome))
}

// Post /payments/webhook
// Receives payment notifications pushed by the provider
func (api *PaymentsAPI) Webhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	outcome, err := api.service.HandleWebhook(c.Request.Context(), raw, c.GetHeader(SignatureHeader))
	switch {
	case err == nil:
	case errors.Is(err, paymentsapp.ErrInvalidSignature):
		respondError(c, err)
		return
	case paymentsapp.IsBenignRejection(err):
		// verified but unusable; redelivery would not change anything
		c.JSON(http.StatusOK, paymentmapper.WebhookAck{Success: false})
		return
	default:
		respondError(c, err)
		return
	}
	ack := paymentmapper.WebhookAck{Success: true}
	if outcome != nil && outcome.Order != nil {
		ack.OrderCode = outcome.Order.Code
		ack.Status = string(outcome.Order.Status)
	}
	c.JSON(http.StatusOK, ack)
}

func parseOrderCode(c *gin.Context) (int64, bool) {
	code, err := strconv.ParseInt(c.Param("orderCode"), 10, 64)
	if err != nil || code <= 0 {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail("orderCode must be a positive integer"))
		return 0, false
	}
	return code, true
}
