package api

import (
	"net/http"

	reqdto "storefront/internal/handler/dto/request"
	resdto "storefront/internal/handler/dto/response"
	"storefront/internal/handler/httperr"
	"storefront/internal/handler/middleware"
	"storefront/internal/pkg/errs"
	"storefront/internal/usecase/commands"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	checkoutUseCase commands.CheckoutCommands
}

func NewCheckoutHandler(checkoutUseCase commands.CheckoutCommands) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutUseCase: checkoutUseCase,
	}
}

// @Summary Create checkout session
// @Description Open a payment session for the submitted cart and return the hosted payment page URL
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body reqdto.CreateCheckoutSessionRequest true "Cart contents"
// @Success 200 {object} resdto.CheckoutSessionResponse
// @Failure 400 {object} httperr.Response
// @Failure 502 {object} httperr.Response
// @Router /checkout/session [post]
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	var req reqdto.CreateCheckoutSessionRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, bindErr, "Invalid request format", nil)
		return
	}

	ident, _ := middleware.GetIdentity(c)

	result, err := h.checkoutUseCase.InitiateCheckout(c.Request.Context(), req, ident)
	if err != nil {
		switch {
		case errs.Is(err, commands.ErrInvalidCart):
			httperr.AbortWithError(c, http.StatusBadRequest, err, "Cart is empty or contains invalid line items", nil)
		case errs.Is(err, commands.ErrPaymentProvider):
			httperr.AbortWithError(c, http.StatusBadGateway, err, "Payment provider is unavailable", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromInitiateResult(result))
}

// @Summary Confirm checkout
// @Description Verify a session's payment status and settle it exactly once; safe to call repeatedly
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body reqdto.ConfirmCheckoutRequest true "Session to settle"
// @Success 200 {object} resdto.ConfirmCheckoutResponse
// @Failure 400 {object} httperr.Response
// @Failure 404 {object} httperr.Response
// @Failure 409 {object} httperr.Response
// @Failure 502 {object} httperr.Response
// @Router /checkout/confirm [post]
func (h *CheckoutHandler) Confirm(c *gin.Context) {
	var req reqdto.ConfirmCheckoutRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, bindErr, "Invalid request format", nil)
		return
	}

	result, err := h.checkoutUseCase.ConfirmCheckout(c.Request.Context(), req.SessionID)
	if err != nil {
		switch {
		case errs.Is(err, commands.ErrSessionNotFound):
			httperr.AbortWithError(c, http.StatusNotFound, err, "Checkout session not found", nil)
		case errs.Is(err, commands.ErrInsufficientStock):
			// Money was collected but the order cannot ship as
			// requested; surfaced for manual reconciliation.
			httperr.AbortWithError(c, http.StatusConflict, err, "Insufficient stock to fulfill the paid order", nil)
		case errs.Is(err, commands.ErrCorruptSessionMetadata):
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Session metadata could not be decoded", nil)
		case errs.Is(err, commands.ErrPaymentProvider):
			httperr.AbortWithError(c, http.StatusBadGateway, err, "Payment provider is unavailable", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromConfirmResult(result))
}
