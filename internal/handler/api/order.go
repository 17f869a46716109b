package api

import (
	"net/http"

	resdto "storefront/internal/handler/dto/response"
	"storefront/internal/handler/httperr"
	"storefront/internal/handler/middleware"
	"storefront/internal/infra"
	"storefront/internal/pkg/errs"
	"storefront/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrderHandler struct {
	orderQueries queries.OrderQueries
}

func NewOrderHandler(orderQueries queries.OrderQueries) *OrderHandler {
	return &OrderHandler{
		orderQueries: orderQueries,
	}
}

// @Summary Get order
// @Description Get an order with its line items
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} resdto.OrderResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Failure 404 {object} httperr.Response
// @Router /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusInternalServerError,
			errs.New("identity missing after auth middleware"), "Internal server error", nil)
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid order ID", nil)
		return
	}

	view, err := h.orderQueries.GetByID(c.Request.Context(), orderID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			httperr.AbortWithError(c, http.StatusNotFound, err, "Order not found", nil)
			return
		}
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		return
	}

	// Orders are only visible to their owner
	if view.UserID != ident.UserID {
		httperr.AbortWithError(c, http.StatusNotFound,
			errs.New("order does not belong to requester"), "Order not found", nil)
		return
	}

	c.JSON(http.StatusOK, resdto.FromOrderView(view))
}
