//go:build e2e

package checkout_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	reqdto "storefront/internal/handler/dto/request"
	resdto "storefront/internal/handler/dto/response"
	"storefront/tests/common/authtest"
	"storefront/tests/common/dbtest"
	commonhttp "storefront/tests/common/httptest"
	"storefront/tests/e2e"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type CheckoutE2ETestSuite struct {
	e2e.SharedSuite
}

func TestCheckoutE2E(t *testing.T) {
	suite.Run(t, new(CheckoutE2ETestSuite))
}

func (s *CheckoutE2ETestSuite) initiateSession(token string, items []reqdto.CheckoutItem) resdto.CheckoutSessionResponse {
	w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/checkout/session",
		reqdto.CreateCheckoutSessionRequest{CartItems: items}, token)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp resdto.CheckoutSessionResponse
	commonhttp.DecodeResponseBody(s.T(), w.Body, &resp)
	s.Require().NotEmpty(resp.SessionID)
	s.Require().NotEmpty(resp.URL)
	return resp
}

func (s *CheckoutE2ETestSuite) confirm(sessionID string) (*resdto.ConfirmCheckoutResponse, int, string) {
	w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/checkout/confirm",
		reqdto.ConfirmCheckoutRequest{SessionID: sessionID}, "")
	if w.Code != http.StatusOK {
		return nil, w.Code, w.Body.String()
	}
	var resp resdto.ConfirmCheckoutResponse
	commonhttp.DecodeResponseBody(s.T(), w.Body, &resp)
	return &resp, w.Code, w.Body.String()
}

func (s *CheckoutE2ETestSuite) TestCheckoutSettlement() {
	jwtHelper := authtest.NewJWTHelper(s.Config.JWT)

	s.Run("paid session settles exactly once", func() {
		userID := dbtest.CreateTestUser(s.T(), s.DB, "buyer@example.com")
		productID := dbtest.CreateTestProduct(s.T(), s.DB, "Espresso Beans", 1999, 10)
		dbtest.AddCartItem(s.T(), s.DB, userID, productID, 2)
		token := jwtHelper.GenerateToken(s.T(), userID, "buyer@example.com")

		session := s.initiateSession(token, []reqdto.CheckoutItem{
			{ProductID: productID.String(), Name: "Espresso Beans", Price: 19.99, Quantity: 2},
		})
		s.Gateway.MarkPaid(session.SessionID)

		resp, code, body := s.confirm(session.SessionID)
		s.Require().Equal(http.StatusOK, code, body)
		s.True(resp.Success)
		s.Require().NotNil(resp.OrderID)
		s.Equal("completed", resp.Status)

		s.Equal(int32(8), dbtest.ProductStock(s.T(), s.DB, productID))
		s.Equal(0, dbtest.CountCartItems(s.T(), s.DB, userID))
		s.Equal(1, dbtest.CountOrdersBySession(s.T(), s.DB, session.SessionID))

		// Repeated confirmations replay the same order
		firstOrderID := *resp.OrderID
		for range 3 {
			again, code, body := s.confirm(session.SessionID)
			s.Require().Equal(http.StatusOK, code, body)
			s.True(again.Success)
			s.Require().NotNil(again.OrderID)
			s.Equal(firstOrderID, *again.OrderID)
		}
		s.Equal(int32(8), dbtest.ProductStock(s.T(), s.DB, productID))
		s.Equal(1, dbtest.CountOrdersBySession(s.T(), s.DB, session.SessionID))
	})

	s.Run("authenticated session built from the server-side cart", func() {
		userID := dbtest.CreateTestUser(s.T(), s.DB, "stored@example.com")
		productID := dbtest.CreateTestProduct(s.T(), s.DB, "Pour Over Set", 3550, 6)
		dbtest.AddCartItem(s.T(), s.DB, userID, productID, 3)
		token := jwtHelper.GenerateToken(s.T(), userID, "stored@example.com")

		session := s.initiateSession(token, nil)
		s.Gateway.MarkPaid(session.SessionID)

		resp, code, body := s.confirm(session.SessionID)
		s.Require().Equal(http.StatusOK, code, body)
		s.True(resp.Success)

		s.Equal(int32(3), dbtest.ProductStock(s.T(), s.DB, productID))
		s.Equal(0, dbtest.CountCartItems(s.T(), s.DB, userID))

		var total int64
		err := s.DB.QueryRow(s.T().Context(),
			"SELECT total_cents FROM orders WHERE stripe_session_id = $1", session.SessionID).Scan(&total)
		s.Require().NoError(err)
		s.Equal(int64(3*3550), total)
	})

	s.Run("unpaid session does not settle", func() {
		userID := dbtest.CreateTestUser(s.T(), s.DB, "pending@example.com")
		productID := dbtest.CreateTestProduct(s.T(), s.DB, "Grinder", 4500, 3)
		token := jwtHelper.GenerateToken(s.T(), userID, "pending@example.com")

		session := s.initiateSession(token, []reqdto.CheckoutItem{
			{ProductID: productID.String(), Name: "Grinder", Price: 45.00, Quantity: 1},
		})

		resp, code, body := s.confirm(session.SessionID)
		s.Require().Equal(http.StatusOK, code, body)
		s.False(resp.Success)
		s.Nil(resp.OrderID)

		s.Equal(int32(3), dbtest.ProductStock(s.T(), s.DB, productID))
		s.Equal(0, dbtest.CountOrdersBySession(s.T(), s.DB, session.SessionID))
	})

	s.Run("guest checkout settles without a cart to clear", func() {
		productID := dbtest.CreateTestProduct(s.T(), s.DB, "Mug", 1250, 5)

		session := s.initiateSession("", []reqdto.CheckoutItem{
			{ProductID: productID.String(), Name: "Mug", Price: 12.50, Quantity: 1},
		})
		s.Gateway.MarkPaid(session.SessionID)

		resp, code, body := s.confirm(session.SessionID)
		s.Require().Equal(http.StatusOK, code, body)
		s.True(resp.Success)
		s.Require().NotNil(resp.OrderID)

		s.Equal(int32(4), dbtest.ProductStock(s.T(), s.DB, productID))

		var storedUserID *uuid.UUID
		err := s.DB.QueryRow(s.T().Context(),
			"SELECT user_id FROM orders WHERE id = $1", *resp.OrderID).Scan(&storedUserID)
		s.Require().NoError(err)
		s.Nil(storedUserID)
	})

	s.Run("paid session with insufficient stock records a failed order", func() {
		userID := dbtest.CreateTestUser(s.T(), s.DB, "greedy@example.com")
		productID := dbtest.CreateTestProduct(s.T(), s.DB, "Kettle", 8000, 1)
		token := jwtHelper.GenerateToken(s.T(), userID, "greedy@example.com")

		session := s.initiateSession(token, []reqdto.CheckoutItem{
			{ProductID: productID.String(), Name: "Kettle", Price: 80.00, Quantity: 2},
		})
		s.Gateway.MarkPaid(session.SessionID)

		_, code, body := s.confirm(session.SessionID)
		s.Require().Equal(http.StatusConflict, code, body)

		// Stock untouched, failed order kept for reconciliation
		s.Equal(int32(1), dbtest.ProductStock(s.T(), s.DB, productID))

		var status string
		err := s.DB.QueryRow(s.T().Context(),
			"SELECT status FROM orders WHERE stripe_session_id = $1", session.SessionID).Scan(&status)
		s.Require().NoError(err)
		s.Equal("failed", status)

		var itemCount int
		err = s.DB.QueryRow(s.T().Context(),
			"SELECT count(*) FROM order_items oi JOIN orders o ON o.id = oi.order_id WHERE o.stripe_session_id = $1",
			session.SessionID).Scan(&itemCount)
		s.Require().NoError(err)
		s.Equal(0, itemCount)
	})

	s.Run("concurrent confirms settle once", func() {
		userID := dbtest.CreateTestUser(s.T(), s.DB, "racer@example.com")
		productID := dbtest.CreateTestProduct(s.T(), s.DB, "Thermometer", 1500, 10)
		token := jwtHelper.GenerateToken(s.T(), userID, "racer@example.com")

		session := s.initiateSession(token, []reqdto.CheckoutItem{
			{ProductID: productID.String(), Name: "Thermometer", Price: 15.00, Quantity: 2},
		})
		s.Gateway.MarkPaid(session.SessionID)

		const confirms = 5
		codes := make(chan int, confirms)
		var wg sync.WaitGroup
		for range confirms {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/checkout/confirm",
					reqdto.ConfirmCheckoutRequest{SessionID: session.SessionID}, "")
				codes <- w.Code
			}()
		}
		wg.Wait()
		close(codes)

		for code := range codes {
			s.Equal(http.StatusOK, code)
		}
		s.Equal(int32(8), dbtest.ProductStock(s.T(), s.DB, productID))
		s.Equal(1, dbtest.CountOrdersBySession(s.T(), s.DB, session.SessionID))
	})

	s.Run("two paid sessions contend for the last unit", func() {
		productID := dbtest.CreateTestProduct(s.T(), s.DB, "Limited Roast", 2500, 1)

		item := []reqdto.CheckoutItem{
			{ProductID: productID.String(), Name: "Limited Roast", Price: 25.00, Quantity: 1},
		}
		first := s.initiateSession("", item)
		second := s.initiateSession("", item)
		s.Gateway.MarkPaid(first.SessionID)
		s.Gateway.MarkPaid(second.SessionID)

		resp, code, body := s.confirm(first.SessionID)
		s.Require().Equal(http.StatusOK, code, body)
		s.True(resp.Success)

		_, code, body = s.confirm(second.SessionID)
		s.Equal(http.StatusConflict, code, body)

		s.Equal(int32(0), dbtest.ProductStock(s.T(), s.DB, productID))

		var status string
		err := s.DB.QueryRow(s.T().Context(),
			"SELECT status FROM orders WHERE stripe_session_id = $1", second.SessionID).Scan(&status)
		s.Require().NoError(err)
		s.Equal("failed", status)
	})

	s.Run("unknown session returns not found", func() {
		_, code, body := s.confirm("cs_test_does_not_exist")
		s.Equal(http.StatusNotFound, code, body)
	})

	s.Run("corrupt session metadata is rejected", func() {
		productID := dbtest.CreateTestProduct(s.T(), s.DB, "Scale", 3000, 2)

		session := s.initiateSession("", []reqdto.CheckoutItem{
			{ProductID: productID.String(), Name: "Scale", Price: 30.00, Quantity: 1},
		})
		s.Gateway.MarkPaid(session.SessionID)
		s.Gateway.CorruptMetadata(session.SessionID)

		_, code, body := s.confirm(session.SessionID)
		s.Equal(http.StatusInternalServerError, code, body)
		s.Equal(int32(2), dbtest.ProductStock(s.T(), s.DB, productID))
		s.Equal(0, dbtest.CountOrdersBySession(s.T(), s.DB, session.SessionID))
	})

	s.Run("empty cart is rejected", func() {
		w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/checkout/session",
			reqdto.CreateCheckoutSessionRequest{CartItems: []reqdto.CheckoutItem{}}, "")
		s.Equal(http.StatusBadRequest, w.Code, w.Body.String())
	})
}

func (s *CheckoutE2ETestSuite) TestCORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/api/checkout/session", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")

	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	s.Equal(http.StatusNoContent, w.Code)
	commonhttp.AssertHeaders(s.T(), w, map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
}

func (s *CheckoutE2ETestSuite) TestOrderRetrieval() {
	jwtHelper := authtest.NewJWTHelper(s.Config.JWT)

	s.Run("owner can fetch the settled order", func() {
		userID := dbtest.CreateTestUser(s.T(), s.DB, "owner@example.com")
		productID := dbtest.CreateTestProduct(s.T(), s.DB, "Dripper", 2200, 4)
		token := jwtHelper.GenerateToken(s.T(), userID, "owner@example.com")

		session := s.initiateSession(token, []reqdto.CheckoutItem{
			{ProductID: productID.String(), Name: "Dripper", Price: 22.00, Quantity: 2},
		})
		s.Gateway.MarkPaid(session.SessionID)
		resp, code, body := s.confirm(session.SessionID)
		s.Require().Equal(http.StatusOK, code, body)
		s.Require().NotNil(resp.OrderID)

		w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodGet, "/api/orders/"+resp.OrderID.String(), nil, token)
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

		var orderResp resdto.OrderResponse
		commonhttp.DecodeResponseBody(s.T(), w.Body, &orderResp)
		s.Equal(*resp.OrderID, orderResp.ID)
		s.Equal(int64(4400), orderResp.TotalCents)
		s.Equal("completed", orderResp.Status)
		s.Equal(session.SessionID, orderResp.SessionID)
		s.Require().Len(orderResp.Items, 1)
		s.Equal(productID, orderResp.Items[0].ProductID)
		s.Equal(int32(2), orderResp.Items[0].Quantity)
		s.Equal(int64(2200), orderResp.Items[0].UnitPriceCents)
	})

	s.Run("other users cannot see the order", func() {
		ownerID := dbtest.CreateTestUser(s.T(), s.DB, "owner2@example.com")
		otherID := dbtest.CreateTestUser(s.T(), s.DB, "peeker@example.com")
		productID := dbtest.CreateTestProduct(s.T(), s.DB, "Filter", 600, 9)
		ownerToken := jwtHelper.GenerateToken(s.T(), ownerID, "owner2@example.com")
		otherToken := jwtHelper.GenerateToken(s.T(), otherID, "peeker@example.com")

		session := s.initiateSession(ownerToken, []reqdto.CheckoutItem{
			{ProductID: productID.String(), Name: "Filter", Price: 6.00, Quantity: 1},
		})
		s.Gateway.MarkPaid(session.SessionID)
		resp, code, body := s.confirm(session.SessionID)
		s.Require().Equal(http.StatusOK, code, body)
		s.Require().NotNil(resp.OrderID)

		w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodGet, "/api/orders/"+resp.OrderID.String(), nil, otherToken)
		s.Equal(http.StatusNotFound, w.Code, w.Body.String())
	})

	s.Run("unauthenticated order fetch is rejected", func() {
		w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodGet, "/api/orders/"+uuid.NewString(), nil, "")
		s.Equal(http.StatusUnauthorized, w.Code, w.Body.String())
	})

	s.Run("expired token is rejected", func() {
		userID := dbtest.CreateTestUser(s.T(), s.DB, "expired@example.com")
		expired := jwtHelper.CreateExpiredToken(s.T(), userID, "expired@example.com")

		w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodGet, "/api/orders/"+uuid.NewString(), nil, expired)
		s.Equal(http.StatusUnauthorized, w.Code, w.Body.String())
	})
}
