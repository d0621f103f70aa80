// Package server exposes the assistant over HTTP: REST endpoints for the
// catalog, cart and checkout, a synchronous chat endpoint, and a WebSocket
// endpoint streaming response frames.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hupe1980/shopmesh/cart"
	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/checkout"
	"github.com/hupe1980/shopmesh/logging"
	"github.com/hupe1980/shopmesh/orchestrator"
)

// Options configure the Server.
type Options struct {
	Logger logging.Logger
}

// Server wires the engine and stores into an echo application.
type Server struct {
	echo     *echo.Echo
	engine   *orchestrator.Engine
	store    catalog.Store
	ledger   *cart.Ledger
	checkout *checkout.Service // nil when payments are disabled
	logger   logging.Logger
}

// New constructs a Server. The checkout service may be nil; its routes then
// answer 503.
func New(
	engine *orchestrator.Engine,
	store catalog.Store,
	ledger *cart.Ledger,
	checkoutSvc *checkout.Service,
	optFns ...func(o *Options),
) *Server {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		engine:   engine,
		store:    store,
		ledger:   ledger,
		checkout: checkoutSvc,
		logger:   opts.Logger,
	}
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	e := s.echo

	e.GET("/health", s.handleHealth)

	e.POST("/api/chat", s.handleChat)
	e.GET("/ws/chat/:user_id/:session_id", s.handleChatSocket)

	e.GET("/api/products", s.handleListProducts)
	e.GET("/api/products/:id", s.handleGetProduct)
	e.GET("/api/merchants", s.handleListMerchants)

	e.GET("/api/cart/:user_id", s.handleGetCart)
	e.POST("/api/cart/:user_id/items", s.handleAddCartItem)
	e.PATCH("/api/cart/:user_id/items/:product_id", s.handleUpdateCartItem)
	e.DELETE("/api/cart/:user_id/items/:product_id", s.handleRemoveCartItem)

	e.POST("/api/checkout/:user_id", s.handleCreateCheckout)
	e.POST("/api/webhooks/stripe", s.handleStripeWebhook)
}

// Echo exposes the underlying router, mainly for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start runs the listener until the context is cancelled, then drains with a
// short shutdown grace period.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	s.logger.Info("server.started", "addr", addr)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

type chatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Reply    string            `json:"reply"`
	Products []catalog.Product `json:"products,omitempty"`
}

// handleChat is the non-streaming chat endpoint: it runs the full loop and
// collapses the frames into one response body.
func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" || req.SessionID == "" || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id, session_id and message are required")
	}

	var resp chatResponse
	for frame := range s.engine.ProcessMessage(c.Request().Context(), req.UserID, req.SessionID, req.Message) {
		switch frame.Type {
		case orchestrator.FrameText:
			resp.Reply += frame.Content
		case orchestrator.FrameProducts:
			resp.Products = frame.Products
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListProducts(c echo.Context) error {
	query := c.QueryParam("q")
	category := c.QueryParam("category")

	if query == "" && category != "" {
		products, err := s.store.ByCategory(c.Request().Context(), category, 50)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]any{"products": products})
	}

	products, err := s.store.Search(c.Request().Context(), query, catalog.Filters{Category: category})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleGetProduct(c echo.Context) error {
	id := c.Param("id")
	product, ok := s.store.Get(c.Request().Context(), id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("product %s not found", id))
	}
	return c.JSON(http.StatusOK, product)
}

func (s *Server) handleListMerchants(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"merchants": s.store.Merchants(c.Request().Context())})
}

func (s *Server) handleGetCart(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ledger.Summary(c.Request().Context(), c.Param("user_id")))
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

func (s *Server) handleAddCartItem(c echo.Context) error {
	var req cartItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	summary, err := s.ledger.Add(c.Request().Context(), c.Param("user_id"), req.ProductID, req.Quantity, req.Size, req.Color)
	if err != nil {
		return cartError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleUpdateCartItem(c echo.Context) error {
	var req cartItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	summary, err := s.ledger.UpdateQuantity(c.Request().Context(), c.Param("user_id"), c.Param("product_id"), req.Quantity)
	if err != nil {
		return cartError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleRemoveCartItem(c echo.Context) error {
	summary, err := s.ledger.Remove(c.Request().Context(), c.Param("user_id"), c.Param("product_id"))
	if err != nil {
		return cartError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func cartError(err error) error {
	switch {
	case errors.Is(err, cart.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, cart.ErrOutOfStock):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleCreateCheckout(c echo.Context) error {
	if s.checkout == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "checkout is not configured")
	}

	sess, err := s.checkout.CreateSession(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) handleStripeWebhook(c echo.Context) error {
	if s.checkout == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "checkout is not configured")
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	if err := s.checkout.HandleWebhook(c.Request().Context(), payload, c.Request().Header.Get("Stripe-Signature")); err != nil {
		s.logger.Warn("server.webhook.rejected", "error", err.Error())
		return echo.NewHTTPError(http.StatusBadRequest, "webhook rejected")
	}
	return c.NoContent(http.StatusOK)
}
