package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olyamironova/cryptodesk/internal/api/dto"
	"github.com/olyamironova/cryptodesk/internal/core"
	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/olyamironova/cryptodesk/internal/middleware"
)

type HTTPServer struct {
	Eng *core.Engine
}

func NewHTTPServer(eng *core.Engine) *HTTPServer {
	return &HTTPServer{Eng: eng}
}

func (s *HTTPServer) Run(addr string) error {
	return s.Router().Run(addr)
}

func (s *HTTPServer) Router() *gin.Engine {
	r := gin.Default()

	rl := middleware.NewRateLimiter(time.Millisecond * 100)
	r.Use(rl.Middleware())

	api := r.Group("/api/crypto", middleware.Auth())
	api.GET("/prices", s.getPrices)
	api.GET("/portfolio/balances", s.getBalances)
	api.POST("/orders/market/buy", s.marketBuy)
	api.POST("/orders/market/sell", s.marketSell)
	api.GET("/orders/history", s.getHistory)

	return r
}

func (s *HTTPServer) getPrices(c *gin.Context) {
	prices, err := s.Eng.Prices(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	res := make([]dto.PriceResponse, 0, len(prices))
	for sym, p := range prices {
		res = append(res, dto.PriceResponse{Symbol: sym, Price: p})
	}
	c.JSON(http.StatusOK, res)
}

func (s *HTTPServer) getBalances(c *gin.Context) {
	positions, total, err := s.Eng.Balances(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	items := make([]dto.BalanceItem, 0, len(positions))
	for _, p := range positions {
		items = append(items, dto.BalanceItem{
			Symbol:   p.Symbol,
			Quantity: p.Quantity,
			Price:    p.Price,
			Value:    p.Value,
		})
	}
	c.JSON(http.StatusOK, dto.BalancesResponse{Items: items, TotalValue: total})
}

func (s *HTTPServer) marketBuy(c *gin.Context) {
	var req dto.MarketBuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	receipt, err := s.Eng.Buy(c.Request.Context(), middleware.UserID(c), req.Symbol, req.Amount, req.WalletAccountID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, convertReceipt(receipt))
}

func (s *HTTPServer) marketSell(c *gin.Context) {
	var req dto.MarketSellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	receipt, err := s.Eng.Sell(c.Request.Context(), middleware.UserID(c), req.Symbol, req.Quantity, req.WalletAccountID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, convertReceipt(receipt))
}

func (s *HTTPServer) getHistory(c *gin.Context) {
	trades, err := s.Eng.History(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	res := dto.HistoryResponse{Trades: make([]dto.TradeResponse, 0, len(trades))}
	for _, t := range trades {
		res.Trades = append(res.Trades, convertReceipt(t))
	}
	c.JSON(http.StatusOK, res)
}

func convertReceipt(t *domain.TradeReceipt) dto.TradeResponse {
	return dto.TradeResponse{
		ID:        t.ID,
		Symbol:    t.Symbol,
		Side:      string(t.Side),
		Quantity:  t.Quantity,
		Price:     t.Price,
		Notional:  t.Notional,
		CreatedAt: t.CreatedAt,
	}
}

// fail maps business error kinds to HTTP statuses. Every failure carries the
// reason; no order is ever silently half-applied.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnsupportedSymbol),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidWallet):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrLedgerRejected):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrQuoteUnavailable):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
