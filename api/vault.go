package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/caveau-digitale/caveaud/internal/swap"
	"github.com/caveau-digitale/caveaud/internal/types"
)

func (s *Server) GetPresets(c echo.Context) error {
	return c.JSON(http.StatusOK, types.Presets)
}

func (s *Server) Dashboard(c echo.Context) error {
	summary, err := s.session.Summary()
	if err != nil {
		return err
	}
	history, err := s.session.History()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"summary": summary,
		"history": history,
	})
}

func (s *Server) ListVaults(c echo.Context) error {
	vaults, err := s.session.Vaults()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, vaults)
}

func (s *Server) CreateVault(c echo.Context) error {
	var req types.VaultCreateRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("fail to parse request, err: %w", err)
	}
	v, err := s.session.CreateVault(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (s *Server) GetVault(c echo.Context) error {
	v, err := s.session.Vault(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (s *Server) Deposit(c echo.Context) error {
	var req types.DepositRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("fail to parse request, err: %w", err)
	}
	tx, err := s.session.Deposit(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tx)
}

func (s *Server) VaultProgress(c echo.Context) error {
	series, err := s.session.Progress(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, series)
}

func (s *Server) GetBalance(c echo.Context) error {
	if s.chain == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"error": "no chain provider configured"})
	}
	account := c.QueryParam("account")
	if account == "" {
		account = s.session.Address()
	}
	if account == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "no account to query")
	}
	balance, err := s.chain.GetBalance(c.Request().Context(), account, c.Param("asset"))
	if err != nil {
		return fmt.Errorf("fail to get balance, err: %w", err)
	}
	resp := map[string]any{"asset": c.Param("asset"), "account": account}
	if balance == nil {
		resp["available"] = false
	} else {
		resp["available"] = true
		resp["balance"] = balance.String()
	}
	return c.JSON(http.StatusOK, resp)
}

type swapQuoteRequest struct {
	FromAsset string  `json:"fromAsset"`
	ToAsset   string  `json:"toAsset"`
	Amount    float64 `json:"amount"`
	VaultID   string  `json:"vaultId"`
}

func (s *Server) SwapQuote(c echo.Context) error {
	if s.swapClient == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"error": "no swap provider configured"})
	}
	var req swapQuoteRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("fail to parse request, err: %w", err)
	}
	if req.Amount <= 0 || req.FromAsset == "" || req.VaultID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "fromAsset, amount and vaultId are required")
	}
	// reject unknown vaults before committing to an order
	if _, err := s.session.Vault(req.VaultID); err != nil {
		return err
	}
	quote, err := s.swapClient.RequestQuote(swap.QuoteRequest{
		FromAsset: req.FromAsset,
		ToAsset:   req.ToAsset,
		Amount:    req.Amount,
	})
	if err != nil {
		return fmt.Errorf("fail to request quote, err: %w", err)
	}
	if s.poller != nil {
		s.poller.Track(quote.OrderID, req.VaultID, req.FromAsset)
	}
	return c.JSON(http.StatusOK, quote)
}

func (s *Server) SwapOrder(c echo.Context) error {
	if s.swapClient == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"error": "no swap provider configured"})
	}
	order, err := s.swapClient.OrderStatus(c.Param("id"))
	if err != nil {
		return fmt.Errorf("fail to get order status, err: %w", err)
	}
	return c.JSON(http.StatusOK, order)
}
