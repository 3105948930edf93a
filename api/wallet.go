package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/caveau-digitale/caveaud/internal/session"
	"github.com/caveau-digitale/caveaud/internal/wallet"
)

type pinRequest struct {
	Pin string `json:"pin"`
}

type restoreRequest struct {
	Words []string `json:"words"`
	Reset bool     `json:"reset"`
}

type wipeRequest struct {
	Confirm bool `json:"confirm"`
}

func (s *Server) WalletStatus(c echo.Context) error {
	provisioned, err := s.session.Provisioned(c.Request().Context())
	if err != nil {
		return fmt.Errorf("fail to check provisioning, err: %w", err)
	}
	resp := map[string]any{
		"state":       s.session.State(),
		"provisioned": provisioned,
	}
	if addr := s.session.Address(); addr != "" {
		resp["address"] = addr
		resp["short_address"] = wallet.ShortAddress(addr)
	}
	if s.session.State() == session.StateSettingPin {
		resp["pin_stage"] = s.session.PinStage()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) CreateWallet(c echo.Context) error {
	address, words, err := s.session.CreateWallet(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"address": address,
		"words":   words,
		"state":   s.session.State(),
	})
}

func (s *Server) ConfirmSeed(c echo.Context) error {
	if err := s.session.ConfirmSeed(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"state": s.session.State()})
}

func (s *Server) SubmitPin(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("fail to parse request, err: %w", err)
	}
	stage, err := s.session.SubmitPin(c.Request().Context(), req.Pin)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"state":     s.session.State(),
		"pin_stage": stage,
	})
}

func (s *Server) Unlock(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("fail to parse request, err: %w", err)
	}
	if err := s.session.Unlock(c.Request().Context(), req.Pin); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"state":       s.session.State(),
		"address":     s.session.Address(),
		"load_result": s.session.LastLoad(),
	})
}

func (s *Server) Restore(c echo.Context) error {
	var req restoreRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("fail to parse request, err: %w", err)
	}
	if err := s.session.Restore(c.Request().Context(), req.Words, req.Reset); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"state":   s.session.State(),
		"address": s.session.Address(),
	})
}

func (s *Server) RevealPhrase(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("fail to parse request, err: %w", err)
	}
	words, err := s.session.RevealPhrase(c.Request().Context(), req.Pin)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"words": words})
}

func (s *Server) Lock(c echo.Context) error {
	s.session.Lock()
	return c.JSON(http.StatusOK, map[string]any{"state": s.session.State()})
}

func (s *Server) WipeWallet(c echo.Context) error {
	var req wipeRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("fail to parse request, err: %w", err)
	}
	if err := s.session.Wipe(c.Request().Context(), req.Confirm); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"state": s.session.State()})
}
