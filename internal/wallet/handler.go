package wallet

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kwanza-pay/kwanza_wallet/internal/ledger"
	"github.com/kwanza-pay/kwanza_wallet/internal/pagination"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	balanceScale = 8
)

var orderFields = map[string]bool{
	"id":      true,
	"label":   true,
	"balance": true,
}

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// walletRequest tolerates a balance field of any shape so clients sending
// one get it silently discarded rather than a parse failure. Balance is
// read-only outside the transaction guard.
type walletRequest struct {
	Label   string          `json:"label"`
	Balance json.RawMessage `json:"balance"`
}

type walletResponse struct {
	ID      int64  `json:"id"`
	Label   string `json:"label"`
	Balance string `json:"balance"`
}

func toResponse(w ledger.Wallet) walletResponse {
	return walletResponse{
		ID:      w.ID,
		Label:   w.Label,
		Balance: w.Balance.StringFixed(balanceScale),
	}
}

// Create provisions a wallet. The balance always starts at zero.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req walletRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	w, err := h.service.Create(c.UserContext(), req.Label)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(w))
}

// Get returns a single wallet.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.ErrNotFound
	}

	w, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toResponse(w))
}

// Update rewrites the wallet label; any balance in the payload is ignored.
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.ErrNotFound
	}

	var req walletRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	w, err := h.service.Update(c.UserContext(), id, req.Label)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toResponse(w))
}

// Delete removes a wallet and cascades to its transactions.
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.ErrNotFound
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// List returns a filtered, ordered page of wallets.
func (h *Handler) List(c *fiber.Ctx) error {
	params, err := pagination.Parse(c, defaultPageSize, maxPageSize, orderFields)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	q := ledger.WalletQuery{
		Label:    c.Query("label"),
		OrderBy:  params.OrderBy,
		Desc:     params.Desc,
		Page:     params.Page,
		PageSize: params.PageSize,
	}

	if raw := c.Query("min_balance"); raw != "" {
		min, err := decimal.NewFromString(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid min_balance")
		}
		q.MinBalance = &min
	}
	if raw := c.Query("max_balance"); raw != "" {
		max, err := decimal.NewFromString(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid max_balance")
		}
		q.MaxBalance = &max
	}

	page, err := h.service.List(c.UserContext(), q)
	if err != nil {
		return mapError(err)
	}

	results := make([]walletResponse, 0, len(page.Wallets))
	for _, w := range page.Wallets {
		results = append(results, toResponse(w))
	}
	return c.JSON(pagination.Response(c, params, page.Total, results))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidLabel):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
