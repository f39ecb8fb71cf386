package transaction

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kwanza-pay/kwanza_wallet/internal/ledger"
	"github.com/kwanza-pay/kwanza_wallet/internal/pagination"
)

const (
	defaultPageSize = 10
	maxPageSize     = 1000
)

var orderFields = map[string]bool{
	"id":         true,
	"txid":       true,
	"amount":     true,
	"created_at": true,
}

// Handler exposes transaction HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a transaction HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	WalletID int64           `json:"wallet_id"`
	Txid     string          `json:"txid"`
	Amount   decimal.Decimal `json:"amount"`
}

type transactionResponse struct {
	ID        int64  `json:"id"`
	WalletID  int64  `json:"wallet_id"`
	Txid      string `json:"txid"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

func toResponse(t ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:        t.ID,
		WalletID:  t.WalletID,
		Txid:      t.Txid,
		Amount:    t.Amount.StringFixed(amountScale),
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Create applies a signed amount to a wallet through the balance guard.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	created, err := h.service.Create(c.UserContext(), req.WalletID, req.Txid, req.Amount)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(created))
}

// Get returns a single transaction.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.ErrNotFound
	}

	t, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toResponse(t))
}

// List returns a filtered, ordered page of transactions.
func (h *Handler) List(c *fiber.Ctx) error {
	params, err := pagination.Parse(c, defaultPageSize, maxPageSize, orderFields)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	q := ledger.TransactionQuery{
		Txid:     c.Query("txid"),
		OrderBy:  params.OrderBy,
		Desc:     params.Desc,
		Page:     params.Page,
		PageSize: params.PageSize,
	}

	if raw := c.Query("min_amount"); raw != "" {
		min, err := decimal.NewFromString(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid min_amount")
		}
		q.MinAmount = &min
	}
	if raw := c.Query("max_amount"); raw != "" {
		max, err := decimal.NewFromString(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid max_amount")
		}
		q.MaxAmount = &max
	}
	if raw := c.Query("wallet_id"); raw != "" {
		walletID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid wallet_id")
		}
		q.WalletID = &walletID
	}
	if raw := c.Query("created_after"); raw != "" {
		after, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid created_after")
		}
		q.CreatedAfter = &after
	}
	if raw := c.Query("created_before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid created_before")
		}
		q.CreatedBefore = &before
	}

	page, err := h.service.List(c.UserContext(), q)
	if err != nil {
		return mapError(err)
	}

	results := make([]transactionResponse, 0, len(page.Transactions))
	for _, t := range page.Transactions {
		results = append(results, toResponse(t))
	}
	return c.JSON(pagination.Response(c, params, page.Total, results))
}

// MethodNotAllowed rejects transaction mutation attempts: transactions are
// immutable once committed.
func (h *Handler) MethodNotAllowed(c *fiber.Ctx) error {
	return fiber.ErrMethodNotAllowed
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrTransactionNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrZeroAmount),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrDuplicateTxid),
		errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidTxid):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
