package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kwanza-pay/kwanza_wallet/internal/transaction"
)

// RegisterTransactionRoutes wires transaction endpoints. Transactions are
// immutable: mutation verbs on a transaction answer 405.
func RegisterTransactionRoutes(r fiber.Router, h *transaction.Handler) {
	r.Post("/transactions", h.Create)
	r.Get("/transactions", h.List)
	r.Get("/transactions/:id", h.Get)
	r.Put("/transactions/:id", h.MethodNotAllowed)
	r.Patch("/transactions/:id", h.MethodNotAllowed)
	r.Delete("/transactions/:id", h.MethodNotAllowed)
}
