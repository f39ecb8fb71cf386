package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kwanza-pay/kwanza_wallet/internal/wallet"
)

// RegisterWalletRoutes wires wallet CRUD endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets", h.List)
	r.Get("/wallets/:id", h.Get)
	r.Put("/wallets/:id", h.Update)
	r.Patch("/wallets/:id", h.Update)
	r.Delete("/wallets/:id", h.Delete)
}
