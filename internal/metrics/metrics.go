package metrics

import (
	"errors"
	"strconv"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	transactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_transactions_total",
		Help: "Transaction creation attempts by result.",
	}, []string{"result"})

	rejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_transaction_rejections_total",
		Help: "Rejected transaction creations by reason.",
	}, []string{"reason"})

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(transactionsTotal, rejectionsTotal, httpRequestsTotal)
}

// TransactionAccepted records a committed transaction.
func TransactionAccepted() {
	transactionsTotal.WithLabelValues("accepted").Inc()
}

// TransactionRejected records a rejected transaction with its reason.
func TransactionRejected(reason string) {
	transactionsTotal.WithLabelValues("rejected").Inc()
	rejectionsTotal.WithLabelValues(reason).Inc()
}

// HTTPRequests counts requests per route after the handler chain ran.
func HTTPRequests() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		httpRequestsTotal.WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(status)).Inc()
		return err
	}
}

// Handler exposes the Prometheus scrape endpoint as a Fiber handler.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
