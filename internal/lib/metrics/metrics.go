// Package metrics объявляет бизнес-метрики Prometheus. Метрики отдаются на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы операций в метках.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

var (
	TokensCharged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markethelper_tokens_charged_total",
			Help: "Total number of tokens charged, by action",
		},
		[]string{"action"},
	)

	LedgerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markethelper_ledger_rejections_total",
			Help: "Total number of rejected charges, by reason",
		},
		[]string{"reason"},
	)

	Approvals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markethelper_approvals_total",
			Help: "Total number of processed approval requests",
		},
		[]string{"kind", "decision"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markethelper_notifications_total",
			Help: "Total number of notifications, by type and result",
		},
		[]string{"type", "result"},
	)

	CookieRegenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markethelper_cookie_regenerations_total",
			Help: "Total number of cookie file regenerations",
		},
		[]string{"result"},
	)
)

// Result возвращает метку исхода для ошибки.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
