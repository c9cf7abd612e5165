// Package metrics объявляет счётчики prometheus для операций идентификации и оплаты.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Значения метки result.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_auth_logins_total",
		Help: "Login attempts by result.",
	}, []string{"result"})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_auth_registrations_total",
		Help: "Registration attempts by result.",
	}, []string{"result"})

	PasswordResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_password_reset_total",
		Help: "Password reset operations by stage (request, complete) and result.",
	}, []string{"stage", "result"})

	PaymentVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_payment_verifications_total",
		Help: "Payment signature verifications by result.",
	}, []string{"result"})
)

// Result переводит ошибку операции в значение метки result.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
