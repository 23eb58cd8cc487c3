package controllers

import (
	"errors"
	"net/http"

	"microloans/services"
)

// statusForError переводит типизированные ошибки сервисов в HTTP статусы
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrLoanNotFound),
		errors.Is(err, services.ErrInstallmentNotFound),
		errors.Is(err, services.ErrLineNotFound),
		errors.Is(err, services.ErrCustomerNotFound):
		return http.StatusNotFound

	case errors.Is(err, services.ErrTenantMismatch),
		errors.Is(err, services.ErrNoAccessAssignment),
		errors.Is(err, services.ErrNotAuthorized):
		return http.StatusForbidden

	case errors.Is(err, services.ErrAlreadyPaid):
		return http.StatusConflict

	case errors.Is(err, services.ErrInvalidPrincipal),
		errors.Is(err, services.ErrDivisionByZero),
		errors.Is(err, services.ErrNegativeDisbursement),
		errors.Is(err, services.ErrInvalidCadence),
		errors.Is(err, services.ErrInvalidDate),
		errors.Is(err, services.ErrAmountMismatch),
		errors.Is(err, services.ErrOverpaymentUseFullPaid):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
