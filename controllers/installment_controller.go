package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"microloans/database"
	"microloans/middleware"
	"microloans/services"
)

// InstallmentController обрабатывает запросы, связанные со взносами
type InstallmentController struct {
	ledger *services.InstallmentService
}

// NewInstallmentController создает новый экземпляр InstallmentController
func NewInstallmentController(db *database.Database, email *services.EmailService) *InstallmentController {
	return &InstallmentController{
		ledger: services.NewInstallmentService(db.DB, email),
	}
}

// RecordPayment обрабатывает запрос на запись дневного платежа по займу
func (c *InstallmentController) RecordPayment(w http.ResponseWriter, r *http.Request) {
	// Получаем идентификацию из контекста
	userID, tenantID, err := middleware.GetIdentityFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Получаем ID займа из URL
	vars := mux.Vars(r)
	loanID, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	// Создаем DTO для запроса
	var dto services.RecordPaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dto.LoanID = uint(loanID)
	dto.UserID = userID
	dto.TenantID = tenantID

	// Записываем платеж
	installment, err := c.ledger.RecordPayment(dto)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(installment)
}

// MarkMissed обрабатывает запрос на отметку пропущенного дня по займу
func (c *InstallmentController) MarkMissed(w http.ResponseWriter, r *http.Request) {
	userID, tenantID, err := middleware.GetIdentityFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	loanID, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	dto := services.MarkMissedDTO{
		LoanID:   uint(loanID),
		UserID:   userID,
		TenantID: tenantID,
	}

	installment, err := c.ledger.MarkMissed(dto)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(installment)
}

// MarkFullyPaid обрабатывает запрос на полное погашение взноса
func (c *InstallmentController) MarkFullyPaid(w http.ResponseWriter, r *http.Request) {
	userID, tenantID, err := middleware.GetIdentityFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	installmentID, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid installment ID", http.StatusBadRequest)
		return
	}

	var dto services.MarkPaidDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dto.InstallmentID = uint(installmentID)
	dto.UserID = userID
	dto.TenantID = tenantID

	installment, err := c.ledger.MarkFullyPaid(dto)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(installment)
}

// MarkPartiallyPaid обрабатывает запрос на частичное погашение взноса
func (c *InstallmentController) MarkPartiallyPaid(w http.ResponseWriter, r *http.Request) {
	userID, tenantID, err := middleware.GetIdentityFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	installmentID, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid installment ID", http.StatusBadRequest)
		return
	}

	var dto services.MarkPaidDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dto.InstallmentID = uint(installmentID)
	dto.UserID = userID
	dto.TenantID = tenantID

	installment, err := c.ledger.MarkPartiallyPaid(dto)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(installment)
}

// GetInstallments обрабатывает запрос на получение истории взносов займа
func (c *InstallmentController) GetInstallments(w http.ResponseWriter, r *http.Request) {
	_, tenantID, err := middleware.GetIdentityFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	loanID, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	installments, err := c.ledger.GetByLoanID(uint(loanID), tenantID)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(installments)
}
