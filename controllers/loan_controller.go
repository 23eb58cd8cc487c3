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

// LoanController обрабатывает запросы, связанные с займами
type LoanController struct {
	loanService *services.LoanService
}

// NewLoanController создает новый экземпляр LoanController
func NewLoanController(db *database.Database, email *services.EmailService) *LoanController {
	return &LoanController{
		loanService: services.NewLoanService(db.DB, email),
	}
}

// CreateLoan обрабатывает запрос на выдачу займа
func (c *LoanController) CreateLoan(w http.ResponseWriter, r *http.Request) {
	// Получаем идентификацию из контекста
	userID, tenantID, err := middleware.GetIdentityFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Создаем DTO для запроса
	var dto services.CreateLoanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dto.UserID = userID
	dto.TenantID = tenantID

	// Выдаем займ
	loan, err := c.loanService.Create(dto)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(loan)
}

// GetLoans обрабатывает запрос на получение займов линии сбора
func (c *LoanController) GetLoans(w http.ResponseWriter, r *http.Request) {
	_, tenantID, err := middleware.GetIdentityFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Получаем ID линии из параметров запроса
	lineID, err := strconv.ParseUint(r.URL.Query().Get("lineId"), 10, 32)
	if err != nil {
		http.Error(w, "Invalid line ID", http.StatusBadRequest)
		return
	}

	loans, err := c.loanService.GetByLineID(uint(lineID), tenantID)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(loans)
}

// GetLoan обрабатывает запрос на получение информации о займе
func (c *LoanController) GetLoan(w http.ResponseWriter, r *http.Request) {
	_, tenantID, err := middleware.GetIdentityFromContext(r)
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

	loan, err := c.loanService.GetByID(uint(loanID), tenantID)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(loan)
}

// UpdateLoan обрабатывает запрос на полное редактирование займа
func (c *LoanController) UpdateLoan(w http.ResponseWriter, r *http.Request) {
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

	var dto services.UpdateLoanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dto.LoanID = uint(loanID)
	dto.UserID = userID
	dto.TenantID = tenantID

	loan, err := c.loanService.Update(dto)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(loan)
}

// UpdateLoanStatus обрабатывает запрос на смену статуса займа
func (c *LoanController) UpdateLoanStatus(w http.ResponseWriter, r *http.Request) {
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

	var dto services.UpdateLoanStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dto.LoanID = uint(loanID)
	dto.TenantID = tenantID

	loan, err := c.loanService.UpdateStatus(dto)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(loan)
}
