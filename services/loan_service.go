package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"microloans/models"
	"microloans/utils"
)

// CreateLoanDTO представляет данные для выдачи займа
type CreateLoanDTO struct {
	CustomerID uint    `json:"customer_id" validate:"required"`
	LineID     uint    `json:"line_id" validate:"required"`
	Principal  float64 `json:"principal" validate:"required,gt=0"`
	StartDate  string  `json:"start_date,omitempty"`
	UserID     uint    `json:"-" validate:"required"`
	TenantID   uint    `json:"-" validate:"required"`
}

// UpdateLoanDTO представляет данные для полного редактирования займа
type UpdateLoanDTO struct {
	LoanID    uint    `json:"-" validate:"required"`
	Principal float64 `json:"principal" validate:"required,gt=0"`
	StartDate string  `json:"start_date" validate:"required"`
	UserID    uint    `json:"-" validate:"required"`
	TenantID  uint    `json:"-" validate:"required"`
}

// UpdateLoanStatusDTO представляет данные для смены статуса займа
type UpdateLoanStatusDTO struct {
	LoanID   uint   `json:"-" validate:"required"`
	Status   string `json:"status" validate:"required,oneof=ONGOING COMPLETED PENDING NIL"`
	TenantID uint   `json:"-" validate:"required"`
}

// LoanService предоставляет методы для работы с займами
type LoanService struct {
	db        *gorm.DB
	validator *validator.Validate
	email     *EmailService
	now       func() time.Time
}

// NewLoanService создает новый экземпляр LoanService
func NewLoanService(db *gorm.DB, email *EmailService) *LoanService {
	return &LoanService{
		db:        db,
		validator: validator.New(),
		email:     email,
		now:       time.Now,
	}
}

// SetClock подменяет источник текущего времени
func (s *LoanService) SetClock(now func() time.Time) {
	s.now = now
}

// Create выдает новый займ: проверяет допуск к линии сбора, рассчитывает график
// и финансовые параметры, сохраняет займ с начальным остатком равным сумме возврата
func (s *LoanService) Create(dto CreateLoanDTO) (*models.Loan, error) {
	// Валидируем DTO
	if err := s.validator.Struct(dto); err != nil {
		return nil, validationError(err)
	}

	// Загружаем линию сбора вместе с кредитным продуктом
	var line models.CollectionLine
	if err := s.db.Preload("LoanProduct").First(&line, dto.LineID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLineNotFound
		}
		return nil, err
	}

	// Сначала проверяем арендатора, затем список доступа
	if err := CheckLineTenant(&line, dto.TenantID); err != nil {
		return nil, err
	}
	if err := CheckLineAccess(&line, dto.UserID); err != nil {
		return nil, err
	}

	// Проверяем существование заемщика
	var customer models.Customer
	if err := s.db.First(&customer, dto.CustomerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	if customer.TenantID != dto.TenantID {
		return nil, ErrTenantMismatch
	}

	// Разбираем дату выдачи, по умолчанию сегодня
	startDate := DateOnly(s.now())
	if dto.StartDate != "" {
		parsed, err := ParseLoanDate(dto.StartDate)
		if err != nil {
			return nil, err
		}
		startDate = parsed
	}

	// Рассчитываем дату окончания займа
	endDate, err := LoanEndDate(&line.LoanProduct, startDate)
	if err != nil {
		return nil, err
	}

	// Рассчитываем финансовые параметры
	origination, err := CalculateOrigination(decimal.NewFromFloat(dto.Principal), &line.LoanProduct)
	if err != nil {
		return nil, err
	}

	loan := &models.Loan{
		TenantID:               dto.TenantID,
		CustomerID:             dto.CustomerID,
		LineID:                 dto.LineID,
		Principal:              decimal.NewFromFloat(dto.Principal).Round(2),
		InterestAmount:         origination.InterestAmount,
		DisbursedAmount:        origination.DisbursedAmount,
		TotalPayable:           origination.TotalPayable,
		OutstandingBalance:     origination.TotalPayable,
		InstallmentAmount:      origination.InstallmentAmount,
		InitialDeductionAmount: origination.InitialDeductionAmount,
		TotalInstallments:      origination.TotalInstallments,
		StartDate:              startDate,
		EndDate:                endDate,
		Status:                 models.LoanStatusOngoing,
		IsActive:               true,
		CreatedBy:              dto.UserID,
	}

	if err := s.db.Create(loan).Error; err != nil {
		utils.GetMetrics().RecordLoanOperation("create", err)
		return nil, err
	}

	utils.GetMetrics().RecordLoanOperation("create", nil)

	// Уведомляем выдавшего пользователя, ошибки отправки не прерывают операцию
	s.notifyLoanIssued(loan)

	return loan, nil
}

// GetByID возвращает займ со взносами с проверкой арендатора
func (s *LoanService) GetByID(loanID uint, tenantID uint) (*models.Loan, error) {
	var loan models.Loan
	if err := s.db.Preload("Installments", func(db *gorm.DB) *gorm.DB {
		return db.Order("installments.due_date ASC")
	}).First(&loan, loanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}

	if loan.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}

	return &loan, nil
}

// GetByLineID возвращает займы линии сбора с проверкой арендатора
func (s *LoanService) GetByLineID(lineID uint, tenantID uint) ([]models.Loan, error) {
	var line models.CollectionLine
	if err := s.db.First(&line, lineID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLineNotFound
		}
		return nil, err
	}
	if err := CheckLineTenant(&line, tenantID); err != nil {
		return nil, err
	}

	var loans []models.Loan
	if err := s.db.Where("line_id = ?", lineID).
		Preload("Customer").
		Find(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}

// Update выполняет полное редактирование займа: пересчитывает финансовые параметры
// от новой суммы и даты и восстанавливает остаток по истории взносов
func (s *LoanService) Update(dto UpdateLoanDTO) (*models.Loan, error) {
	// Валидируем DTO
	if err := s.validator.Struct(dto); err != nil {
		return nil, validationError(err)
	}

	startDate, err := ParseLoanDate(dto.StartDate)
	if err != nil {
		return nil, err
	}

	// Начинаем транзакцию
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	var loan models.Loan
	if err := tx.First(&loan, dto.LoanID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}

	if loan.TenantID != dto.TenantID {
		tx.Rollback()
		return nil, ErrTenantMismatch
	}

	var line models.CollectionLine
	if err := tx.Preload("LoanProduct").First(&line, loan.LineID).Error; err != nil {
		tx.Rollback()
		return nil, ErrLineNotFound
	}
	if err := CheckLineAccess(&line, dto.UserID); err != nil {
		tx.Rollback()
		return nil, err
	}

	endDate, err := LoanEndDate(&line.LoanProduct, startDate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	origination, err := CalculateOrigination(decimal.NewFromFloat(dto.Principal), &line.LoanProduct)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// Считаем сумму уже внесенных платежей по всем взносам займа
	var installments []models.Installment
	if err := tx.Where("loan_id = ?", loan.ID).Find(&installments).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при получении взносов займа")
	}
	collected := decimal.Zero
	for _, inst := range installments {
		collected = collected.Add(inst.Paid())
	}

	loan.Principal = decimal.NewFromFloat(dto.Principal).Round(2)
	loan.InterestAmount = origination.InterestAmount
	loan.DisbursedAmount = origination.DisbursedAmount
	loan.TotalPayable = origination.TotalPayable
	loan.InstallmentAmount = origination.InstallmentAmount
	loan.InitialDeductionAmount = origination.InitialDeductionAmount
	loan.TotalInstallments = origination.TotalInstallments
	loan.StartDate = startDate
	loan.EndDate = endDate
	loan.OutstandingBalance = balanceOf(origination.TotalPayable, collected)

	if err := tx.Save(&loan).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при обновлении займа")
	}

	// Подтверждаем транзакцию
	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	utils.GetMetrics().RecordLoanOperation("update", nil)

	return &loan, nil
}

// UpdateStatus выполняет явный перевод займа в другой статус
func (s *LoanService) UpdateStatus(dto UpdateLoanStatusDTO) (*models.Loan, error) {
	// Валидируем DTO
	if err := s.validator.Struct(dto); err != nil {
		return nil, validationError(err)
	}

	var loan models.Loan
	if err := s.db.First(&loan, dto.LoanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}

	if loan.TenantID != dto.TenantID {
		return nil, ErrTenantMismatch
	}

	loan.Status = models.LoanStatus(dto.Status)
	loan.IsActive = loan.Status == models.LoanStatusOngoing

	if err := s.db.Save(&loan).Error; err != nil {
		return nil, errors.New("ошибка при обновлении статуса займа")
	}

	utils.GetMetrics().RecordLoanOperation("status", nil)

	return &loan, nil
}

// notifyLoanIssued отправляет уведомление о выдаче займа выдавшему пользователю
func (s *LoanService) notifyLoanIssued(loan *models.Loan) {
	if s.email == nil {
		return
	}

	var user models.User
	if err := s.db.First(&user, loan.CreatedBy).Error; err != nil {
		return
	}

	go func() {
		if err := s.email.SendLoanIssuedNotification(
			user.Email,
			loan.ID,
			loan.DisbursedAmount.StringFixed(2),
			loan.InstallmentAmount.StringFixed(2),
			loan.TotalInstallments,
		); err != nil {
			log.Printf("Ошибка при отправке уведомления о выдаче займа: %v", err)
		}
	}()
}

// balanceOf вычисляет остаток долга, не опускаясь ниже нуля
func balanceOf(totalPayable, collected decimal.Decimal) decimal.Decimal {
	balance := totalPayable.Sub(collected)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// validationError переводит ошибки валидатора в сообщение для пользователя
func validationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var errorMessages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
		case "gt":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть больше 0")
		case "gte":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть не меньше 0")
		case "oneof":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть одним из: "+e.Param())
		}
	}
	return errors.New(strings.Join(errorMessages, "; "))
}
