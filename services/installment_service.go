package services

import (
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"microloans/models"
	"microloans/utils"
)

// RecordPaymentDTO представляет данные дневного платежа по займу
type RecordPaymentDTO struct {
	LoanID       uint    `json:"-" validate:"required"`
	Amount       float64 `json:"amount" validate:"gte=0"`
	CashAmount   float64 `json:"cash_amount" validate:"gte=0"`
	OnlineAmount float64 `json:"online_amount" validate:"gte=0"`
	UserID       uint    `json:"-" validate:"required"`
	TenantID     uint    `json:"-" validate:"required"`
}

// MarkPaidDTO представляет данные для погашения существующего взноса
type MarkPaidDTO struct {
	InstallmentID uint    `json:"-" validate:"required"`
	CashAmount    float64 `json:"cash_amount" validate:"gte=0"`
	OnlineAmount  float64 `json:"online_amount" validate:"gte=0"`
	UserID        uint    `json:"-" validate:"required"`
	TenantID      uint    `json:"-" validate:"required"`
}

// MarkMissedDTO представляет данные для отметки пропущенного взноса
type MarkMissedDTO struct {
	LoanID   uint `json:"-" validate:"required"`
	UserID   uint `json:"-" validate:"required"`
	TenantID uint `json:"-" validate:"required"`
}

// InstallmentService ведет учет взносов: создает или обновляет дневную запись займа
// и поддерживает инвариант остатка долга после каждой операции
type InstallmentService struct {
	db        *gorm.DB
	validator *validator.Validate
	email     *EmailService
	now       func() time.Time
}

// NewInstallmentService создает новый экземпляр InstallmentService
func NewInstallmentService(db *gorm.DB, email *EmailService) *InstallmentService {
	return &InstallmentService{
		db:        db,
		validator: validator.New(),
		email:     email,
		now:       time.Now,
	}
}

// SetClock подменяет источник текущего времени
func (s *InstallmentService) SetClock(now func() time.Time) {
	s.now = now
}

// RecordPayment создает или обновляет сегодняшний взнос по займу.
// Статус выводится из суммы платежа, остаток долга пересчитывается
// по всей истории взносов в той же транзакции, что и запись взноса.
func (s *InstallmentService) RecordPayment(dto RecordPaymentDTO) (*models.Installment, error) {
	// Валидируем DTO
	if err := s.validator.Struct(dto); err != nil {
		return nil, validationError(err)
	}

	amount := decimal.NewFromFloat(dto.Amount).Round(2)
	cash := decimal.NewFromFloat(dto.CashAmount).Round(2)
	online := decimal.NewFromFloat(dto.OnlineAmount).Round(2)

	// Сумма платежа обязана совпадать с суммой по каналам оплаты
	if !amount.Equal(cash.Add(online)) {
		return nil, ErrAmountMismatch
	}

	// Начинаем транзакцию
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	loan, line, err := s.loadLoanWithLine(tx, dto.LoanID, dto.TenantID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// Допуск к линии сбора проверяется до любых записей
	if err := CheckLineAccess(line, dto.UserID); err != nil {
		tx.Rollback()
		return nil, err
	}

	status := deriveStatus(amount, loan.InstallmentAmount)
	remaining := loan.InstallmentAmount.Sub(amount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	installment, err := s.upsertDayRecord(tx, loan, &line.LoanProduct, dayRecord{
		Amount:       amount,
		CashAmount:   cash,
		OnlineAmount: online,
		Remaining:    remaining,
		Status:       status,
		CollectedBy:  dto.UserID,
	})
	if err != nil {
		tx.Rollback()
		utils.GetMetrics().RecordInstallment(string(status), err)
		return nil, err
	}

	completed, err := s.recomputeBalance(tx, loan, installment)
	if err != nil {
		tx.Rollback()
		utils.GetMetrics().RecordInstallment(string(status), err)
		return nil, err
	}

	// Подтверждаем транзакцию
	if err := tx.Commit().Error; err != nil {
		utils.GetMetrics().RecordInstallment(string(status), err)
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	utils.GetMetrics().RecordInstallment(string(status), nil)
	utils.LogLedger(loan.ID, installment.DueDate, string(status),
		installment.Paid().StringFixed(2), loan.OutstandingBalance.StringFixed(2))

	if completed {
		s.notifyLoanRepaid(loan)
	}

	return installment, nil
}

// MarkFullyPaid отмечает существующий взнос оплаченным полностью
func (s *InstallmentService) MarkFullyPaid(dto MarkPaidDTO) (*models.Installment, error) {
	// Валидируем DTO
	if err := s.validator.Struct(dto); err != nil {
		return nil, validationError(err)
	}

	cash := decimal.NewFromFloat(dto.CashAmount).Round(2)
	online := decimal.NewFromFloat(dto.OnlineAmount).Round(2)

	// Начинаем транзакцию
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	installment, loan, line, err := s.loadInstallmentWithLoan(tx, dto.InstallmentID, dto.TenantID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := CheckLineAccess(line, dto.UserID); err != nil {
		tx.Rollback()
		return nil, err
	}

	// Повторное погашение оплаченного взноса отклоняется без изменений состояния
	if installment.Status == models.InstallmentStatusPaid {
		tx.Rollback()
		return nil, ErrAlreadyPaid
	}

	installment.CashAmount = cash
	installment.OnlineAmount = online
	installment.RemainingAmount = decimal.Zero
	installment.Status = models.InstallmentStatusPaid
	installment.CollectedBy = dto.UserID

	if err := tx.Save(installment).Error; err != nil {
		tx.Rollback()
		utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusPaid), err)
		return nil, errors.New("ошибка при обновлении взноса")
	}

	completed, err := s.recomputeBalance(tx, loan, installment)
	if err != nil {
		tx.Rollback()
		utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusPaid), err)
		return nil, err
	}

	// Подтверждаем транзакцию
	if err := tx.Commit().Error; err != nil {
		utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusPaid), err)
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusPaid), nil)
	utils.LogLedger(loan.ID, installment.DueDate, string(models.InstallmentStatusPaid),
		installment.Paid().StringFixed(2), loan.OutstandingBalance.StringFixed(2))

	if completed {
		s.notifyLoanRepaid(loan)
	}

	return installment, nil
}

// MarkPartiallyPaid отмечает существующий взнос оплаченным частично
func (s *InstallmentService) MarkPartiallyPaid(dto MarkPaidDTO) (*models.Installment, error) {
	// Валидируем DTO
	if err := s.validator.Struct(dto); err != nil {
		return nil, validationError(err)
	}

	cash := decimal.NewFromFloat(dto.CashAmount).Round(2)
	online := decimal.NewFromFloat(dto.OnlineAmount).Round(2)

	// Начинаем транзакцию
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	installment, loan, line, err := s.loadInstallmentWithLoan(tx, dto.InstallmentID, dto.TenantID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := CheckLineAccess(line, dto.UserID); err != nil {
		tx.Rollback()
		return nil, err
	}

	// Платеж, покрывающий взнос целиком, должен идти через полное погашение
	remaining := installment.Amount.Sub(cash.Add(online))
	if remaining.LessThanOrEqual(decimal.Zero) {
		tx.Rollback()
		return nil, ErrOverpaymentUseFullPaid
	}

	installment.CashAmount = cash
	installment.OnlineAmount = online
	installment.RemainingAmount = remaining
	installment.Status = models.InstallmentStatusPartially
	installment.CollectedBy = dto.UserID

	if err := tx.Save(installment).Error; err != nil {
		tx.Rollback()
		utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusPartially), err)
		return nil, errors.New("ошибка при обновлении взноса")
	}

	if _, err := s.recomputeBalance(tx, loan, installment); err != nil {
		tx.Rollback()
		utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusPartially), err)
		return nil, err
	}

	// Подтверждаем транзакцию
	if err := tx.Commit().Error; err != nil {
		utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusPartially), err)
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusPartially), nil)
	utils.LogLedger(loan.ID, installment.DueDate, string(models.InstallmentStatusPartially),
		installment.Paid().StringFixed(2), loan.OutstandingBalance.StringFixed(2))

	return installment, nil
}

// MarkMissed отмечает сегодняшний взнос по займу как пропущенный.
// Запись участвует в пересчете остатка с нулевым вкладом.
func (s *InstallmentService) MarkMissed(dto MarkMissedDTO) (*models.Installment, error) {
	// Валидируем DTO
	if err := s.validator.Struct(dto); err != nil {
		return nil, validationError(err)
	}

	// Начинаем транзакцию
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	loan, line, err := s.loadLoanWithLine(tx, dto.LoanID, dto.TenantID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := CheckLineAccess(line, dto.UserID); err != nil {
		tx.Rollback()
		return nil, err
	}

	installment, err := s.upsertDayRecord(tx, loan, &line.LoanProduct, dayRecord{
		Amount:       decimal.Zero,
		CashAmount:   decimal.Zero,
		OnlineAmount: decimal.Zero,
		Remaining:    loan.InstallmentAmount,
		Status:       models.InstallmentStatusMissed,
		CollectedBy:  dto.UserID,
	})
	if err != nil {
		tx.Rollback()
		utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusMissed), err)
		return nil, err
	}

	if _, err := s.recomputeBalance(tx, loan, installment); err != nil {
		tx.Rollback()
		utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusMissed), err)
		return nil, err
	}

	// Подтверждаем транзакцию
	if err := tx.Commit().Error; err != nil {
		utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusMissed), err)
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusMissed), nil)
	utils.LogLedger(loan.ID, installment.DueDate, string(models.InstallmentStatusMissed),
		installment.Paid().StringFixed(2), loan.OutstandingBalance.StringFixed(2))

	return installment, nil
}

// GetByLoanID возвращает историю взносов займа с проверкой арендатора
func (s *InstallmentService) GetByLoanID(loanID uint, tenantID uint) ([]models.Installment, error) {
	var loan models.Loan
	if err := s.db.First(&loan, loanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	if loan.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}

	var installments []models.Installment
	if err := s.db.Where("loan_id = ?", loanID).
		Order("due_date ASC").
		Find(&installments).Error; err != nil {
		return nil, err
	}
	return installments, nil
}

// CloseCollectionDay закрывает день сбора: каждому действующему займу с ежедневной
// периодичностью без записи за дату закрытия создается пропущенный взнос.
// Административный путь планировщика, список доступа линии не применяется.
func (s *InstallmentService) CloseCollectionDay(closeDate time.Time) error {
	date := DateOnly(closeDate)

	var loans []models.Loan
	if err := s.db.Where("status = ? AND is_active = ?", models.LoanStatusOngoing, true).
		Preload("Line.LoanProduct").
		Find(&loans).Error; err != nil {
		return errors.New("ошибка при получении действующих займов")
	}

	for i := range loans {
		loan := &loans[i]
		if loan.Line.LoanProduct.CollectionCadence != models.CadenceDaily {
			continue
		}

		// Займы, выданные после даты закрытия, пропускаем
		if loan.StartDate.After(date) {
			continue
		}

		if err := s.closeLoanDay(loan, date); err != nil {
			log.Printf("Ошибка при закрытии дня сбора для займа %d: %v", loan.ID, err)
			utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusMissed), err)
			continue
		}
	}

	return nil
}

// closeLoanDay создает пропущенный взнос за дату закрытия, если записи еще нет
func (s *InstallmentService) closeLoanDay(loan *models.Loan, date time.Time) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return errors.New("ошибка при начале транзакции")
	}

	var existing models.Installment
	err := tx.Where("loan_id = ? AND due_date = ?", loan.ID, date).First(&existing).Error
	if err == nil {
		// Запись за эту дату уже есть, займ обслужен
		tx.Rollback()
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return err
	}

	nextDue, err := NextDueAt(&loan.Line.LoanProduct, date)
	if err != nil {
		tx.Rollback()
		return err
	}

	installment := &models.Installment{
		TenantID:        loan.TenantID,
		LoanID:          loan.ID,
		DueDate:         date,
		Amount:          decimal.Zero,
		CashAmount:      decimal.Zero,
		OnlineAmount:    decimal.Zero,
		RemainingAmount: loan.InstallmentAmount,
		Status:          models.InstallmentStatusMissed,
		CollectedBy:     0,
		NextDueAt:       nextDue,
	}

	if err := tx.Create(installment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Конкурентная запись уже закрыла день
			tx.Rollback()
			return nil
		}
		tx.Rollback()
		return err
	}

	if _, err := s.recomputeBalance(tx, loan, installment); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return errors.New("ошибка при подтверждении транзакции")
	}

	utils.GetMetrics().RecordInstallment(string(models.InstallmentStatusMissed), nil)
	utils.LogLedger(loan.ID, installment.DueDate, string(models.InstallmentStatusMissed),
		installment.Paid().StringFixed(2), loan.OutstandingBalance.StringFixed(2))

	return nil
}

// dayRecord описывает поля создаваемой или обновляемой дневной записи
type dayRecord struct {
	Amount       decimal.Decimal
	CashAmount   decimal.Decimal
	OnlineAmount decimal.Decimal
	Remaining    decimal.Decimal
	Status       models.InstallmentStatus
	CollectedBy  uint
}

// upsertDayRecord создает или обновляет взнос займа за текущую дату.
// Поиск идет по ключу (loan_id, due_date); при проигрыше гонки вставки
// конфликт уникального индекса обрабатывается повторным чтением и обновлением.
func (s *InstallmentService) upsertDayRecord(tx *gorm.DB, loan *models.Loan, product *models.LoanProduct, record dayRecord) (*models.Installment, error) {
	today := DateOnly(s.now())

	// Срок следующего платежа пересчитывается от сегодняшней даты при каждой записи
	nextDue, err := NextDueAt(product, today)
	if err != nil {
		return nil, err
	}

	var installment models.Installment
	err = tx.Where("loan_id = ? AND due_date = ?", loan.ID, today).First(&installment).Error
	switch {
	case err == nil:
		// Повторная запись за тот же день обновляет существующую строку
		applyDayRecord(&installment, record, nextDue)
		if err := tx.Save(&installment).Error; err != nil {
			return nil, errors.New("ошибка при обновлении взноса")
		}
		return &installment, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		installment = models.Installment{
			TenantID: loan.TenantID,
			LoanID:   loan.ID,
			DueDate:  today,
		}
		applyDayRecord(&installment, record, nextDue)

		// Вставка идет под точкой сохранения: на postgres ошибка уникального
		// индекса обрывает транзакцию, и без отката к точке сохранения любое
		// следующее выражение вернет "current transaction is aborted"
		if err := tx.SavePoint("day_record").Error; err != nil {
			return nil, errors.New("ошибка при создании точки сохранения")
		}
		if err := tx.Create(&installment).Error; err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, errors.New("ошибка при создании взноса")
			}
			// Конкурентная вставка опередила нас, повторяем как обновление
			if err := tx.RollbackTo("day_record").Error; err != nil {
				return nil, errors.New("ошибка при откате к точке сохранения")
			}
			if err := tx.Where("loan_id = ? AND due_date = ?", loan.ID, today).First(&installment).Error; err != nil {
				return nil, errors.New("ошибка при повторном чтении взноса")
			}
			applyDayRecord(&installment, record, nextDue)
			if err := tx.Save(&installment).Error; err != nil {
				return nil, errors.New("ошибка при обновлении взноса")
			}
		}
		return &installment, nil

	default:
		return nil, err
	}
}

// applyDayRecord переносит поля дневной записи на модель взноса
func applyDayRecord(installment *models.Installment, record dayRecord, nextDue time.Time) {
	installment.Amount = record.Amount
	installment.CashAmount = record.CashAmount
	installment.OnlineAmount = record.OnlineAmount
	installment.RemainingAmount = record.Remaining
	installment.Status = record.Status
	installment.CollectedBy = record.CollectedBy
	installment.NextDueAt = nextDue
}

// recomputeBalance пересчитывает остаток долга по всем взносам займа.
// Строка current берется из аргумента, ее сохраненная версия пропускается,
// поэтому пересчет корректен и для вставки, и для замены.
// Возвращает признак полного погашения займа.
func (s *InstallmentService) recomputeBalance(tx *gorm.DB, loan *models.Loan, current *models.Installment) (bool, error) {
	var installments []models.Installment
	if err := tx.Where("loan_id = ?", loan.ID).Find(&installments).Error; err != nil {
		return false, errors.New("ошибка при получении взносов займа")
	}

	aggregate := current.Paid()
	for _, inst := range installments {
		if inst.ID == current.ID {
			continue
		}
		aggregate = aggregate.Add(inst.Paid())
	}

	loan.OutstandingBalance = balanceOf(loan.TotalPayable, aggregate)

	completed := false
	if loan.OutstandingBalance.IsZero() && loan.Status == models.LoanStatusOngoing {
		loan.Status = models.LoanStatusCompleted
		loan.IsActive = false
		completed = true
	}

	if err := tx.Save(loan).Error; err != nil {
		return false, errors.New("ошибка при обновлении остатка займа")
	}

	return completed, nil
}

// loadLoanWithLine загружает займ и его линию сбора с проверкой арендатора
func (s *InstallmentService) loadLoanWithLine(tx *gorm.DB, loanID uint, tenantID uint) (*models.Loan, *models.CollectionLine, error) {
	var loan models.Loan
	if err := tx.First(&loan, loanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrLoanNotFound
		}
		return nil, nil, err
	}

	if loan.TenantID != tenantID {
		return nil, nil, ErrTenantMismatch
	}

	var line models.CollectionLine
	if err := tx.Preload("LoanProduct").First(&line, loan.LineID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrLineNotFound
		}
		return nil, nil, err
	}

	return &loan, &line, nil
}

// loadInstallmentWithLoan загружает взнос, его займ и линию с проверкой арендатора
func (s *InstallmentService) loadInstallmentWithLoan(tx *gorm.DB, installmentID uint, tenantID uint) (*models.Installment, *models.Loan, *models.CollectionLine, error) {
	var installment models.Installment
	if err := tx.First(&installment, installmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, ErrInstallmentNotFound
		}
		return nil, nil, nil, err
	}

	if installment.TenantID != tenantID {
		return nil, nil, nil, ErrTenantMismatch
	}

	var loan models.Loan
	if err := tx.First(&loan, installment.LoanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, ErrLoanNotFound
		}
		return nil, nil, nil, err
	}

	var line models.CollectionLine
	if err := tx.Preload("LoanProduct").First(&line, loan.LineID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, ErrLineNotFound
		}
		return nil, nil, nil, err
	}

	return &installment, &loan, &line, nil
}

// deriveStatus выводит статус взноса из суммы платежа
func deriveStatus(amount, installmentAmount decimal.Decimal) models.InstallmentStatus {
	switch {
	case amount.GreaterThanOrEqual(installmentAmount):
		return models.InstallmentStatusPaid
	case amount.GreaterThan(decimal.Zero):
		return models.InstallmentStatusPartially
	default:
		return models.InstallmentStatusMissed
	}
}

// notifyLoanRepaid отправляет уведомление о полном погашении займа
func (s *InstallmentService) notifyLoanRepaid(loan *models.Loan) {
	if s.email == nil {
		return
	}

	var user models.User
	if err := s.db.First(&user, loan.CreatedBy).Error; err != nil {
		return
	}

	go func() {
		if err := s.email.SendLoanRepaidNotification(user.Email, loan.ID); err != nil {
			log.Printf("Ошибка при отправке уведомления о погашении займа: %v", err)
		}
	}()
}
