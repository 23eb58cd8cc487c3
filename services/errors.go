package services

import (
	"errors"
)

// Ошибки валидации входных данных
var (
	ErrInvalidPrincipal     = errors.New("сумма займа должна быть больше нуля")
	ErrDivisionByZero       = errors.New("число периодов должно быть больше нуля")
	ErrNegativeDisbursement = errors.New("удержания и проценты превышают сумму займа")
	ErrInvalidCadence       = errors.New("неизвестная периодичность сбора")
	ErrInvalidDate          = errors.New("неверный формат даты")
	ErrAmountMismatch       = errors.New("сумма платежа не совпадает с суммой по каналам оплаты")
)

// Ошибки ссылочной целостности
var (
	ErrLoanNotFound        = errors.New("займ не найден")
	ErrInstallmentNotFound = errors.New("взнос не найден")
	ErrLineNotFound        = errors.New("линия сбора не найдена")
	ErrCustomerNotFound    = errors.New("заемщик не найден")
)

// Ошибки доступа
var (
	ErrTenantMismatch     = errors.New("объект принадлежит другому арендатору")
	ErrNoAccessAssignment = errors.New("к линии сбора не допущен ни один пользователь")
	ErrNotAuthorized      = errors.New("пользователь не допущен к линии сбора")
)

// Ошибки состояния
var (
	ErrAlreadyPaid            = errors.New("взнос уже оплачен полностью")
	ErrOverpaymentUseFullPaid = errors.New("внесенная сумма покрывает взнос, используйте полное погашение")
)
