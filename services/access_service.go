package services

import (
	"microloans/models"
)

// CheckLineTenant проверяет, что линия сбора принадлежит арендатору запроса.
// Совпадение арендатора проверяется отдельно и раньше списка доступа.
func CheckLineTenant(line *models.CollectionLine, tenantID uint) error {
	if line.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}

// CheckLineAccess проверяет допуск пользователя к линии сбора.
// Пустой список доступа запрещает операции всем пользователям без исключения.
func CheckLineAccess(line *models.CollectionLine, userID uint) error {
	if len(line.AccessUserIDs) == 0 {
		return ErrNoAccessAssignment
	}
	if !line.HasAccessUser(userID) {
		return ErrNotAuthorized
	}
	return nil
}
