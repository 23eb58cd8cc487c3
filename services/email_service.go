package services

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"microloans/config"
)

// EmailService предоставляет методы для отправки email
type EmailService struct {
	dialer *gomail.Dialer
	from   string
	config *config.Config
}

// NewEmailService создает новый экземпляр EmailService
func NewEmailService(cfg *config.Config) *EmailService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	return &EmailService{
		dialer: dialer,
		from:   cfg.SMTP.From,
		config: cfg,
	}
}

// SendEmail отправляет email
func (s *EmailService) SendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("ошибка отправки email: %v", err)
	}

	return nil
}

// SendLoanIssuedNotification отправляет уведомление о выдаче займа
func (s *EmailService) SendLoanIssuedNotification(to string, loanID uint, disbursed string, installment string, installments int) error {
	subject := "Уведомление о выдаче займа"
	body := fmt.Sprintf(`
		<h2>Займ выдан</h2>
		<p>Номер займа: %d</p>
		<p>Сумма к выдаче: %s</p>
		<p>Размер взноса: %s</p>
		<p>Число взносов: %d</p>
		<p>Дата: %s</p>
	`, loanID, disbursed, installment, installments, time.Now().Format("02.01.2006 15:04:05"))

	return s.SendEmail(to, subject, body)
}

// SendLoanRepaidNotification отправляет уведомление о полном погашении займа
func (s *EmailService) SendLoanRepaidNotification(to string, loanID uint) error {
	// Формируем тему письма
	subject := "Займ полностью погашен"

	// Формируем тело письма
	body := fmt.Sprintf(`
		<h2>Поздравляем!</h2>
		<p>Займ #%d был полностью погашен.</p>
		<p>Спасибо за своевременные платежи!</p>
		<p>С уважением,<br>Команда сервиса</p>
	`, loanID)

	return s.SendEmail(to, subject, body)
}
