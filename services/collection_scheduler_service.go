package services

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// CollectionSchedulerService закрывает день сбора по расписанию: займам без записи
// за прошедший день проставляется пропущенный взнос через общий ледгер
type CollectionSchedulerService struct {
	ledger *InstallmentService
	spec   string
	cron   *cron.Cron
}

// NewCollectionSchedulerService создает новый экземпляр CollectionSchedulerService
func NewCollectionSchedulerService(ledger *InstallmentService, spec string) *CollectionSchedulerService {
	return &CollectionSchedulerService{
		ledger: ledger,
		spec:   spec,
		cron:   cron.New(),
	}
}

// Start запускает планировщик закрытия дня сбора
func (s *CollectionSchedulerService) Start() error {
	// Закрытие выполняется в фиксированное локальное время, поэтому cron, а не тикер
	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.ledger.CloseCollectionDay(time.Now()); err != nil {
			log.Printf("Ошибка при закрытии дня сбора: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop останавливает планировщик
func (s *CollectionSchedulerService) Stop() {
	s.cron.Stop()
}
