package services

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"microloans/models"
)

// setupTestDB создает чистую базу в памяти со схемой всех моделей
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// В памяти каждая новая связь это отдельная база, ограничиваем пул одной
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.Customer{},
		&models.LoanProduct{},
		&models.CollectionLine{},
		&models.Loan{},
		&models.Installment{},
	)
	require.NoError(t, err)

	return db
}

// fixture содержит стандартный набор сущностей для тестов сервисов
type fixture struct {
	tenant    models.Tenant
	collector models.User
	outsider  models.User
	customer  models.Customer
	product   models.LoanProduct
	line      models.CollectionLine
	loan      models.Loan
}

// fixtureOptions настраивает создаваемый набор
type fixtureOptions struct {
	cadence         models.CollectionCadence
	periodCount     int
	interestPrepaid bool
	accessUserIDs   func(collectorID uint) pq.Int64Array
	startDate       time.Time
}

func defaultFixtureOptions() fixtureOptions {
	return fixtureOptions{
		cadence:         models.CadenceDaily,
		periodCount:     100,
		interestPrepaid: true,
		accessUserIDs: func(collectorID uint) pq.Int64Array {
			return pq.Int64Array{int64(collectorID)}
		},
		startDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

// newFixture наполняет базу арендатором, пользователями, заемщиком,
// продуктом (10% процентов, 5% удержание), линией сбора и действующим займом
// на 10000 с сотней взносов по 100
func newFixture(t *testing.T, db *gorm.DB, opts fixtureOptions) *fixture {
	t.Helper()

	f := &fixture{}

	f.tenant = models.Tenant{Name: "Тестовая организация", IsActive: true}
	require.NoError(t, db.Create(&f.tenant).Error)

	f.collector = models.User{
		TenantID:  f.tenant.ID,
		FirstName: "Иван",
		LastName:  "Сборщиков",
		Email:     "collector@example.com",
		Password:  "hashed",
	}
	require.NoError(t, db.Create(&f.collector).Error)

	f.outsider = models.User{
		TenantID:  f.tenant.ID,
		FirstName: "Петр",
		LastName:  "Посторонний",
		Email:     "outsider@example.com",
		Password:  "hashed",
	}
	require.NoError(t, db.Create(&f.outsider).Error)

	f.customer = models.Customer{
		TenantID: f.tenant.ID,
		FullName: "Иванов Иван",
		Phone:    "+79990000000",
		IsActive: true,
	}
	require.NoError(t, db.Create(&f.customer).Error)

	f.product = models.LoanProduct{
		TenantID:                f.tenant.ID,
		Name:                    "Ежедневный 100",
		CollectionCadence:       opts.cadence,
		PeriodCount:             opts.periodCount,
		InterestPercent:         decimal.NewFromInt(10),
		InitialDeductionPercent: decimal.NewFromInt(5),
		InterestPrepaid:         opts.interestPrepaid,
	}
	require.NoError(t, db.Create(&f.product).Error)

	f.line = models.CollectionLine{
		TenantID:      f.tenant.ID,
		Name:          "Линия 1",
		LoanProductID: f.product.ID,
		AccessUserIDs: opts.accessUserIDs(f.collector.ID),
	}
	require.NoError(t, db.Create(&f.line).Error)

	origination, err := CalculateOrigination(decimal.NewFromInt(10000), &f.product)
	require.NoError(t, err)

	endDate, err := LoanEndDate(&f.product, opts.startDate)
	require.NoError(t, err)

	f.loan = models.Loan{
		TenantID:               f.tenant.ID,
		CustomerID:             f.customer.ID,
		LineID:                 f.line.ID,
		Principal:              decimal.NewFromInt(10000),
		InterestAmount:         origination.InterestAmount,
		DisbursedAmount:        origination.DisbursedAmount,
		TotalPayable:           origination.TotalPayable,
		OutstandingBalance:     origination.TotalPayable,
		InstallmentAmount:      origination.InstallmentAmount,
		InitialDeductionAmount: origination.InitialDeductionAmount,
		TotalInstallments:      origination.TotalInstallments,
		StartDate:              opts.startDate,
		EndDate:                endDate,
		Status:                 models.LoanStatusOngoing,
		IsActive:               true,
		CreatedBy:              f.collector.ID,
	}
	require.NoError(t, db.Create(&f.loan).Error)

	return f
}

// fixedClock возвращает источник времени, всегда отдающий одну и ту же дату
func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// reloadLoan перечитывает займ из базы
func reloadLoan(t *testing.T, db *gorm.DB, id uint) models.Loan {
	t.Helper()
	var loan models.Loan
	require.NoError(t, db.First(&loan, id).Error)
	return loan
}

// countInstallments возвращает число взносов займа
func countInstallments(t *testing.T, db *gorm.DB, loanID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Installment{}).Where("loan_id = ?", loanID).Count(&count).Error)
	return count
}
