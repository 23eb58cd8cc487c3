package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"microloans/config"
	"microloans/models"
)

// Database представляет подключение к базе данных
type Database struct {
	DB *gorm.DB
}

// NewDatabase создает новое подключение к базе данных
func NewDatabase(cfg *config.Config) (*Database, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	return &Database{DB: db}, nil
}

// GetDB возвращает экземпляр GORM
func (d *Database) GetDB() *gorm.DB {
	return d.DB
}

// Close закрывает подключение к базе данных
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Connect устанавливает соединение с базой данных и выполняет миграции
func Connect(cfg *config.Config) (*gorm.DB, error) {
	// Формируем строку подключения
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.DBName,
	)

	// Настраиваем логгер
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Info,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	// Устанавливаем соединение; TranslateError нужен ледгеру взносов,
	// чтобы конфликт уникального индекса приходил как gorm.ErrDuplicatedKey
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %v", err)
	}

	// Настраиваем пул соединений
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пула соединений: %v", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Выполняем SQL миграции
	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("ошибка выполнения SQL миграций: %v", err)
	}

	// Выполняем автоматическую миграцию моделей
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("ошибка автоматической миграции моделей: %v", err)
	}

	return db, nil
}

// runMigrations выполняет SQL миграции
func runMigrations(cfg *config.Config) error {
	// Формируем URL для миграций
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.DBName,
	)

	// Создаем экземпляр миграции
	m, err := migrate.New(
		"file://migrations",
		dsn,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания миграции: %v", err)
	}

	// Выполняем миграции
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка выполнения миграций: %v", err)
	}

	return nil
}

// autoMigrate выполняет автоматическую миграцию моделей
func autoMigrate(db *gorm.DB) error {
	// Автоматическая миграция моделей
	err := db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.Customer{},
		&models.LoanProduct{},
		&models.CollectionLine{},
		&models.Loan{},
		&models.Installment{},
	)
	if err != nil {
		return fmt.Errorf("ошибка автоматической миграции: %v", err)
	}

	return nil
}

// Методы для работы с пользователями
func (d *Database) CreateUser(user *models.User) error {
	return d.DB.Create(user).Error
}

func (d *Database) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	err := d.DB.First(&user, id).Error
	return &user, err
}

func (d *Database) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := d.DB.Where("email = ?", email).First(&user).Error
	return &user, err
}

// Методы для работы с заемщиками
func (d *Database) CreateCustomer(customer *models.Customer) error {
	return d.DB.Create(customer).Error
}

func (d *Database) GetCustomerByID(id uint) (*models.Customer, error) {
	var customer models.Customer
	err := d.DB.First(&customer, id).Error
	return &customer, err
}

// Методы для работы с кредитными продуктами и линиями сбора
func (d *Database) GetLoanProductByID(id uint) (*models.LoanProduct, error) {
	var product models.LoanProduct
	err := d.DB.First(&product, id).Error
	return &product, err
}

func (d *Database) GetCollectionLineByID(id uint) (*models.CollectionLine, error) {
	var line models.CollectionLine
	err := d.DB.Preload("LoanProduct").First(&line, id).Error
	return &line, err
}

// Методы для работы с займами
func (d *Database) CreateLoan(loan *models.Loan) error {
	return d.DB.Create(loan).Error
}

func (d *Database) GetLoanByID(id uint) (*models.Loan, error) {
	var loan models.Loan
	err := d.DB.First(&loan, id).Error
	return &loan, err
}

func (d *Database) GetLoansByLineID(lineID uint) ([]models.Loan, error) {
	var loans []models.Loan
	err := d.DB.Where("line_id = ?", lineID).Find(&loans).Error
	return loans, err
}

// Методы для работы со взносами
func (d *Database) CreateInstallment(installment *models.Installment) error {
	return d.DB.Create(installment).Error
}

func (d *Database) GetInstallmentByID(id uint) (*models.Installment, error) {
	var installment models.Installment
	err := d.DB.First(&installment, id).Error
	return &installment, err
}

func (d *Database) GetInstallmentsByLoanID(loanID uint) ([]models.Installment, error) {
	var installments []models.Installment
	err := d.DB.Where("loan_id = ?", loanID).Order("due_date ASC").Find(&installments).Error
	return installments, err
}
