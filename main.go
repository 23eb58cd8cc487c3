package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"microloans/config"
	"microloans/controllers"
	"microloans/database"
	"microloans/middleware"
	"microloans/services"
	"microloans/utils"
)

// healthHandler отвечает на проверку живости сервиса
func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// metricsHandler отдает снимок метрик приложения
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(utils.GetMetrics().GetMetricsSnapshot())
}

// initCollectionScheduler запускает планировщик закрытия дня сбора
func initCollectionScheduler(cfg *config.Config, db *database.Database, emailService *services.EmailService) {
	ledger := services.NewInstallmentService(db.DB, emailService)

	scheduler := services.NewCollectionSchedulerService(ledger, cfg.CollectionCloseSpec)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Ошибка запуска планировщика дня сбора: %v", err)
	}
	log.Println("Планировщик дня сбора запущен")
}

func main() {
	// Инициализируем конфигурацию
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем подключение к базе данных
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}

	// Инициализируем сервис email
	emailService := services.NewEmailService(cfg)

	// Запускаем планировщик закрытия дня сбора
	initCollectionScheduler(cfg, db, emailService)

	// Создаем роутер
	router := mux.NewRouter()
	router.Use(middleware.RecoveryMiddleware)

	// Инициализируем контроллеры
	authController := controllers.NewAuthController(db)
	loanController := controllers.NewLoanController(db, emailService)
	installmentController := controllers.NewInstallmentController(db, emailService)

	// Проверка живости
	router.HandleFunc("/health", healthHandler).Methods("GET")

	// Публичные маршруты для аутентификации
	router.HandleFunc("/api/auth/signUp", authController.SignUp).Methods("POST")
	router.HandleFunc("/api/auth/signIn", authController.SignIn).Methods("POST")

	// Защищенные маршруты
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.AuthMiddleware([]byte(authController.GetJWTKey())))
	protected.Use(middleware.LoggingMiddleware)
	protected.Use(middleware.RateLimitMiddleware)

	// Маршруты для работы с займами
	protected.HandleFunc("/loans", loanController.CreateLoan).Methods("POST")
	protected.HandleFunc("/loans", loanController.GetLoans).Methods("GET")
	protected.HandleFunc("/loans/{id}", loanController.GetLoan).Methods("GET")
	protected.HandleFunc("/loans/{id}", loanController.UpdateLoan).Methods("PUT")
	protected.HandleFunc("/loans/{id}/status", loanController.UpdateLoanStatus).Methods("PUT")

	// Маршруты для работы со взносами
	protected.HandleFunc("/loans/{id}/installments", installmentController.RecordPayment).Methods("POST")
	protected.HandleFunc("/loans/{id}/installments", installmentController.GetInstallments).Methods("GET")
	protected.HandleFunc("/loans/{id}/installments/missed", installmentController.MarkMissed).Methods("POST")
	protected.HandleFunc("/installments/{id}/pay", installmentController.MarkFullyPaid).Methods("PUT")
	protected.HandleFunc("/installments/{id}/partial", installmentController.MarkPartiallyPaid).Methods("PUT")

	// Метрики приложения
	protected.HandleFunc("/metrics", metricsHandler).Methods("GET")

	// Запускаем сервер
	port := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Сервер запущен на порту %s", port)
	if err := http.ListenAndServe(port, router); err != nil {
		log.Fatalf("Ошибка запуска сервера: %v", err)
	}
}
