package utils

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

var (
	InfoLogger   *log.Logger
	ErrorLogger  *log.Logger
	DebugLogger  *log.Logger
	LedgerLogger *log.Logger
)

// newFileLogger открывает файл журнала в директории logs
func newFileLogger(dir, name, prefix string, flags int) *log.Logger {
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", name, err)
	}
	return log.New(file, prefix, flags)
}

func init() {
	// Создаем директорию для логов, если она не существует
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Fatal("Failed to create log directory:", err)
	}

	InfoLogger = newFileLogger(logDir, "info.log", "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = newFileLogger(logDir, "error.log", "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	DebugLogger = newFileLogger(logDir, "debug.log", "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Журнал сбора ведется без префикса файла, записи самодостаточны
	LedgerLogger = newFileLogger(logDir, "ledger.log", "", log.Ldate|log.Ltime)
}

// LogInfo логирует информационное сообщение
func LogInfo(format string, v ...interface{}) {
	_, file, line, _ := runtime.Caller(1)
	InfoLogger.Printf("%s:%d - %s", filepath.Base(file), line, fmt.Sprintf(format, v...))
}

// LogError логирует сообщение об ошибке
func LogError(format string, v ...interface{}) {
	_, file, line, _ := runtime.Caller(1)
	ErrorLogger.Printf("%s:%d - %s", filepath.Base(file), line, fmt.Sprintf(format, v...))
}

// LogDebug логирует отладочное сообщение
func LogDebug(format string, v ...interface{}) {
	_, file, line, _ := runtime.Caller(1)
	DebugLogger.Printf("%s:%d - %s", filepath.Base(file), line, fmt.Sprintf(format, v...))
}

// LogLedger пишет запись журнала сбора: займ, дата взноса, статус, внесено, остаток
func LogLedger(loanID uint, dueDate time.Time, status string, paid string, balance string) {
	LedgerLogger.Printf("loan=%d due=%s status=%s paid=%s balance=%s",
		loanID, dueDate.Format("2006-01-02"), status, paid, balance)
}

// LogOperation логирует операцию с временем выполнения
func LogOperation(operation string, startTime time.Time, err error) {
	duration := time.Since(startTime)
	if err != nil {
		LogError("Operation %s failed after %v: %v", operation, duration, err)
	} else {
		LogInfo("Operation %s completed in %v", operation, duration)
	}
}
