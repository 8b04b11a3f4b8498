package utils

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/potwatch/potwatch/internal/logger"
	"go.uber.org/zap"
)

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// WriteText writes a plain-text response
func WriteText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := fmt.Fprintln(w, message); err != nil {
		logger.Error("Failed to write text response", zap.Error(err))
	}
}

// WriteError writes a plain-text error response
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteText(w, status, message)
}
