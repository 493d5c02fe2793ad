// Пакет contract — встроенный OpenAPI контракт HTTP API filedrop.
//
// Контракт загружается и валидируется при старте сервиса: расхождение
// между кодом и описанием API обнаруживается до приёма трафика.
// Документ отдаётся клиентам по /api/openapi.json.
package contract

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var contractYAML []byte

// Load загружает встроенный OpenAPI документ и проверяет его валидность.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(contractYAML)
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI документа: %w", err)
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI документа: %w", err)
	}

	return doc, nil
}

// Handler возвращает HTTP-обработчик, отдающий контракт в формате JSON.
func Handler(doc *openapi3.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}
}
