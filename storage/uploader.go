package storage

import (
	"context"
	"io"
)

// UploadResult — итог загрузки объекта в хранилище.
type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader абстрагирует объектное хранилище.
// Через него уходят логотипы игр, команд и турниров,
// а также CSV-выгрузки журнала аудита.
type FileUploader interface {
	// Upload кладёт объект по ключу и возвращает его публичное расположение.
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}
