// Package request разбирает тела запросов: JSON и multipart с файлом аватара.
package request

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/models"
)

const (
	// MaxAvatarSize предельный размер файла аватара.
	MaxAvatarSize = 5 << 20
	maxJSONBody   = 1 << 20
	maxMemory     = 1 << 20
)

var allowedAvatarTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// IsMultipart сообщает, пришла ли форма multipart/form-data.
func IsMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// DecodeJSON читает JSON-тело не длиннее maxJSONBody в dst. Пустое тело считается ошибкой.
func DecodeJSON(r *http.Request, dst any) error {
	if err := render.DecodeJSON(io.LimitReader(r.Body, maxJSONBody), dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

// Form разбирает multipart-форму и возвращает файл из поля field, если он есть.
// Вызывающий обязан вызвать cleanup после использования файла.
func Form(r *http.Request, field string) (upload *models.Upload, cleanup func(), err error) {
	const op = "request.Form"
	cleanup = func() {}

	r.Body = http.MaxBytesReader(nil, r.Body, MaxAvatarSize+maxMemory)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, cleanup, apperr.Validation("avatar must not exceed %d MB", MaxAvatarSize>>20)
		}
		return nil, cleanup, apperr.Validation("invalid multipart form")
	}
	cleanup = func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, cleanup, nil
	}
	if err != nil {
		return nil, cleanup, fmt.Errorf("%s: %w", op, err)
	}

	upload, err = avatar(file, header)
	if err != nil {
		_ = file.Close()
		return nil, cleanup, err
	}
	prev := cleanup
	cleanup = func() {
		_ = file.Close()
		prev()
	}
	return upload, cleanup, nil
}

func avatar(file multipart.File, header *multipart.FileHeader) (*models.Upload, error) {
	if header.Size > MaxAvatarSize {
		return nil, apperr.Validation("avatar must not exceed %d MB", MaxAvatarSize>>20)
	}
	contentType := strings.ToLower(header.Header.Get("Content-Type"))
	if _, ok := allowedAvatarTypes[contentType]; !ok {
		return nil, apperr.Validation("avatar must be a jpeg, png, webp or gif image")
	}
	return &models.Upload{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}, nil
}
