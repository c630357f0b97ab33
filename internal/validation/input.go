package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxMessageLength       = 4000
	MaxDisputeReasonLength = 1000
	MaxAdminNotesLength    = 2000
	MaxProofImages         = 10
	MaxProofImageRefLength = 500
)

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateMessageContent проверяет текст сообщения и возвращает его без крайних пробелов.
func ValidateMessageContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("сообщение не может быть пустым")
	}
	if err := ValidateLength("сообщение", content, 1, MaxMessageLength); err != nil {
		return "", err
	}
	return content, nil
}

// ValidateOptionalText обрезает пробелы и проверяет длину. Пустая строка превращается в nil.
func ValidateOptionalText(fieldName string, value *string, max int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil, nil
	}
	if err := ValidateLength(fieldName, v, 0, max); err != nil {
		return nil, err
	}
	return &v, nil
}

// ValidateProofImageRef проверяет ссылку на изображение в хранилище.
// Допускаются http(s) ссылки и ссылки вида s3://bucket/key.
func ValidateProofImageRef(ref string) error {
	if err := ValidateLength("ссылка на изображение", ref, 1, MaxProofImageRefLength); err != nil {
		return err
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("некорректный формат ссылки на изображение")
	}

	switch parsed.Scheme {
	case "http", "https", "s3":
	default:
		return fmt.Errorf("ссылка на изображение должна начинаться с https:// или s3://")
	}

	if parsed.Host == "" {
		return fmt.Errorf("ссылка на изображение должна содержать хост")
	}
	return nil
}

// ValidateProofImages проверяет список ссылок. nil означает "не менять".
func ValidateProofImages(refs []string) ([]string, error) {
	if refs == nil {
		return nil, nil
	}
	if len(refs) > MaxProofImages {
		return nil, fmt.Errorf("не более %d изображений-подтверждений", MaxProofImages)
	}

	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if err := ValidateProofImageRef(ref); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}
