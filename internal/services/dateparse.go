package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidFormat возвращается, когда дата не подошла ни под один
// поддерживаемый формат
var ErrInvalidFormat = errors.New("неверный формат даты")

// Регулярки для определения формата даты до парсинга.
// CSV выгрузки приходят из разных систем: 1С отдает DD.MM.YYYY,
// экспорт из Excel — DD/MM/YYYY, метеоданные — ISO или unix timestamp.
var (
	reISODate    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	reDotDate    = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}`)
	reSlashDate  = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}`)
	reYearDotted = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}$`)
	reDigitsOnly = regexp.MustCompile(`^\d+$`)
)

// ParseFlexibleDate парсит дату из CSV в одном из поддерживаемых форматов.
// allowEpoch разрешает unix timestamp (секунды или миллисекунды) —
// используется только для погодных данных.
func ParseFlexibleDate(raw string, allowEpoch bool) (time.Time, error) {
	dateStr := strings.TrimSpace(raw)
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("%w: пустая дата", ErrInvalidFormat)
	}

	if reISODate.MatchString(dateStr) {
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, dateStr); err == nil {
				return t, nil
			}
		}
	}

	if reDotDate.MatchString(dateStr) {
		for _, layout := range []string{"02.01.2006 15:04:05", "02.01.2006"} {
			if t, err := time.Parse(layout, dateStr); err == nil {
				return t, nil
			}
		}
	}

	if reSlashDate.MatchString(dateStr) {
		if t, err := time.Parse("02/01/2006", dateStr); err == nil {
			return t, nil
		}
	}

	if reYearDotted.MatchString(dateStr) {
		if t, err := time.Parse("2006.01.02", dateStr); err == nil {
			return t, nil
		}
	}

	if allowEpoch && reDigitsOnly.MatchString(dateStr) {
		if ts, err := strconv.ParseInt(dateStr, 10, 64); err == nil && ts > 0 {
			// До 10 млрд — секунды, больше — миллисекунды
			if ts < 10_000_000_000 {
				return time.Unix(ts, 0).UTC(), nil
			}
			return time.UnixMilli(ts).UTC(), nil
		}
	}

	// Последняя попытка: общие форматы
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "02.01.06"} {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidFormat, raw)
}

// ParseOptionalDate парсит дату, возвращая nil для пустых/невалидных значений
func ParseOptionalDate(raw string, allowEpoch bool) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := ParseFlexibleDate(raw, allowEpoch)
	if err != nil {
		return nil
	}
	return &t
}

// ParseFloatOrNull парсит число с поддержкой запятой как десятичного
// разделителя. Пустая строка и "null" дают nil.
func ParseFloatOrNull(raw string) *float64 {
	value := strings.TrimSpace(raw)
	if value == "" || strings.EqualFold(value, "null") {
		return nil
	}
	value = strings.ReplaceAll(value, ",", ".")
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// ParseIntOrNull парсит целое число, пустая строка и "null" дают nil
func ParseIntOrNull(raw string) *int {
	value := strings.TrimSpace(raw)
	if value == "" || strings.EqualFold(value, "null") {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &parsed
}

// ParseTemperature парсит температуру, отбрасывая единицы измерения ("75.5 °C")
func ParseTemperature(raw string) (float64, error) {
	value := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, value)
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("неверная температура: %s", raw)
	}
	return parsed, nil
}
