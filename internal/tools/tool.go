package tools

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shaiso/conductor/internal/engine"
)

// Ошибки инструментов.
var (
	// ErrToolNotFound — инструмент не зарегистрирован.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams — невалидные параметры вызова.
	ErrInvalidParams = errors.New("invalid tool params")
)

// Tool — именованное действие, доступное tool шагам.
//
// params уже прошли подстановку {{var}}, поэтому числа и флаги
// могут прийти строками: хелперы ниже принимают оба варианта.
type Tool interface {
	// Name возвращает имя, под которым инструмент вызывается из шага.
	Name() string

	// Invoke выполняет действие. Ошибка становится неуспешным ответом.
	Invoke(ctx context.Context, params map[string]any) (any, error)
}

// ParamString извлекает строковый параметр.
func ParamString(params map[string]any, key string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return engine.Stringify(v)
}

// ParamInt извлекает числовой параметр.
func ParamInt(params map[string]any, key string) int {
	v, ok := params[key]
	if !ok || v == nil {
		return 0
	}
	f := engine.ToNumber(v)
	if math.IsNaN(f) {
		return 0
	}
	return int(f)
}

// ParamBool извлекает булев параметр.
func ParamBool(params map[string]any, key string, defaultVal bool) bool {
	switch v := params[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return defaultVal
}

// ParamMap извлекает вложенный map.
func ParamMap(params map[string]any, key string) map[string]any {
	if m, ok := params[key].(map[string]any); ok {
		return m
	}
	return nil
}

// ParamMapString извлекает map[string]string, приводя значения к строкам.
func ParamMapString(params map[string]any, key string) map[string]string {
	switch m := params[key].(type) {
	case map[string]string:
		return m
	case map[string]any:
		result := make(map[string]string, len(m))
		for k, val := range m {
			result[k] = engine.Stringify(val)
		}
		return result
	}
	return nil
}
