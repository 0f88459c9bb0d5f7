package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Lookup — источник переменных для подстановки и условий.
//
// Реализуется domain.TaskContext и Vars.
type Lookup interface {
	Lookup(name string) (any, bool)
}

// Vars — Lookup поверх обычной map.
type Vars map[string]any

// Lookup возвращает значение переменной.
func (v Vars) Lookup(name string) (any, bool) {
	val, ok := v[name]
	return val, ok
}

// placeholderRe — токен {{identifier}}, пробелы внутри скобок допускаются.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Interpolate заменяет {{name}} строковым значением переменной.
//
// Неизвестные переменные остаются в тексте как есть, это не ошибка.
//
//	Interpolate("Hello, {{user}}!", Vars{"user": "Ann"}) // "Hello, Ann!"
//	Interpolate("{{missing}}", Vars{})                   // "{{missing}}"
func Interpolate(s string, vars Lookup) string {
	if vars == nil || !strings.Contains(s, "{{") {
		return s
	}

	return placeholderRe.ReplaceAllStringFunc(s, func(token string) string {
		m := placeholderRe.FindStringSubmatch(token)
		val, ok := vars.Lookup(m[1])
		if !ok {
			return token
		}
		return Stringify(val)
	})
}

// InterpolateValue рекурсивно обрабатывает строки внутри map и slice.
// Остальные типы возвращаются без изменений.
func InterpolateValue(value any, vars Lookup) any {
	switch v := value.(type) {
	case string:
		return Interpolate(v, vars)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			result[key] = InterpolateValue(val, vars)
		}
		return result

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = InterpolateValue(val, vars)
		}
		return result

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, val := range v {
			result[key] = Interpolate(val, vars)
		}
		return result

	case []string:
		result := make([]string, len(v))
		for i, val := range v {
			result[i] = Interpolate(val, vars)
		}
		return result

	default:
		return value
	}
}

// InterpolateParams обрабатывает набор параметров инструмента.
func InterpolateParams(params map[string]any, vars Lookup) map[string]any {
	if params == nil {
		return make(map[string]any)
	}
	return InterpolateValue(params, vars).(map[string]any)
}

// Stringify возвращает строковую форму значения переменной.
// Составные значения сериализуются в JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case fmt.Stringer:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
