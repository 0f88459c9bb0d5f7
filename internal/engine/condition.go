package engine

import (
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// comparisonRe — "<identifier> <op> <literal>".
// Двухсимвольные операторы стоят раньше односимвольных.
var comparisonRe = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*(==|!=|>=|<=|>|<)\s*(.+?)\s*$`)

// EvaluateCondition вычисляет ограниченное булево выражение.
//
// Поддерживается форма "var OP literal", где OP — одно из ==, !=, >, <, >=, <=.
// Операторы сравнения приводят обе стороны к числам.
// Любая другая строка считается именем переменной, возвращается её истинность.
//
//	EvaluateCondition("score > 10", Vars{"score": 15}) // true
//	EvaluateCondition("approved", Vars{"approved": true}) // true
func EvaluateCondition(expr string, vars Lookup) bool {
	m := comparisonRe.FindStringSubmatch(expr)
	if m == nil {
		return Truthy(lookup(vars, strings.TrimSpace(expr)))
	}

	left := lookup(vars, m[1])
	right := ParseLiteral(m[3])

	switch m[2] {
	case "==":
		return looseEqual(left, right)
	case "!=":
		return !looseEqual(left, right)
	}

	l, r := ToNumber(left), ToNumber(right)
	if math.IsNaN(l) || math.IsNaN(r) {
		return false
	}

	switch m[2] {
	case ">":
		return l > r
	case "<":
		return l < r
	case ">=":
		return l >= r
	case "<=":
		return l <= r
	}
	return false
}

// ParseLiteral разбирает правую часть сравнения.
//
// Порядок: true/false → bool, null → nil, число → float64,
// строка в кавычках → строка без кавычек, иначе — строка как есть.
func ParseLiteral(s string) any {
	s = strings.TrimSpace(s)

	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}

	if f, ok := parseDecimal(s); ok {
		return f
	}

	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}

	return s
}

// Truthy возвращает истинность значения.
// Пустые строки, нули, nil и пустые коллекции ложны.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0 && !math.IsNaN(val)
	case int:
		return val != 0
	case int64:
		return val != 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32:
		return rv.Float() != 0
	}
	return true
}

// ToNumber приводит значение к числу. Возвращает NaN, если это невозможно.
func ToNumber(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case bool:
		if val {
			return 1
		}
		return 0
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case uint64:
		return float64(val)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0
		}
		if f, ok := parseDecimal(s); ok {
			return f
		}
	}
	return math.NaN()
}

// parseDecimal принимает только конечные десятичные числа.
// "inf", "NaN" и hex-float ("0x1p3") числами не считаются.
func parseDecimal(s string) (float64, bool) {
	if strings.ContainsAny(s, "xX") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// looseEqual сравнивает значение переменной с литералом.
func looseEqual(left, right any) bool {
	switch r := right.(type) {
	case nil:
		return left == nil
	case bool:
		if l, ok := left.(bool); ok {
			return l == r
		}
		return Stringify(left) == strconv.FormatBool(r)
	case float64:
		l := ToNumber(left)
		return !math.IsNaN(l) && left != nil && l == r
	case string:
		return left != nil && Stringify(left) == r
	}
	return false
}

func lookup(vars Lookup, name string) any {
	if vars == nil {
		return nil
	}
	v, _ := vars.Lookup(name)
	return v
}
