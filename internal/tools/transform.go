package tools

import (
	"context"
	"encoding/json"
	"maps"
)

// Имена встроенных инструментов без внешних вызовов.
const (
	ToolTransform = "transform"
	ToolEcho      = "echo"
)

// TransformTool собирает объект из mappings.
//
// Подстановка {{var}} уже выполнена шагом, поэтому значения приходят
// готовыми строками. Строки, похожие на JSON, разбираются обратно:
//
//	{"mappings": {"city": "{{city}}", "days": "{{days}}", "raw": "{{items}}"}}
//
// даст {"city": "Moscow", "days": 3, "raw": [...]}.
type TransformTool struct{}

// NewTransformTool создаёт новый TransformTool.
func NewTransformTool() *TransformTool {
	return &TransformTool{}
}

// Name возвращает имя инструмента.
func (t *TransformTool) Name() string {
	return ToolTransform
}

// Invoke применяет mappings.
func (t *TransformTool) Invoke(ctx context.Context, params map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mappings := ParamMap(params, "mappings")
	outputs := make(map[string]any, len(mappings))
	for key, val := range mappings {
		if s, ok := val.(string); ok {
			outputs[key] = parseValue(s)
			continue
		}
		outputs[key] = val
	}

	return outputs, nil
}

// parseValue пытается распарсить строку как JSON.
// Если не получается — возвращает строку как есть.
func parseValue(value string) any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(value), &obj); err == nil {
		return obj
	}

	var arr []any
	if err := json.Unmarshal([]byte(value), &arr); err == nil {
		return arr
	}

	var num json.Number
	if err := json.Unmarshal([]byte(value), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}

	switch value {
	case "true":
		return true
	case "false":
		return false
	}

	return value
}

// EchoTool возвращает свои параметры. Полезен для отладки определений task.
type EchoTool struct{}

// NewEchoTool создаёт новый EchoTool.
func NewEchoTool() *EchoTool {
	return &EchoTool{}
}

// Name возвращает имя инструмента.
func (t *EchoTool) Name() string {
	return ToolEcho
}

// Invoke возвращает копию параметров.
func (t *EchoTool) Invoke(_ context.Context, params map[string]any) (any, error) {
	return maps.Clone(params), nil
}
