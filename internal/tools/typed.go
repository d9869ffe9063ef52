package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Validator is implemented by argument structs that check their own values.
type Validator interface {
	Validate() error
}

// NewTyped builds a Tool whose arguments are decoded into A before fn runs.
// Each tool therefore sees a concrete argument struct instead of a loose map;
// decoding and validation failures surface as ErrInvalidArgType.
func NewTyped[A any](name, description string, category ToolCategory, schema ToolSchema, fn func(ctx context.Context, args A) (string, error)) *Tool {
	return &Tool{
		Name:        name,
		Description: description,
		Category:    category,
		Schema:      schema,
		Execute: func(ctx context.Context, raw map[string]any) (string, error) {
			args, err := DecodeArgs[A](raw)
			if err != nil {
				return "", err
			}
			return fn(ctx, args)
		},
	}
}

// DecodeArgs converts a loose argument map into A and validates it.
func DecodeArgs[A any](raw map[string]any) (A, error) {
	var args A
	data, err := json.Marshal(raw)
	if err != nil {
		return args, fmt.Errorf("%w: %v", ErrInvalidArgType, err)
	}
	if err := json.Unmarshal(data, &args); err != nil {
		return args, fmt.Errorf("%w: %v", ErrInvalidArgType, err)
	}
	if v, ok := any(&args).(Validator); ok {
		if err := v.Validate(); err != nil {
			return args, fmt.Errorf("%w: %v", ErrInvalidArgType, err)
		}
	}
	return args, nil
}
