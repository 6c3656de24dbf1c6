package model

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DataTypeConverter casts raw values into a field's declared data type and
// truncates masked values to a maximum length. Implementations must be safe
// for concurrent use; the registry below hands out the same instance to
// every Field that declares the type.
type DataTypeConverter interface {
	// Name is the registered data-type name (as used in dataset definitions
	// and masking-strategy "supported data type" declarations).
	Name() string
	// Cast converts a raw value to this type, or returns nil if it cannot.
	Cast(value any) any
	// Truncate shortens a masked value to maxLen, in type-appropriate units.
	Truncate(maxLen int, value any) any
}

type stringConverter struct{}

func (stringConverter) Name() string { return "string" }

func (stringConverter) Cast(value any) any {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return nil
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (stringConverter) Truncate(maxLen int, value any) any {
	s, ok := value.(string)
	if !ok || maxLen <= 0 || len(s) <= maxLen {
		return value
	}
	return s[:maxLen]
}

type integerConverter struct{}

func (integerConverter) Name() string { return "integer" }

func (integerConverter) Cast(value any) any {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		return n
	default:
		return nil
	}
}

func (integerConverter) Truncate(maxLen int, value any) any {
	n, ok := value.(int)
	if !ok {
		return value
	}
	s := strconv.Itoa(n)
	if maxLen <= 0 || len(s) <= maxLen {
		return value
	}
	truncated, err := strconv.Atoi(s[:maxLen])
	if err != nil {
		return value
	}
	return truncated
}

type datetimeConverter struct{}

func (datetimeConverter) Name() string { return "datetime" }

func (datetimeConverter) Cast(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
		return nil
	default:
		return nil
	}
}

func (datetimeConverter) Truncate(maxLen int, value any) any {
	// Truncation of a datetime is not meaningful; the string rendering is
	// truncated instead, matching the generic string behavior.
	t, ok := value.(time.Time)
	if !ok {
		return value
	}
	s := t.Format(time.RFC3339)
	if maxLen <= 0 || len(s) <= maxLen {
		return value
	}
	return s[:maxLen]
}

// ConverterRegistry resolves data-type names to DataTypeConverters. It is
// populated once at application startup and is read-only thereafter, in
// keeping with DESIGN NOTES (registries, not process-wide singletons, carry
// the application's extensible behavior).
type ConverterRegistry struct {
	mu         sync.RWMutex
	converters map[string]DataTypeConverter
}

// NewConverterRegistry returns a registry pre-seeded with the built-in
// string, integer, and datetime converters.
func NewConverterRegistry() *ConverterRegistry {
	r := &ConverterRegistry{converters: map[string]DataTypeConverter{}}
	r.Register(stringConverter{})
	r.Register(integerConverter{})
	r.Register(datetimeConverter{})
	return r
}

// Register adds or replaces a converter under its own Name().
func (r *ConverterRegistry) Register(c DataTypeConverter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converters[c.Name()] = c
}

// Get resolves a data-type name, reporting whether it is registered.
func (r *ConverterRegistry) Get(name string) (DataTypeConverter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.converters[name]
	return c, ok
}

// Supported reports whether name is a registered data type. Used by dataset
// definition validation ("The data type X is not supported.").
func (r *ConverterRegistry) Supported(name string) bool {
	_, ok := r.Get(name)
	return ok
}
