package schema

import (
	"database/sql"
	"reflect"
	"time"
)

// ScalarType is the storage type tag of a field.
type ScalarType string

const (
	Int       ScalarType = "int"
	BigInt    ScalarType = "bigint"
	Float     ScalarType = "float"
	Text      ScalarType = "text"
	Bool      ScalarType = "bool"
	Bytes     ScalarType = "bytes"
	Timestamp ScalarType = "timestamp"
)

// Valid reports whether t is one of the known scalar types.
func (t ScalarType) Valid() bool {
	switch t {
	case Int, BigInt, Float, Text, Bool, Bytes, Timestamp:
		return true
	}
	return false
}

// Integer reports whether t can hold a key value.
func (t ScalarType) Integer() bool {
	return t == Int || t == BigInt
}

// SQLType returns the PostgreSQL column type for t.
func (t ScalarType) SQLType() string {
	switch t {
	case Int:
		return "integer"
	case BigInt:
		return "bigint"
	case Float:
		return "double precision"
	case Text:
		return "text"
	case Bool:
		return "boolean"
	case Bytes:
		return "bytea"
	case Timestamp:
		return "timestamp with time zone"
	}
	return ""
}

// TypeMapper handles mapping between Go types and scalar types.
type TypeMapper struct {
	customMappings map[reflect.Type]ScalarType
}

// NewTypeMapper creates a new TypeMapper instance.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{
		customMappings: make(map[reflect.Type]ScalarType),
	}
}

// RegisterType registers a custom type mapping.
func (tm *TypeMapper) RegisterType(goType reflect.Type, scalar ScalarType) {
	tm.customMappings[goType] = scalar
}

// ScalarOf maps a Go type to its scalar type. The second result is false
// when the type has no storage mapping.
func (tm *TypeMapper) ScalarOf(t reflect.Type) (ScalarType, bool) {
	if s, ok := tm.customMappings[t]; ok {
		return s, true
	}

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t {
	case reflect.TypeOf(time.Time{}), reflect.TypeOf(sql.NullTime{}):
		return Timestamp, true
	case reflect.TypeOf(sql.NullString{}):
		return Text, true
	case reflect.TypeOf(sql.NullInt64{}):
		return BigInt, true
	case reflect.TypeOf(sql.NullInt32{}):
		return Int, true
	case reflect.TypeOf(sql.NullFloat64{}):
		return Float, true
	case reflect.TypeOf(sql.NullBool{}):
		return Bool, true
	}

	switch t.Kind() {
	case reflect.Bool:
		return Bool, true
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return Int, true
	case reflect.Int, reflect.Int64, reflect.Uint32:
		return BigInt, true
	case reflect.Float32, reflect.Float64:
		return Float, true
	case reflect.String:
		return Text, true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return Bytes, true
		}
	}

	return "", false
}

// IsNullable checks if a Go type is nullable.
func IsNullable(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		return true
	}

	switch t {
	case reflect.TypeOf(sql.NullString{}),
		reflect.TypeOf(sql.NullInt64{}),
		reflect.TypeOf(sql.NullInt32{}),
		reflect.TypeOf(sql.NullFloat64{}),
		reflect.TypeOf(sql.NullBool{}),
		reflect.TypeOf(sql.NullTime{}):
		return true
	}

	return false
}

// DefaultTypeMapper is the global type mapper instance.
var DefaultTypeMapper = NewTypeMapper()
