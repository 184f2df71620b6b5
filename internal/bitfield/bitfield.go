// Package bitfield packs and unpacks tagged struct fields into a single
// integer — a simplified take on golang.org/x/text/internal/gen/bitfield.
// internal/vmm uses it to turn PhyMapFlags/VirtMapFlags into page-table
// attribute bits and back.
package bitfield

import (
	"fmt"
	"reflect"
)

// Config determines settings for packing and unpacking.
type Config struct {
	// NumBits fixes the maximum allowed bits for the integer
	// representation.
	NumBits uint
}

// Pack packs the tagged bit ranges of struct x into an integer. Only
// fields with a `bitfield:",n"` tag are packed, in field declaration
// order, least-significant field first.
func Pack(x interface{}, c *Config) (packed uint64, err error) {
	if c == nil {
		c = &Config{NumBits: 64}
	}

	v := reflect.ValueOf(x)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return 0, fmt.Errorf("bitfield: Pack expected struct, got %v", v.Kind())
	}

	t := v.Type()
	var bitOffset uint
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		bits, ok := fieldBits(field)
		if !ok {
			continue
		}

		fieldValue := v.Field(i)
		var fieldBits uint64
		switch fieldValue.Kind() {
		case reflect.Bool:
			if fieldValue.Bool() {
				fieldBits = 1
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			fieldBits = fieldValue.Uint()
		default:
			return 0, fmt.Errorf("bitfield: Pack unsupported field type %v for field %s", fieldValue.Kind(), field.Name)
		}

		maxValue := uint64(1)<<bits - 1
		if fieldBits > maxValue {
			return 0, fmt.Errorf("bitfield: Pack value %d exceeds %d bits for field %s", fieldBits, bits, field.Name)
		}
		packed |= fieldBits << bitOffset
		bitOffset += bits
	}

	if c.NumBits > 0 && bitOffset > c.NumBits {
		return 0, fmt.Errorf("bitfield: Pack total bits %d exceeds NumBits %d", bitOffset, c.NumBits)
	}
	return packed, nil
}

// Unpack is Pack's inverse: it fills x's tagged fields from packed. x
// must be a pointer to a struct with the same tags Pack was called
// with.
func Unpack(packed uint64, x interface{}) error {
	v := reflect.ValueOf(x)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bitfield: Unpack expected pointer to struct")
	}
	v = v.Elem()
	t := v.Type()

	var bitOffset uint
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		bits, ok := fieldBits(field)
		if !ok {
			continue
		}

		mask := uint64(1)<<bits - 1
		fieldBits := (packed >> bitOffset) & mask
		fieldValue := v.Field(i)
		switch fieldValue.Kind() {
		case reflect.Bool:
			fieldValue.SetBool(fieldBits != 0)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			fieldValue.SetUint(fieldBits)
		default:
			return fmt.Errorf("bitfield: Unpack unsupported field type %v for field %s", fieldValue.Kind(), field.Name)
		}
		bitOffset += bits
	}
	return nil
}

func fieldBits(field reflect.StructField) (uint, bool) {
	tag := field.Tag.Get("bitfield")
	if tag == "" {
		return 0, false
	}
	var bits uint
	if _, err := fmt.Sscanf(tag, ",%d", &bits); err != nil {
		return 0, false
	}
	return bits, bits > 0
}
