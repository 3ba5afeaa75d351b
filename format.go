package httprpc

import (
	"net/url"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/schema"
)

// queryEncoder flattens struct values bound to the query string.
var queryEncoder = schema.NewEncoder()

func init() {
	queryEncoder.SetAliasTag("json")
	queryEncoder.RegisterEncoder(time.Time{}, func(v reflect.Value) string {
		return v.Interface().(time.Time).Format(time.RFC3339Nano)
	})
	queryEncoder.RegisterEncoder(time.Duration(0), func(v reflect.Value) string {
		return v.Interface().(time.Duration).String()
	})
	queryEncoder.RegisterEncoder(uuid.UUID{}, func(v reflect.Value) string {
		return v.Interface().(uuid.UUID).String()
	})
}

// formatScalar returns the wire form of a simple value. Nil pointers format
// as the empty string. Named integer types format as their underlying number.
func formatScalar(v reflect.Value) (string, bool) {
	if !v.IsValid() {
		return "", true
	}
	if v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", true
		}
		v = v.Elem()
	}
	switch v.Type() {
	case timeType:
		return v.Interface().(time.Time).Format(time.RFC3339Nano), true
	case durationType:
		return v.Interface().(time.Duration).String(), true
	case uuidType:
		return v.Interface().(uuid.UUID).String(), true
	case urlType:
		u := v.Interface().(url.URL)
		return u.String(), true
	}
	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), true
	}
	return "", false
}

// scalarValues returns the wire forms of a simple value, or of each element
// of a sequence of simple values. A nil value yields no entries.
func scalarValues(v reflect.Value) ([]string, bool) {
	if !v.IsValid() {
		return nil, true
	}
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return nil, true
	}
	if s, ok := formatScalar(v); ok {
		return []string{s}, true
	}
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]string, 0, v.Len())
		for i := range v.Len() {
			s, ok := formatScalar(v.Index(i))
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
