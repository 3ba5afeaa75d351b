package hooks

import (
	"reflect"

	"github.com/broady/httprpc"
	"github.com/go-playground/validator/v10"
)

type validate struct {
	httprpc.BaseHook
	v *validator.Validate
}

// Validate creates a hook that validates struct-typed body arguments with v
// before the request is sent. Failures are reported as
// KindInvalidBindingData errors whose Details map each failing field to a
// message.
func Validate(v *validator.Validate) httprpc.Hook {
	if v == nil {
		v = validator.New()
	}
	return validate{v: v}
}

func (h validate) BeforeRequest(c *httprpc.CallContext) error {
	m := c.Method()
	for _, p := range m.Params() {
		if p.Source() != httprpc.SourceBody {
			continue
		}
		arg, _ := c.Arg(p.Name())
		if !isStruct(arg) {
			continue
		}
		if err := h.v.StructCtx(c.Context(), arg); err != nil {
			return httprpc.FromValidation(httprpc.KindInvalidBindingData, err).
				WithDetail("parameter", p.Name())
		}
	}
	return nil
}

// isStruct reports whether v is a struct or a non-nil pointer to one.
func isStruct(v any) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Struct
}
