package safe

import (
	"fmt"
	"reflect"

	"PChat/logger"
	"PChat/tools/errs"

	"go.uber.org/zap"
)

// MustNotNil panics if v is nil, including a typed nil inside an interface.
// Constructors use it for required collaborators.
func MustNotNil(v any, name string) {
	if isNil(v) {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// Go starts f on a new goroutine; a panic is logged instead of taking the
// process down.
func Go(name string, f func()) {
	go func() {
		defer Recover(name)
		f()
	}()
}

// Recover must be deferred directly.
func Recover(name string) {
	if r := recover(); r != nil {
		logger.Error("goroutine panic", zap.String("goroutine", name), zap.Error(errs.ErrPanic(r)), zap.Stack("stack"))
	}
}
