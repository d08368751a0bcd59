package kernel

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Variadic is the Arity of a kernel that accepts any number of arguments.
const Variadic = -1

// Func is the body of a kernel. attrs is the op's constant attribute object,
// or cty.NilVal when the op declares none.
type Func func(ctx context.Context, args []cty.Value, attrs cty.Value) (cty.Value, error)

// Kernel is a named operation that produces exactly one value.
type Kernel struct {
	Name string
	// Arity is the number of arguments the kernel takes, or Variadic.
	Arity int
	// Blocking kernels are dispatched onto the engine's blocking pool so they
	// never stall a compute worker.
	Blocking bool
	Doc      string
	Fn       Func
}

// Call checks the argument count and invokes the kernel body.
func (k Kernel) Call(ctx context.Context, args []cty.Value, attrs cty.Value) (cty.Value, error) {
	if k.Arity != Variadic && len(args) != k.Arity {
		return cty.NilVal, fmt.Errorf("kernel %s: got %d arguments, want %d", k.Name, len(args), k.Arity)
	}
	return k.Fn(ctx, args, attrs)
}

// Attr returns the named attribute from an op's attribute object.
func Attr(attrs cty.Value, name string) (cty.Value, bool) {
	if attrs == cty.NilVal || attrs.IsNull() || !attrs.IsKnown() {
		return cty.NilVal, false
	}
	ty := attrs.Type()
	if !(ty.IsObjectType() || ty.IsMapType()) {
		return cty.NilVal, false
	}
	if ty.IsObjectType() {
		if !ty.HasAttribute(name) {
			return cty.NilVal, false
		}
		return attrs.GetAttr(name), true
	}
	key := cty.StringVal(name)
	if attrs.HasIndex(key).False() {
		return cty.NilVal, false
	}
	return attrs.Index(key), true
}
