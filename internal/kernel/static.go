package kernel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/seantiz/kiln/internal/ctxlog"
)

// RegisterStaticKernels installs the built-in kernels into r.
func RegisterStaticKernels(r *Registry) {
	r.Register(Kernel{
		Name:  "kiln.identity",
		Arity: 1,
		Doc:   "Returns its argument unchanged.",
		Fn: func(_ context.Context, args []cty.Value, _ cty.Value) (cty.Value, error) {
			return args[0], nil
		},
	})
	r.Register(Kernel{
		Name:  "kiln.constant",
		Arity: 0,
		Doc:   "Returns the op's value attribute.",
		Fn: func(_ context.Context, _ []cty.Value, attrs cty.Value) (cty.Value, error) {
			v, ok := Attr(attrs, "value")
			if !ok {
				return cty.NilVal, fmt.Errorf("kiln.constant: missing value attribute")
			}
			return v, nil
		},
	})
	r.Register(arithmetic("kiln.add", "Adds two numbers.", cty.Value.Add))
	r.Register(arithmetic("kiln.sub", "Subtracts the second number from the first.", cty.Value.Subtract))
	r.Register(arithmetic("kiln.mul", "Multiplies two numbers.", cty.Value.Multiply))
	r.Register(Kernel{
		Name:  "kiln.concat",
		Arity: Variadic,
		Doc:   "Concatenates strings, with an optional sep attribute.",
		Fn: func(_ context.Context, args []cty.Value, attrs cty.Value) (cty.Value, error) {
			sep := ""
			if v, ok := Attr(attrs, "sep"); ok && v.Type() == cty.String && v.IsKnown() && !v.IsNull() {
				sep = v.AsString()
			}
			parts := make([]string, len(args))
			for i, a := range args {
				if err := requireKnown(a, cty.String); err != nil {
					return cty.NilVal, fmt.Errorf("kiln.concat: argument %d: %w", i, err)
				}
				parts[i] = a.AsString()
			}
			return cty.StringVal(strings.Join(parts, sep)), nil
		},
	})
	r.Register(Kernel{
		Name:  "kiln.print",
		Arity: 1,
		Doc:   "Logs its argument and returns it.",
		Fn: func(ctx context.Context, args []cty.Value, _ cty.Value) (cty.Value, error) {
			out, err := ctyjson.SimpleJSONValue{Value: args[0]}.MarshalJSON()
			if err != nil {
				return cty.NilVal, fmt.Errorf("kiln.print: %w", err)
			}
			ctxlog.FromContext(ctx).Info("kernel print", "value", string(out))
			return args[0], nil
		},
	})
	r.Register(Kernel{
		Name:     "kiln.sleep",
		Arity:    1,
		Blocking: true,
		Doc:      "Sleeps for the ms attribute, then returns its argument.",
		Fn: func(ctx context.Context, args []cty.Value, attrs cty.Value) (cty.Value, error) {
			var d time.Duration
			if v, ok := Attr(attrs, "ms"); ok {
				if err := requireKnown(v, cty.Number); err != nil {
					return cty.NilVal, fmt.Errorf("kiln.sleep: ms: %w", err)
				}
				ms, _ := v.AsBigFloat().Int64()
				d = time.Duration(ms) * time.Millisecond
			}
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return cty.NilVal, ctx.Err()
			}
			return args[0], nil
		},
	})
}

func arithmetic(name, doc string, op func(cty.Value, cty.Value) cty.Value) Kernel {
	return Kernel{
		Name:  name,
		Arity: 2,
		Doc:   doc,
		Fn: func(_ context.Context, args []cty.Value, _ cty.Value) (cty.Value, error) {
			for i, a := range args {
				if err := requireKnown(a, cty.Number); err != nil {
					return cty.NilVal, fmt.Errorf("%s: argument %d: %w", name, i, err)
				}
			}
			return op(args[0], args[1]), nil
		},
	}
}

// requireKnown rejects null, unknown and mistyped values before a cty
// operation that would otherwise panic on them.
func requireKnown(v cty.Value, want cty.Type) error {
	if v == cty.NilVal || v.IsNull() {
		return fmt.Errorf("value is null")
	}
	if !v.IsKnown() {
		return fmt.Errorf("value is unknown")
	}
	if !v.Type().Equals(want) {
		return fmt.Errorf("got %s, want %s", v.Type().FriendlyName(), want.FriendlyName())
	}
	return nil
}
