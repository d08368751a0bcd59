package program

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var (
	rootSchema = &hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "function", LabelNames: []string{"name"}},
		},
	}
	functionSchema = &hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "argument", LabelNames: []string{"name"}},
			{Type: "op", LabelNames: []string{"name"}},
			{Type: "result"},
		},
	}
	argumentSchema = &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "type", Required: true},
		},
	}
	opSchema = &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "kernel", Required: true},
			{Name: "args"},
			{Name: "attrs"},
		},
	}
	resultSchema = &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "type"},
			{Name: "value", Required: true},
		},
	}
)

// Parse parses HCL program text. Unknown blocks and attributes are ignored.
// The returned error wraps the hcl.Diagnostics describing every problem found.
func Parse(filename string, src []byte) (*Module, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", filename, diags)
	}

	content, _, diags := file.Body.PartialContent(rootSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", filename, diags)
	}

	m := &Module{Filename: filename}
	for _, block := range content.Blocks {
		fn, fnDiags := decodeFunction(block)
		diags = append(diags, fnDiags...)
		if fn != nil {
			m.Functions = append(m.Functions, fn)
		}
	}
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", filename, diags)
	}
	return m, nil
}

func decodeFunction(block *hcl.Block) (*Function, hcl.Diagnostics) {
	content, _, diags := block.Body.PartialContent(functionSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	fn := &Function{Name: block.Labels[0], Range: block.DefRange}
	for _, b := range content.Blocks {
		switch b.Type {
		case "argument":
			arg, d := decodeArgument(b)
			diags = append(diags, d...)
			fn.Arguments = append(fn.Arguments, arg)
		case "op":
			op, d := decodeOp(b)
			diags = append(diags, d...)
			fn.Ops = append(fn.Ops, op)
		case "result":
			res, d := decodeResult(b)
			diags = append(diags, d...)
			fn.Results = append(fn.Results, res)
		}
	}
	return fn, diags
}

func decodeArgument(block *hcl.Block) (Argument, hcl.Diagnostics) {
	arg := Argument{Name: block.Labels[0], Type: cty.DynamicPseudoType, Range: block.DefRange}
	content, _, diags := block.Body.PartialContent(argumentSchema)
	if diags.HasErrors() {
		return arg, diags
	}
	ty, d := typeexpr.TypeConstraint(content.Attributes["type"].Expr)
	diags = append(diags, d...)
	if !d.HasErrors() {
		arg.Type = ty
	}
	return arg, diags
}

func decodeOp(block *hcl.Block) (Op, hcl.Diagnostics) {
	op := Op{Name: block.Labels[0], Attrs: cty.NilVal, Range: block.DefRange}
	content, _, diags := block.Body.PartialContent(opSchema)
	if diags.HasErrors() {
		return op, diags
	}

	kernel, d := stringAttr(content.Attributes["kernel"])
	diags = append(diags, d...)
	op.Kernel = kernel

	if attr, ok := content.Attributes["args"]; ok {
		args, d := stringListAttr(attr)
		diags = append(diags, d...)
		op.Args = args
	}

	if attr, ok := content.Attributes["attrs"]; ok {
		v, d := attr.Expr.Value(nil)
		diags = append(diags, d...)
		if !d.HasErrors() {
			if !v.IsWhollyKnown() {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid attrs",
					Detail:   "Op attributes must be constant values.",
					Subject:  attr.Expr.Range().Ptr(),
				})
			} else {
				op.Attrs = v
			}
		}
	}
	return op, diags
}

func decodeResult(block *hcl.Block) (Result, hcl.Diagnostics) {
	res := Result{Type: cty.DynamicPseudoType, Range: block.DefRange}
	content, _, diags := block.Body.PartialContent(resultSchema)
	if diags.HasErrors() {
		return res, diags
	}

	if attr, ok := content.Attributes["type"]; ok {
		ty, d := typeexpr.TypeConstraint(attr.Expr)
		diags = append(diags, d...)
		if !d.HasErrors() {
			res.Type = ty
		}
	}

	value, d := stringAttr(content.Attributes["value"])
	diags = append(diags, d...)
	res.Value = value
	return res, diags
}

func stringAttr(attr *hcl.Attribute) (string, hcl.Diagnostics) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	var s string
	if err := gocty.FromCtyValue(v, &s); err != nil {
		return "", hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  fmt.Sprintf("Invalid %s", attr.Name),
			Detail:   fmt.Sprintf("A string is required: %s.", err),
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	return s, nil
}

func stringListAttr(attr *hcl.Attribute) ([]string, hcl.Diagnostics) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	invalid := func(err error) hcl.Diagnostics {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  fmt.Sprintf("Invalid %s", attr.Name),
			Detail:   fmt.Sprintf("A list of value names is required: %s.", err),
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	list, err := convert.Convert(v, cty.List(cty.String))
	if err != nil {
		return nil, invalid(err)
	}
	var out []string
	if err := gocty.FromCtyValue(list, &out); err != nil {
		return nil, invalid(err)
	}
	return out, nil
}
