package program

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Module is a parsed program.
type Module struct {
	Filename  string
	Functions []*Function
}

// Function returns the function with the given name, or nil.
func (m *Module) Function(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Function is a named, straight-line sequence of ops.
type Function struct {
	Name      string
	Arguments []Argument
	Ops       []Op
	Results   []Result
	Range     hcl.Range
}

// Argument is a named, typed function parameter.
type Argument struct {
	Name  string
	Type  cty.Type
	Range hcl.Range
}

// Op applies a kernel to previously defined values and defines a new value
// named Name.
type Op struct {
	Name   string
	Kernel string
	Args   []string
	// Attrs is the op's constant attribute object, or cty.NilVal.
	Attrs cty.Value
	Range hcl.Range
}

// Result names the value returned in one result position.
type Result struct {
	Type  cty.Type
	Value string
	Range hcl.Range
}
