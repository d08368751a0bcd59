// Package program parses the HCL form of a program into its symbolic
// representation: a module of named functions, each a straight-line
// sequence of kernel ops over named values.
//
// A minimal program:
//
//	function "double" {
//	  argument "x" {
//	    type = number
//	  }
//	  op "y" {
//	    kernel = "kiln.add"
//	    args   = ["x", "x"]
//	  }
//	  result {
//	    type  = number
//	    value = "y"
//	  }
//	}
//
// Parsing is permissive: blocks and attributes the parser does not know are
// ignored, and kernel names are not checked until the compiled artifact is
// opened against a kernel registry.
package program
