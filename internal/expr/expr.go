// Package expr evaluates user-authored code-node expressions in an isolated
// scope. The language is a single HCL expression; the only names visible to
// it are the three variables `input`, `config` and `node`, plus a fixed
// function table. Nothing else is reachable from an expression: no
// filesystem, no network, no clock beyond now().
package expr

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// nowFunc returns the current UTC time as an RFC 3339 string. It stands in
// for the Date binding of the original sandbox.
var nowFunc = function.New(&function.Spec{
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.StringVal(time.Now().UTC().Format(time.RFC3339)), nil
	},
})

// lengthFunc counts characters of a string and elements of anything else.
// stdlib.LengthFunc alone rejects strings.
var lengthFunc = function.New(&function.Spec{
	Params: []function.Parameter{{
		Name:             "value",
		Type:             cty.DynamicPseudoType,
		AllowDynamicType: true,
	}},
	Type: function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		if args[0].Type() == cty.String {
			return stdlib.Strlen(args[0])
		}
		return stdlib.Length(args[0])
	},
})

// sandboxFunctions is the complete function surface of the sandbox.
var sandboxFunctions = map[string]function.Function{
	"jsonencode": stdlib.JSONEncodeFunc,
	"jsondecode": stdlib.JSONDecodeFunc,
	"upper":      stdlib.UpperFunc,
	"lower":      stdlib.LowerFunc,
	"length":     lengthFunc,
	"coalesce":   stdlib.CoalesceFunc,
	"now":        nowFunc,
}

// Eval parses and evaluates one expression against the three sandbox
// bindings and returns the result as plain Go values.
func Eval(code string, input, config, node map[string]any) (any, error) {
	parsed, diags := hclsyntax.ParseExpression([]byte(code), "code_node", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse expression: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"input":  ToCty(input),
			"config": ToCty(config),
			"node":   ToCty(node),
		},
		Functions: sandboxFunctions,
	}

	val, diags := parsed.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluate expression: %s", diags.Error())
	}

	return FromCty(val)
}
