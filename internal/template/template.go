// Package template substitutes {{input.*}}, {{config.*}} and {{node.*}}
// placeholders inside strings, arrays and objects before a node executes.
//
// The two resolution modes matter: a string that is exactly one template
// expression resolves to the typed upstream value, so numbers, booleans and
// objects survive into JSON bodies; an expression embedded in a larger
// string is coerced to text.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vk/pipecanvas/internal/model"
)

// MissingInputError reports an {{input.*}} reference with no upstream value.
// Config templates degrade to an empty string; input templates must not,
// because that would hide broken wiring.
type MissingInputError struct {
	NodeID string
	Handle string
}

// Error implements the error interface.
func (e *MissingInputError) Error() string {
	return fmt.Sprintf("node %q: no value for required input %q", e.NodeID, e.Handle)
}

// exprPattern matches one {{ <path> }} placeholder.
var exprPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Resolve applies template substitution recursively. Strings are scanned for
// placeholders; slices and string-keyed maps are resolved element-wise;
// every other value passes through unchanged.
func Resolve(value any, node *model.PipelineNode, inputData map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(v, node, inputData)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := Resolve(item, node, inputData)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := Resolve(item, node, inputData)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// ResolveString is Resolve restricted to strings, coercing the result to
// text. Useful for fields that are strings by contract (URLs, headers).
func ResolveString(s string, node *model.PipelineNode, inputData map[string]any) (string, error) {
	resolved, err := resolveString(s, node, inputData)
	if err != nil {
		return "", err
	}
	return coerce(resolved), nil
}

func resolveString(s string, node *model.PipelineNode, inputData map[string]any) (any, error) {
	// Exact single-expression strings keep the typed value.
	if m := exprPattern.FindStringSubmatch(s); m != nil && m[0] == s {
		val, known, err := lookup(m[1], node, inputData)
		if err != nil {
			return nil, err
		}
		if !known {
			return s, nil
		}
		return val, nil
	}

	var firstErr error
	out := exprPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		path := strings.TrimSpace(match[2 : len(match)-2])
		val, known, err := lookup(path, node, inputData)
		if err != nil {
			firstErr = err
			return match
		}
		if !known {
			return match
		}
		return coerce(val)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// lookup resolves one dotted path. known=false means the prefix is not one
// of ours and the placeholder should be left verbatim.
func lookup(path string, node *model.PipelineNode, inputData map[string]any) (val any, known bool, err error) {
	segments := strings.Split(path, ".")
	if len(segments) < 2 {
		return nil, false, nil
	}

	switch segments[0] {
	case "input":
		handle := segments[1]
		v, ok := inputData[handle]
		if !ok || v == nil {
			return nil, true, &MissingInputError{NodeID: node.ID, Handle: handle}
		}
		return dig(v, segments[2:]), true, nil
	case "config":
		v := node.ConfigValue(segments[1])
		if v == nil {
			return "", true, nil
		}
		if deep := dig(v, segments[2:]); deep != nil {
			return deep, true, nil
		}
		return "", true, nil
	case "node":
		return nodeField(node, segments[1]), true, nil
	default:
		return nil, false, nil
	}
}

// dig walks nested maps for deeper paths like {{input.structure.filename}}.
// A dead end yields nil.
func dig(v any, rest []string) any {
	for _, seg := range rest {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[seg]
	}
	return v
}

func nodeField(node *model.PipelineNode, field string) any {
	switch field {
	case "id":
		return node.ID
	case "type":
		return node.Type
	case "label":
		return node.Label
	case "status":
		return string(node.Status)
	default:
		return ""
	}
}

// coerce renders a typed value for embedding inside a larger string.
func coerce(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
