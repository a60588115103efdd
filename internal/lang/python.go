package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

func init() {
	Register(&Strategy{
		Tag:         Python,
		DeclKinds:   kindSet("function_definition"),
		CallKinds:   kindSet("call"),
		NameKinds:   kindSet("identifier"),
		CalleeField: "function",
		BodyField:   "body",
		DocOf:       pythonDoc,
	})
	RegisterExtension(".py", Grammar{Name: "python", Language: python.GetLanguage, Tag: Python})
}

// pythonDoc returns the docstring of a function_definition. Only the first
// statement of the body is considered, and it must be a bare string literal.
func pythonDoc(decl *sitter.Node, source []byte) string {
	body := decl.ChildByFieldName("body")
	if body == nil {
		return ""
	}

	var first *sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		first = child
		break
	}
	if first == nil || first.Type() != "expression_statement" || first.NamedChildCount() != 1 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	return TrimPythonString(NodeText(str, source))
}

var pythonQuotes = []string{`"""`, `'''`, `"`, `'`}

// TrimPythonString strips string prefixes (r, b, u, f) and the surrounding
// quote delimiters from a Python string literal, then trims whitespace.
func TrimPythonString(lit string) string {
	s := strings.TrimSpace(lit)
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range pythonQuotes {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			s = s[len(q) : len(s)-len(q)]
			break
		}
	}
	return strings.TrimSpace(s)
}
