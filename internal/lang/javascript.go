package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Arrow functions and function expressions are anonymous and deliberately
// not declaration kinds.
var jsDeclKinds = []string{
	"function_declaration",
	"generator_function_declaration",
	"method_definition",
}

var jsNameKinds = []string{
	"identifier",
	"property_identifier",
	"private_property_identifier",
}

func init() {
	Register(&Strategy{
		Tag:         JavaScript,
		DeclKinds:   kindSet(jsDeclKinds...),
		CallKinds:   kindSet("call_expression"),
		NameKinds:   kindSet(jsNameKinds...),
		CalleeField: "function",
		BodyField:   "body",
		DocOf:       jsDoc,
	})
	Register(&Strategy{
		Tag: TypeScript,
		DeclKinds: kindSet(append(jsDeclKinds,
			"function_signature",
			"method_signature",
			"abstract_method_signature",
		)...),
		CallKinds:   kindSet("call_expression"),
		NameKinds:   kindSet(jsNameKinds...),
		CalleeField: "function",
		BodyField:   "body",
		DocOf:       jsDoc,
	})

	js := Grammar{Name: "javascript", Language: javascript.GetLanguage, Tag: JavaScript}
	RegisterExtension(".js", js)
	RegisterExtension(".jsx", js)
	RegisterExtension(".ts", Grammar{Name: "typescript", Language: ts.GetLanguage, Tag: TypeScript})
	RegisterExtension(".tsx", Grammar{Name: "tsx", Language: tsx.GetLanguage, Tag: TypeScript})
}

// jsDoc returns the comment immediately preceding a declaration. An exported
// declaration is anchored at its export statement. Only the adjacent sibling
// is inspected.
func jsDoc(decl *sitter.Node, source []byte) string {
	anchor := decl
	if p := decl.Parent(); p != nil && p.Type() == "export_statement" {
		anchor = p
	}
	prev := anchor.PrevSibling()
	if prev == nil || prev.Type() != "comment" {
		return ""
	}
	return CommentText(NodeText(prev, source))
}

// CommentText normalizes a comment body. Block comments are unwrapped line by
// line with leading '*' removed; line comments keep their trailing text.
func CommentText(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		return strings.TrimSpace(strings.TrimPrefix(raw, "//"))
	}
	if !strings.HasPrefix(raw, "/*") || !strings.HasSuffix(raw, "*/") || len(raw) < 4 {
		return ""
	}

	inner := raw[2 : len(raw)-2]
	inner = strings.TrimPrefix(inner, "*")

	var lines []string
	for _, line := range strings.Split(inner, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "*")
		lines = append(lines, strings.TrimSpace(line))
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
