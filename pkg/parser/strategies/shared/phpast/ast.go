// Package phpast provides shared PHP AST traversal utilities for test discovery.
package phpast

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/specvital/explorer/pkg/domain"
	"github.com/specvital/explorer/pkg/parser"
)

// PHP AST node types.
const (
	NodeClassDeclaration   = "class_declaration"
	NodeMethodDeclaration  = "method_declaration"
	NodeDeclarationList    = "declaration_list"
	NodeName               = "name"
	NodeVisibilityModifier = "visibility_modifier"
)

// VisibilityPublic is the only visibility PHPUnit will invoke a test method with.
const VisibilityPublic = "public"

// GetClassNameNode returns the name node of a class_declaration.
func GetClassNameNode(node *sitter.Node) *sitter.Node {
	return parser.FindChildByType(node, NodeName)
}

// GetMethodName extracts the method name from a method_declaration node.
func GetMethodName(node *sitter.Node, source []byte) string {
	if name := parser.FindChildByType(node, NodeName); name != nil {
		return parser.GetNodeText(name, source)
	}
	return ""
}

// GetDeclarationList returns the declaration_list (class body) from a class_declaration.
func GetDeclarationList(node *sitter.Node) *sitter.Node {
	return parser.FindChildByType(node, NodeDeclarationList)
}

// GetMethods returns the method_declaration nodes of a class body in source order.
func GetMethods(body *sitter.Node) []*sitter.Node {
	return parser.FindChildrenByType(body, NodeMethodDeclaration)
}

// GetVisibilityModifier returns the explicit visibility_modifier of a
// method_declaration, or nil when the method has none.
func GetVisibilityModifier(node *sitter.Node) *sitter.Node {
	return parser.FindChildByType(node, NodeVisibilityModifier)
}

// IsPublic reports whether a method_declaration is explicitly declared public.
// Methods without a modifier are public at runtime but are not treated as tests.
func IsPublic(node *sitter.Node, source []byte) bool {
	mod := GetVisibilityModifier(node)
	return mod != nil && parser.GetNodeText(mod, source) == VisibilityPublic
}

// MethodLocation returns where a test method is declared. The row of the
// visibility modifier is used so that docblocks and attributes above the
// method do not shift it.
func MethodLocation(node *sitter.Node, filename string) domain.Location {
	if mod := GetVisibilityModifier(node); mod != nil {
		return parser.GetLocation(mod, filename)
	}
	return parser.GetLocation(node, filename)
}
