package graphql

import (
	"fmt"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
)

// DefaultMaxDepth admits every query the schema can express
const DefaultMaxDepth = 4

// DepthError rejects a query nested deeper than the handler allows
type DepthError struct {
	Depth int
	Max   int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("query depth %d exceeds maximum allowed depth %d", e.Depth, e.Max)
}

// ValidateQueryDepth parses query and fails with *DepthError when any
// operation nests more than maxDepth fields. Introspection fields are free.
func ValidateQueryDepth(query string, maxDepth int) error {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return fmt.Errorf("failed to parse query: %w", err)
	}
	if depth := documentDepth(doc); depth > maxDepth {
		return &DepthError{Depth: depth, Max: maxDepth}
	}
	return nil
}

// depthWalker measures selection sets, expanding named fragments in place
type depthWalker struct {
	fragments map[string]*ast.FragmentDefinition
	expanding map[string]bool
}

func documentDepth(doc *ast.Document) int {
	w := depthWalker{
		fragments: make(map[string]*ast.FragmentDefinition),
		expanding: make(map[string]bool),
	}
	for _, def := range doc.Definitions {
		if frag, ok := def.(*ast.FragmentDefinition); ok && frag.Name != nil {
			w.fragments[frag.Name.Value] = frag
		}
	}

	deepest := 0
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok {
			deepest = max(deepest, w.selections(op.SelectionSet, 0))
		}
	}
	return deepest
}

// selections returns the depth reached below set, which sits at depth
func (w depthWalker) selections(set *ast.SelectionSet, depth int) int {
	if set == nil {
		return depth
	}
	deepest := depth
	for _, sel := range set.Selections {
		switch s := sel.(type) {
		case *ast.Field:
			if s.Name != nil && strings.HasPrefix(s.Name.Value, "__") {
				continue
			}
			deepest = max(deepest, w.selections(s.SelectionSet, depth+1))
		case *ast.InlineFragment:
			deepest = max(deepest, w.selections(s.SelectionSet, depth))
		case *ast.FragmentSpread:
			if s.Name == nil {
				continue
			}
			name := s.Name.Value
			frag, ok := w.fragments[name]
			if !ok || w.expanding[name] {
				// unknown or cyclic spreads are left for schema validation
				continue
			}
			w.expanding[name] = true
			deepest = max(deepest, w.selections(frag.SelectionSet, depth))
			delete(w.expanding, name)
		}
	}
	return deepest
}
