//go:build cgo

package scope

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// IsAvailable reports whether structural scope analysis is compiled in.
func IsAvailable() bool {
	return true
}

func parse(ctx context.Context, source []byte) (*sitter.Node, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return tree.RootNode(), nil
}

func nodeText(n *sitter.Node, source []byte) string {
	return string(source[n.StartByte():n.EndByte()])
}

func declLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// spanContains reports whether the node's line span covers the 1-based line.
func spanContains(n *sitter.Node, line int) bool {
	row := uint32(line - 1)
	return n.StartPoint().Row <= row && row <= n.EndPoint().Row
}

// parseVisible walks the module and collects identifiers lexically visible
// at the given 1-based line: module-level bindings, plus parameters and
// local bindings of every function or class body that encloses the line.
// Bindings in non-enclosing function bodies are skipped.
func parseVisible(ctx context.Context, source []byte, line int) ([]Entry, error) {
	root, err := parse(ctx, source)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	collectScope(root, source, line, true, &entries)
	return entries, nil
}

// parseModuleTopLevel collects the top-level bindings of a module: its
// public surface for the module form of AttributeError. Function bodies are
// never entered.
func parseModuleTopLevel(ctx context.Context, source []byte) ([]Entry, error) {
	root, err := parse(ctx, source)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	// No line is enclosed, so defs contribute their names only.
	collectScope(root, source, 0, true, &entries)
	return entries, nil
}

// collectScope gathers bindings from the statements directly under n.
// topLevel relaxes the declared-before-use rule: module-level names are
// candidates regardless of position, local ones only when declared at or
// before the target line.
func collectScope(n *sitter.Node, source []byte, line int, topLevel bool, out *[]Entry) {
	before := func(c *sitter.Node) bool {
		return topLevel || declLine(c) <= line
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "import_statement":
			collectImport(c, source, out)

		case "import_from_statement":
			collectImportFrom(c, source, out)

		case "expression_statement":
			if !before(c) {
				continue
			}
			for j := 0; j < int(c.NamedChildCount()); j++ {
				e := c.NamedChild(j)
				if e.Type() == "assignment" || e.Type() == "augmented_assignment" {
					collectTargets(e.ChildByFieldName("left"), source, OriginAssignment, out)
				}
			}

		case "function_definition":
			if name := c.ChildByFieldName("name"); name != nil {
				*out = append(*out, Entry{nodeText(name, source), declLine(c), OriginFunction})
			}
			if spanContains(c, line) {
				collectParameters(c.ChildByFieldName("parameters"), source, out)
				if body := c.ChildByFieldName("body"); body != nil {
					collectScope(body, source, line, false, out)
				}
			}

		case "class_definition":
			if name := c.ChildByFieldName("name"); name != nil {
				*out = append(*out, Entry{nodeText(name, source), declLine(c), OriginClass})
			}
			if spanContains(c, line) {
				if body := c.ChildByFieldName("body"); body != nil {
					collectScope(body, source, line, false, out)
				}
			}

		case "for_statement":
			if before(c) {
				collectTargets(c.ChildByFieldName("left"), source, OriginAssignment, out)
			}
			collectScope(c, source, line, topLevel, out)

		case "global_statement", "nonlocal_statement":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if id := c.NamedChild(j); id.Type() == "identifier" {
					*out = append(*out, Entry{nodeText(id, source), declLine(c), OriginAssignment})
				}
			}

		case "as_pattern":
			// `with open(f) as fh:` / `except ValueError as e:`
			if alias := c.ChildByFieldName("alias"); alias != nil && before(c) {
				collectTargets(alias, source, OriginAssignment, out)
			}

		default:
			// Compound statements (if/while/try/with/match, decorated
			// definitions) share the enclosing scope; descend. Function and
			// class bodies never reach here, they are handled above.
			collectScope(c, source, line, topLevel, out)
		}
	}
}

// collectImport handles `import a.b, c as d`.
func collectImport(n *sitter.Node, source []byte, out *[]Entry) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "dotted_name":
			// `import a.b` binds the root package name `a`.
			if first := c.NamedChild(0); first != nil {
				*out = append(*out, Entry{nodeText(first, source), declLine(n), OriginImport})
			}
		case "aliased_import":
			if alias := c.ChildByFieldName("alias"); alias != nil {
				*out = append(*out, Entry{nodeText(alias, source), declLine(n), OriginImport})
			}
		}
	}
}

// collectImportFrom handles `from m import x, y as z`. The first dotted
// name is the source module, not a binding; everything after the `import`
// keyword is.
func collectImportFrom(n *sitter.Node, source []byte, out *[]Entry) {
	sawImport := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if !c.IsNamed() {
			if nodeText(c, source) == "import" {
				sawImport = true
			}
			continue
		}
		if !sawImport {
			continue
		}
		switch c.Type() {
		case "dotted_name":
			// `from a import b.c` is not legal; a dotted name here is a
			// plain name list member.
			if last := c.NamedChild(int(c.NamedChildCount()) - 1); last != nil {
				*out = append(*out, Entry{nodeText(last, source), declLine(n), OriginImport})
			}
		case "aliased_import":
			if alias := c.ChildByFieldName("alias"); alias != nil {
				*out = append(*out, Entry{nodeText(alias, source), declLine(n), OriginImport})
			}
		case "identifier":
			*out = append(*out, Entry{nodeText(c, source), declLine(n), OriginImport})
		case "wildcard_import":
			// `from m import *` binds unknowable names; nothing to record.
		}
	}
}

// collectParameters extracts parameter names, skipping annotations and
// default expressions.
func collectParameters(params *sitter.Node, source []byte, out *[]Entry) {
	if params == nil {
		return
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		c := params.NamedChild(i)
		switch c.Type() {
		case "identifier":
			*out = append(*out, Entry{nodeText(c, source), declLine(c), OriginParameter})
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			if id := firstIdentifier(c); id != nil {
				*out = append(*out, Entry{nodeText(id, source), declLine(c), OriginParameter})
			}
		case "default_parameter", "typed_default_parameter":
			if name := c.ChildByFieldName("name"); name != nil {
				*out = append(*out, Entry{nodeText(name, source), declLine(c), OriginParameter})
			}
		}
	}
}

// collectTargets extracts the identifiers bound by an assignment target,
// descending through tuple and list patterns. Attribute and subscript
// targets bind no new name and are skipped.
func collectTargets(target *sitter.Node, source []byte, origin Origin, out *[]Entry) {
	if target == nil {
		return
	}
	switch target.Type() {
	case "identifier":
		*out = append(*out, Entry{nodeText(target, source), declLine(target), origin})
	case "pattern_list", "tuple_pattern", "list_pattern", "list_splat_pattern":
		for i := 0; i < int(target.NamedChildCount()); i++ {
			collectTargets(target.NamedChild(i), source, origin, out)
		}
	}
}

func firstIdentifier(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "identifier" {
			return c
		}
	}
	return nil
}

// parseClassAttributes finds the named class and collects its statically
// visible attributes: method names, class-level assignments, and `self.x`
// assignment targets inside methods. found is false when no class with that
// name exists in the file.
func parseClassAttributes(ctx context.Context, source []byte, className string) ([]Entry, bool, error) {
	root, err := parse(ctx, source)
	if err != nil {
		return nil, false, err
	}

	cls := findClass(root, source, className)
	if cls == nil {
		return nil, false, nil
	}

	body := cls.ChildByFieldName("body")
	if body == nil {
		return nil, true, nil
	}

	var entries []Entry
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		switch c.Type() {
		case "function_definition":
			if name := c.ChildByFieldName("name"); name != nil {
				entries = append(entries, Entry{nodeText(name, source), declLine(c), OriginAttribute})
			}
			collectSelfAttributes(c, source, &entries)
		case "expression_statement":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				e := c.NamedChild(j)
				if e.Type() == "assignment" || e.Type() == "augmented_assignment" {
					collectTargets(e.ChildByFieldName("left"), source, OriginAttribute, &entries)
				}
			}
		case "decorated_definition":
			if def := c.ChildByFieldName("definition"); def != nil && def.Type() == "function_definition" {
				if name := def.ChildByFieldName("name"); name != nil {
					entries = append(entries, Entry{nodeText(name, source), declLine(def), OriginAttribute})
				}
				collectSelfAttributes(def, source, &entries)
			}
		}
	}
	return entries, true, nil
}

// collectSelfAttributes records `self.x = ...` targets anywhere inside a
// method body.
func collectSelfAttributes(method *sitter.Node, source []byte, out *[]Entry) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "assignment" || n.Type() == "augmented_assignment" {
			if left := n.ChildByFieldName("left"); left != nil && left.Type() == "attribute" {
				obj := left.ChildByFieldName("object")
				attr := left.ChildByFieldName("attribute")
				if obj != nil && attr != nil && nodeText(obj, source) == "self" {
					*out = append(*out, Entry{nodeText(attr, source), declLine(n), OriginAttribute})
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(method)
}

func findClass(root *sitter.Node, source []byte, className string) *sitter.Node {
	var found *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found != nil {
			return
		}
		if n.Type() == "class_definition" {
			if name := n.ChildByFieldName("name"); name != nil && nodeText(name, source) == className {
				found = n
				return
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return found
}
