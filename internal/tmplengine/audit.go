package tmplengine

import (
	"fmt"
	"text/template/parse"

	"github.com/looplj/tzcore/internal/errkit"
)

// auditNode walks a parsed template tree, checking every field path rooted
// at the top-level dot (".foo.bar.baz") resolves inside scope. Paths
// rooted at a range/with-introduced dot, a variable, or a pipeline result
// are left to execution-time semantics (text/template already raises a
// clear error for those once it tries to call a method on a nil interface),
// since statically resolving them would require a full type evaluator.
func auditNode(n parse.Node, scope map[string]any) error {
	switch node := n.(type) {
	case *parse.ListNode:
		if node == nil {
			return nil
		}

		for _, child := range node.Nodes {
			if err := auditNode(child, scope); err != nil {
				return err
			}
		}

	case *parse.ActionNode:
		return auditPipe(node.Pipe, scope)

	case *parse.IfNode:
		if err := auditPipe(node.Pipe, scope); err != nil {
			return err
		}

		if err := auditNode(node.List, scope); err != nil {
			return err
		}

		return auditNode(node.ElseList, scope)

	case *parse.WithNode:
		return auditPipe(node.Pipe, scope)

	case *parse.RangeNode:
		return auditPipe(node.Pipe, scope)

	case *parse.TemplateNode:
		return auditPipe(node.Pipe, scope)
	}

	return nil
}

func auditPipe(p *parse.PipeNode, scope map[string]any) error {
	if p == nil {
		return nil
	}

	for _, cmd := range p.Cmds {
		for _, arg := range cmd.Args {
			field, ok := arg.(*parse.FieldNode)
			if !ok {
				continue
			}

			if err := resolveFieldPath(field.Ident, scope); err != nil {
				return err
			}
		}
	}

	return nil
}

// resolveFieldPath checks that path resolves inside scope, descending
// through nested map[string]any values the way text/template would at
// execution time.
func resolveFieldPath(path []string, scope map[string]any) error {
	cur := any(scope)

	for i, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			// Not a map we can statically audit (e.g. a struct field or a
			// slice); defer to execution-time behavior.
			return nil
		}

		v, present := m[key]
		if !present {
			return errkit.New(errkit.TemplateRender,
				fmt.Sprintf("undefined key %q in field path %q", key, joinPath(path)))
		}

		if i == len(path)-1 {
			return nil
		}

		cur = v
	}

	return nil
}

func joinPath(path []string) string {
	out := "."
	for i, p := range path {
		if i > 0 {
			out += "."
		}

		out += p
	}

	return out
}
