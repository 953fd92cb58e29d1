package ast

import (
	"fmt"
	"io"
	"strings"
)

// Dump returns a human-readable representation of the AST.
func Dump(node Node) string {
	var sb strings.Builder
	fprintNode(&sb, node, 0)
	return sb.String()
}

func fprintBody(w io.Writer, label string, body []Stmt, indent int) {
	ind := strings.Repeat("  ", indent)
	fmt.Fprintf(w, "%s%s:\n", ind, label)
	for _, s := range body {
		fprintNode(w, s, indent+1)
	}
}

func fprintNode(w io.Writer, n Node, indent int) {
	if n == nil {
		return
	}

	ind := strings.Repeat("  ", indent)

	switch n := n.(type) {
	case *Module:
		fmt.Fprintf(w, "%sModule\n", ind)
		for _, s := range n.Body {
			fprintNode(w, s, indent+1)
		}

	case *FuncDef:
		params := make([]string, len(n.Params))
		for i, p := range n.Params {
			params[i] = p.Name
		}
		fmt.Fprintf(w, "%sFuncDef name=%s params=[%s]\n", ind, n.Name, strings.Join(params, ", "))
		fprintBody(w, "Body", n.Body, indent+1)

	case *Param:
		fmt.Fprintf(w, "%sParam name=%s\n", ind, n.Name)

	case *AssignStmt:
		fmt.Fprintf(w, "%sAssign\n", ind)
		fmt.Fprintf(w, "%s  Targets:\n", ind)
		for _, t := range n.Targets {
			fprintNode(w, t, indent+2)
		}
		fmt.Fprintf(w, "%s  Value:\n", ind)
		fprintNode(w, n.Value, indent+2)

	case *ExprStmt:
		fmt.Fprintf(w, "%sExprStmt\n", ind)
		fprintNode(w, n.Expression, indent+1)

	case *IfStmt:
		fmt.Fprintf(w, "%sIfStmt\n", ind)
		fmt.Fprintf(w, "%s  Cond:\n", ind)
		fprintNode(w, n.Cond, indent+2)
		fprintBody(w, "Then", n.Body, indent+1)
		if n.Else != nil {
			fprintBody(w, "Else", n.Else, indent+1)
		}

	case *WhileStmt:
		fmt.Fprintf(w, "%sWhileStmt\n", ind)
		fmt.Fprintf(w, "%s  Cond:\n", ind)
		fprintNode(w, n.Cond, indent+2)
		fprintBody(w, "Body", n.Body, indent+1)

	case *ForStmt:
		fmt.Fprintf(w, "%sForStmt\n", ind)
		fmt.Fprintf(w, "%s  Target:\n", ind)
		fprintNode(w, n.Target, indent+2)
		fmt.Fprintf(w, "%s  Iter:\n", ind)
		fprintNode(w, n.Iter, indent+2)
		fprintBody(w, "Body", n.Body, indent+1)

	case *ReturnStmt:
		fmt.Fprintf(w, "%sReturnStmt\n", ind)
		if n.Result != nil {
			fprintNode(w, n.Result, indent+1)
		}

	case *PassStmt:
		fmt.Fprintf(w, "%sPassStmt\n", ind)

	case *BreakStmt:
		fmt.Fprintf(w, "%sBreakStmt\n", ind)

	case *ContinueStmt:
		fmt.Fprintf(w, "%sContinueStmt\n", ind)

	case *Name:
		fmt.Fprintf(w, "%sName %s\n", ind, n.Name)

	case *IntLiteral:
		fmt.Fprintf(w, "%sIntLiteral %s\n", ind, n.Raw)

	case *BoolLiteral:
		fmt.Fprintf(w, "%sBoolLiteral %t\n", ind, n.Value)

	case *BinaryExpr:
		fmt.Fprintf(w, "%sBinaryExpr op=%s\n", ind, n.Op)
		fprintNode(w, n.Left, indent+1)
		fprintNode(w, n.Right, indent+1)

	case *CompareExpr:
		ops := make([]string, len(n.Ops))
		for i, op := range n.Ops {
			ops[i] = op.String()
		}
		fmt.Fprintf(w, "%sCompareExpr ops=[%s]\n", ind, strings.Join(ops, ", "))
		fprintNode(w, n.Left, indent+1)
		for _, c := range n.Comparators {
			fprintNode(w, c, indent+1)
		}

	case *BoolOpExpr:
		fmt.Fprintf(w, "%sBoolOpExpr op=%s\n", ind, n.Op)
		for _, v := range n.Values {
			fprintNode(w, v, indent+1)
		}

	case *UnaryExpr:
		fmt.Fprintf(w, "%sUnaryExpr op=%s\n", ind, n.Op)
		fprintNode(w, n.X, indent+1)

	case *CallExpr:
		fmt.Fprintf(w, "%sCallExpr\n", ind)
		fmt.Fprintf(w, "%s  Func:\n", ind)
		fprintNode(w, n.Func, indent+2)
		if len(n.Args) > 0 {
			fmt.Fprintf(w, "%s  Args:\n", ind)
			for _, a := range n.Args {
				fprintNode(w, a, indent+2)
			}
		}

	case *AttributeExpr:
		fmt.Fprintf(w, "%sAttributeExpr name=%s\n", ind, n.Name)
		fprintNode(w, n.X, indent+1)

	case *ListLiteral:
		fmt.Fprintf(w, "%sListLiteral\n", ind)
		for _, e := range n.Elements {
			fprintNode(w, e, indent+1)
		}

	case *YieldExpr:
		fmt.Fprintf(w, "%sYieldExpr\n", ind)
		if n.Value != nil {
			fprintNode(w, n.Value, indent+1)
		}

	default:
		fmt.Fprintf(w, "%s<unknown %T>\n", ind, n)
	}
}
