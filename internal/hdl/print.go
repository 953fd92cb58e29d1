package hdl

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FormatValue renders a value as a compact infix expression.
func FormatValue(v Value) string {
	switch v := v.(type) {
	case nil:
		return "<nil>"
	case *Signal:
		if v.Name == "" {
			return "<anon>"
		}
		return v.Name
	case *Const:
		return strconv.FormatInt(v.Value, 10)
	case *BinOp:
		return "(" + FormatValue(v.Left) + " " + v.Op.String() + " " + FormatValue(v.Right) + ")"
	case *Slice:
		if v.Hi == v.Lo+1 {
			return fmt.Sprintf("%s[%d]", FormatValue(v.X), v.Lo)
		}
		return fmt.Sprintf("%s[%d:%d]", FormatValue(v.X), v.Lo, v.Hi)
	default:
		return fmt.Sprintf("<%T>", v)
	}
}

// Fprint writes stmts one per line. describe renders placeholders; when nil
// they print as their Go type.
func Fprint(w io.Writer, stmts []Stmt, indent int, describe func(Unresolved) string) {
	ind := strings.Repeat("  ", indent)
	for _, s := range stmts {
		switch s := s.(type) {
		case *Assign:
			fmt.Fprintf(w, "%s%s = %s\n", ind, FormatValue(s.Target), FormatValue(s.Value))
		case *If:
			fmt.Fprintf(w, "%sif %s:\n", ind, FormatValue(s.Cond))
			Fprint(w, s.Then, indent+1, describe)
			if len(s.Else) > 0 {
				fmt.Fprintf(w, "%selse:\n", ind)
				Fprint(w, s.Else, indent+1, describe)
			}
		case *Case:
			fmt.Fprintf(w, "%scase %s:\n", ind, FormatValue(s.Test))
			for _, arm := range s.Arms {
				fmt.Fprintf(w, "%s  %d:\n", ind, arm.Match.Value)
				Fprint(w, arm.Body, indent+2, describe)
			}
			if len(s.Default) > 0 {
				fmt.Fprintf(w, "%s  default:\n", ind)
				Fprint(w, s.Default, indent+2, describe)
			}
		case Unresolved:
			if describe != nil {
				fmt.Fprintf(w, "%s%s\n", ind, describe(s))
			} else {
				fmt.Fprintf(w, "%s<%T>\n", ind, s)
			}
		default:
			fmt.Fprintf(w, "%s<unknown %T>\n", ind, s)
		}
	}
}
