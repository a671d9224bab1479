package where

import (
	"fmt"
	"strings"
	"time"
)

// Evaluate parses src and evaluates it against ctx. Parse errors surface to
// the caller; they are never swallowed into a non-match.
func Evaluate(src string, ctx Context) (bool, error) {
	expr, err := Parse(src)
	if err != nil {
		return false, err
	}
	return Eval(expr, ctx), nil
}

// Eval evaluates a parsed predicate. Comparisons against a missing
// attribute are non-matching rather than errors, so one expression stays
// safe across heterogeneous record sets.
func Eval(expr Expr, ctx Context) bool {
	switch e := expr.(type) {
	case *AndExpr:
		return Eval(e.Left, ctx) && Eval(e.Right, ctx)
	case *OrExpr:
		return Eval(e.Left, ctx) || Eval(e.Right, ctx)
	case *NotExpr:
		return !Eval(e.Inner, ctx)
	case *CmpExpr:
		return evalCmp(e, ctx)
	}
	return false
}

func evalCmp(e *CmpExpr, ctx Context) bool {
	value, ok := lookup(e.Field, ctx)
	if !ok {
		return false
	}

	switch e.Op {
	case OpContains:
		return evalContains(value, e.Value)
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
		cmp, ok := compare(value, e.Value)
		if !ok {
			return false
		}
		switch e.Op {
		case OpEq:
			return cmp == 0
		case OpNe:
			return cmp != 0
		case OpGt:
			return cmp > 0
		case OpGe:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		case OpLe:
			return cmp <= 0
		}
	}
	return false
}

// lookup resolves an identifier to its value: file.* names read file
// metadata, everything else reads frontmatter. Stat data that was
// unavailable reports as absent.
func lookup(field string, ctx Context) (any, bool) {
	if !strings.HasPrefix(field, "file.") {
		v, ok := ctx.Attrs[field]
		return v, ok && v != nil
	}
	switch field {
	case "file.name":
		return ctx.File.Name, ctx.File.Name != ""
	case "file.path":
		return ctx.File.Path, ctx.File.Path != ""
	case "file.folder":
		return ctx.File.Folder, true
	case "file.ext":
		return ctx.File.Ext, ctx.File.Ext != ""
	case "file.size":
		return ctx.File.Size, true
	case "file.created":
		return ctx.File.CreatedAt, !ctx.File.CreatedAt.IsZero()
	case "file.modified":
		return ctx.File.ModifiedAt, !ctx.File.ModifiedAt.IsZero()
	}
	return nil, false
}

// compare returns -1/0/1 for value against the literal, or ok=false when
// the pair is incomparable (which makes the comparison non-matching).
func compare(value any, lit Literal) (int, bool) {
	switch lit.Kind {
	case LitBool:
		b, ok := value.(bool)
		if !ok {
			return 0, false
		}
		if b == lit.Bool {
			return 0, true
		}
		return 1, true
	case LitNumber:
		n, ok := asNumber(value)
		if !ok {
			return 0, false
		}
		return cmpFloat(n, lit.Num), true
	case LitString:
		if t, ok := value.(time.Time); ok {
			lim, err := parseTimeLiteral(lit.Str)
			if err != nil {
				return 0, false
			}
			return t.Compare(lim), true
		}
		s, ok := asString(value)
		if !ok {
			return 0, false
		}
		return strings.Compare(s, lit.Str), true
	}
	return 0, false
}

func evalContains(value any, lit Literal) bool {
	switch v := value.(type) {
	case string:
		return lit.Kind == LitString && strings.Contains(v, lit.Str)
	case []any:
		for _, item := range v {
			if cmp, ok := compare(item, lit); ok && cmp == 0 {
				return true
			}
		}
	}
	return false
}

func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func asString(value any) (string, bool) {
	switch s := value.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	}
	return "", false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// parseTimeLiteral accepts RFC3339 timestamps and bare dates.
func parseTimeLiteral(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
