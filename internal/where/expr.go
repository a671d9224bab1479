// Package where implements the small boolean predicate language used to
// select records by frontmatter attribute and file metadata.
//
// Grammar (lowest to highest precedence):
//
//	expr    := and ( ("or" | "||") and )*
//	and     := unary ( ("and" | "&&") unary )*
//	unary   := ("not" | "!") unary | "(" expr ")" | comparison
//	cmp     := identifier op literal
//	op      := == | != | > | >= | < | <= | contains
//
// Identifiers resolve to frontmatter attributes, or to file metadata via
// the file. prefix: file.name, file.path, file.folder, file.ext,
// file.size, file.created, file.modified.
package where

import (
	"github.com/starford/ansuz/internal/models"
)

// Comparison operators.
const (
	OpEq       = "=="
	OpNe       = "!="
	OpGt       = ">"
	OpGe       = ">="
	OpLt       = "<"
	OpLe       = "<="
	OpContains = "contains"
)

// Expr is a parsed predicate node.
type Expr interface {
	// Fields returns every attribute identifier referenced by the
	// subtree, excluding file metadata fields.
	Fields() []string
}

// AndExpr is a conjunction of two predicates.
type AndExpr struct {
	Left, Right Expr
}

// OrExpr is a disjunction of two predicates.
type OrExpr struct {
	Left, Right Expr
}

// NotExpr negates a predicate.
type NotExpr struct {
	Inner Expr
}

// CmpExpr is a leaf comparison of one attribute against a literal.
type CmpExpr struct {
	Field string
	Op    string
	Value Literal
}

// Literal kinds.
const (
	LitString = iota
	LitNumber
	LitBool
)

// Literal is a comparison operand.
type Literal struct {
	Kind int
	Str  string
	Num  float64
	Bool bool
}

// Context is the per-record evaluation input.
type Context struct {
	Attrs map[string]any
	File  models.FileMeta
}

func (e *AndExpr) Fields() []string { return append(e.Left.Fields(), e.Right.Fields()...) }
func (e *OrExpr) Fields() []string  { return append(e.Left.Fields(), e.Right.Fields()...) }
func (e *NotExpr) Fields() []string { return e.Inner.Fields() }

func (e *CmpExpr) Fields() []string {
	if isFileField(e.Field) {
		return nil
	}
	return []string{e.Field}
}

func isFileField(name string) bool {
	switch name {
	case "file.name", "file.path", "file.folder", "file.ext",
		"file.size", "file.created", "file.modified":
		return true
	}
	return false
}
