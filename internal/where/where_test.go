package where

import (
	"testing"
	"time"

	"github.com/starford/ansuz/internal/models"
)

func TestParsePrecedence(t *testing.T) {
	expr, err := Parse("a == 1 or b == 2 and c == 3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	or, ok := expr.(*OrExpr)
	if !ok {
		t.Fatalf("root is %T, want *OrExpr", expr)
	}
	if _, ok := or.Left.(*CmpExpr); !ok {
		t.Errorf("left is %T, want *CmpExpr", or.Left)
	}
	if _, ok := or.Right.(*AndExpr); !ok {
		t.Errorf("right is %T, want *AndExpr (and binds tighter)", or.Right)
	}
}

func TestParseParensAndNot(t *testing.T) {
	expr, err := Parse("not (status == done || status == dropped)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	n, ok := expr.(*NotExpr)
	if !ok {
		t.Fatalf("root is %T, want *NotExpr", expr)
	}
	if _, ok := n.Inner.(*OrExpr); !ok {
		t.Errorf("inner is %T, want *OrExpr", n.Inner)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"status ==",
		"== done",
		"status = done",
		"'unterminated",
		"(status == done",
		"status == done trailing",
		"a === b",
	}
	for _, src := range cases {
		if _, err := Parse(src); err == nil {
			t.Errorf("Parse(%q): expected error", src)
		}
	}
}

func TestFields(t *testing.T) {
	expr, err := Parse("status == done and file.size > 10 and priority >= 2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := expr.Fields()
	want := map[string]bool{"status": true, "priority": true}
	if len(got) != len(want) {
		t.Fatalf("fields = %v", got)
	}
	for _, f := range got {
		if !want[f] {
			t.Errorf("unexpected field %q", f)
		}
	}
}

func TestEvaluate(t *testing.T) {
	ctx := Context{
		Attrs: map[string]any{
			"status":   "active",
			"priority": 2,
			"rating":   4.5,
			"done":     false,
			"tags":     []any{"go", "infra"},
			"title":    "Rollout plan",
			"due":      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		File: models.FileMeta{
			Name:       "Rollout plan.md",
			Path:       "objectives/Rollout plan.md",
			Folder:     "objectives",
			Ext:        ".md",
			Size:       120,
			ModifiedAt: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
		},
	}

	cases := []struct {
		src  string
		want bool
	}{
		{"status == active", true},
		{"status == 'active'", true},
		{"status != done", true},
		{"priority > 1", true},
		{"priority >= 3", false},
		{"rating > 4", true},
		{"done == false", true},
		{"done == true", false},
		{"tags contains go", true},
		{"tags contains rust", false},
		{"title contains 'plan'", true},
		{"due > '2026-01-01'", true},
		{"due < '2026-01-01'", false},
		{"file.name contains Rollout", true},
		{"file.folder == objectives", true},
		{"file.size > 100", true},
		{"file.modified > '2026-02-01'", true},
		// Missing attributes never match, including through negated comparisons.
		{"ghost == anything", false},
		{"not ghost == anything", true},
		{"status == active and priority < 3", true},
		{"status == done or priority < 3", true},
		{"!(status == done) && priority == 2", true},
		// Type mismatches are non-matching, not errors.
		{"status > 5", false},
		{"priority == active", false},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.src, ctx)
		if err != nil {
			t.Errorf("Evaluate(%q): %v", tc.src, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Evaluate(%q) = %v, want %v", tc.src, got, tc.want)
		}
	}
}

func TestEvaluateSyntaxErrorSurfaces(t *testing.T) {
	if _, err := Evaluate("status ==", Context{}); err == nil {
		t.Error("expected parse error to surface")
	}
}
