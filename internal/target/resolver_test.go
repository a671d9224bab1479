package target

import (
	"errors"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/storage"
)

const targetSchemaYAML = `
shared:
  status:
    kind: selection
    enum: status
enums:
  status: [open, done]
types:
  objective:
    location: objectives
    shared: [status]
    fields:
      title:
        kind: text
    children:
      task:
        fields:
          due:
            kind: date
      milestone: {}
  note:
    location: notes
    fields:
      title:
        kind: text
`

func testVault(t *testing.T) (*schema.Schema, storage.Provider) {
	t.Helper()
	s, err := schema.Load([]byte(targetSchemaYAML))
	if err != nil {
		t.Fatalf("schema.Load: %v", err)
	}
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	files := map[string]string{
		"objectives/Alpha.md":     "---\ntype: objective\ntitle: Alpha\nstatus: open\n---\nalpha body\n",
		"objectives/Beta Task.md": "---\ntype: objective\nobjective-type: task\ntitle: Beta\nstatus: done\n---\nbeta body\n",
		"objectives/Plain.md":     "no frontmatter here\n",
		"notes/Gamma.md":          "---\ntype: note\ntitle: Gamma\n---\ngamma text\n",
		"notes/Broken.md":         "---\ntitle: [unclosed\n---\nbroken\n",
	}
	for path, content := range files {
		if err := store.Write(path, []byte(content)); err != nil {
			t.Fatalf("Write %s: %v", path, err)
		}
	}
	return s, store
}

func paths(res *Result) []string {
	out := make([]string, 0, len(res.Records))
	for _, c := range res.Records {
		out = append(out, c.Meta.Path)
	}
	return out
}

func TestResolveRequiresExplicitSelection(t *testing.T) {
	s, store := testVault(t)
	_, err := Resolve(Selector{}, s, store)
	if err == nil {
		t.Fatal("expected gate failure for empty selector")
	}
	if !IsTargetingError(err) {
		t.Errorf("error type %T: %v", err, err)
	}
	var te *apperr.TargetingError
	if !errors.As(err, &te) {
		t.Errorf("not a TargetingError: %v", err)
	}

	// The execute flag alone is not a selection.
	if _, err := Resolve(Selector{Execute: true}, s, store); !IsTargetingError(err) {
		t.Errorf("execute without selection: %v", err)
	}
}

func TestResolveAll(t *testing.T) {
	s, store := testVault(t)
	res, err := Resolve(Selector{All: true}, s, store)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Broken.md is skipped with a reason, everything else matches.
	if got := paths(res); len(got) != 4 {
		t.Errorf("records = %v, want 4", got)
	}
	if len(res.Skipped) != 1 {
		t.Errorf("skipped = %v, want the unparseable record", res.Skipped)
	}
}

func TestResolveByType(t *testing.T) {
	s, store := testVault(t)

	res, err := Resolve(Selector{TypePath: "objective"}, s, store)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Selecting a parent type includes its subtypes; the untyped file in the
	// same location does not match.
	want := []string{"objectives/Alpha.md", "objectives/Beta Task.md"}
	got := paths(res)
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("records = %v, want %v", got, want)
	}

	res, err = Resolve(Selector{TypePath: "objective/task"}, s, store)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := paths(res); len(got) != 1 || got[0] != "objectives/Beta Task.md" {
		t.Errorf("records = %v", got)
	}

	if _, err := Resolve(Selector{TypePath: "ghost"}, s, store); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestResolveByTypeIncludesOwnedRecords(t *testing.T) {
	const ownedSchemaYAML = `
types:
  draft:
    location: drafts
    fields:
      ideas:
        kind: list
        link: wikilink
    owns:
      ideas: idea
  idea:
    location: ideas
    fields:
      title:
        kind: text
`
	s, err := schema.Load([]byte(ownedSchemaYAML))
	if err != nil {
		t.Fatalf("schema.Load: %v", err)
	}
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	files := map[string]string{
		"drafts/Draft A.md":              "---\ntype: draft\n---\n",
		"drafts/Draft A/ideas/Idea A.md": "---\ntype: idea\ntitle: A\n---\n",
		"ideas/Idea B.md":                "---\ntype: idea\ntitle: B\n---\n",
	}
	for path, content := range files {
		if err := store.Write(path, []byte(content)); err != nil {
			t.Fatalf("Write %s: %v", path, err)
		}
	}

	// Owned instances live under their owner's folder, not the type's own
	// output location; selecting by type must still find them.
	res, err := Resolve(Selector{TypePath: "idea"}, s, store)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"drafts/Draft A/ideas/Idea A.md", "ideas/Idea B.md"}
	got := paths(res)
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("records = %v, want %v", got, want)
	}
}

func TestResolveByGlob(t *testing.T) {
	s, store := testVault(t)
	res, err := Resolve(Selector{PathGlob: "notes/*.md"}, s, store)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := paths(res); len(got) != 1 || got[0] != "notes/Gamma.md" {
		t.Errorf("records = %v", got)
	}

	res, err = Resolve(Selector{PathGlob: "**/*.md"}, s, store)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := paths(res); len(got) != 4 {
		t.Errorf("records = %v, want 4", got)
	}
}

func TestResolveByID(t *testing.T) {
	s, store := testVault(t)
	res, err := Resolve(Selector{ID: "Alpha"}, s, store)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := paths(res); len(got) != 1 || got[0] != "objectives/Alpha.md" {
		t.Errorf("records = %v", got)
	}
	if len(res.NearMisses) != 0 {
		t.Errorf("near misses on exact match: %v", res.NearMisses)
	}
}

func TestResolveIDNearMisses(t *testing.T) {
	s, store := testVault(t)
	res, err := Resolve(Selector{ID: "alph"}, s, store)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("records = %v, want none", paths(res))
	}
	if len(res.NearMisses) != 1 || res.NearMisses[0] != "Alpha" {
		t.Errorf("near misses = %v", res.NearMisses)
	}
}

func TestResolveByWhere(t *testing.T) {
	s, store := testVault(t)
	res, err := Resolve(Selector{TypePath: "objective", Where: []string{"status == done"}}, s, store)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := paths(res); len(got) != 1 || got[0] != "objectives/Beta Task.md" {
		t.Errorf("records = %v", got)
	}
}

func TestResolveWhereUnknownField(t *testing.T) {
	s, store := testVault(t)
	_, err := Resolve(Selector{TypePath: "objective", Where: []string{"ghost == 1"}}, s, store)
	var wve *apperr.WhereValidationError
	if !errors.As(err, &wve) {
		t.Errorf("expected where validation error, got %v", err)
	}
}

func TestResolveByBody(t *testing.T) {
	s, store := testVault(t)
	res, err := Resolve(Selector{Body: "gamma text"}, s, store)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := paths(res); len(got) != 1 || got[0] != "notes/Gamma.md" {
		t.Errorf("records = %v", got)
	}
}

func TestCompileGlob(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"*.md", "a.md", true},
		{"*.md", "dir/a.md", false},
		{"**/*.md", "dir/sub/a.md", true},
		{"**/*.md", "a.md", true},
		{"notes/?.md", "notes/a.md", true},
		{"notes/?.md", "notes/ab.md", false},
		{"a/**/b.md", "a/b.md", true},
		{"a/**/b.md", "a/x/y/b.md", true},
		{"a/**/b.md", "a/xb.md", false},
	}
	for _, tc := range cases {
		re, err := compileGlob(tc.pattern)
		if err != nil {
			t.Fatalf("compileGlob(%q): %v", tc.pattern, err)
		}
		if got := re.MatchString(tc.path); got != tc.want {
			t.Errorf("glob %q against %q = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}
