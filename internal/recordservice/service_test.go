package recordservice

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/target"
)

const serviceSchemaYAML = `
shared:
  status:
    kind: selection
    enum: status
    default: open
enums:
  status: [open, done]
types:
  objective:
    location: objectives
    shared: [status]
    fields:
      title:
        kind: text
        required: true
  draft:
    location: drafts
    fields:
      title:
        kind: text
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

func testService(t *testing.T) (*Service, storage.Provider) {
	t.Helper()
	s, err := schema.Load([]byte(serviceSchemaYAML))
	if err != nil {
		t.Fatalf("schema.Load: %v", err)
	}
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	files := map[string]string{
		"objectives/Alpha.md":            "---\ntype: objective\ntitle: Alpha\nstatus: open\n---\nalpha\n",
		"objectives/Beta.md":             "---\ntype: objective\ntitle: Beta\nstatus: done\n---\nbeta\n",
		"objectives/NoTitle.md":          "---\ntype: objective\nstatus: bogus\n---\n",
		"drafts/Draft A.md":              "---\ntype: draft\ntitle: Draft A\nideas:\n  - \"[[Idea A]]\"\n---\n",
		"drafts/Draft A/ideas/Idea A.md": "---\ntype: idea\ntitle: Idea A\n---\n",
		"drafts/Other.md":                "---\ntype: draft\ntitle: Other\nideas:\n  - \"[[Idea A]]\"\n---\n",
		"ideas/Idea B.md":                "---\ntype: idea\ntitle: Idea B\n---\n",
	}
	for path, content := range files {
		if err := store.Write(path, []byte(content)); err != nil {
			t.Fatalf("Write %s: %v", path, err)
		}
	}
	return NewService(store, s), store
}

func TestListByType(t *testing.T) {
	svc, _ := testService(t)
	items, _, err := svc.List(context.Background(), target.Selector{TypePath: "objective"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if items[0].Path != "objectives/Alpha.md" || items[0].Title != "Alpha" {
		t.Errorf("first item = %+v", items[0])
	}
}

func TestListByTypeIncludesOwnedRecords(t *testing.T) {
	svc, _ := testService(t)

	// Idea A lives under its owner's folder rather than the idea location;
	// selecting by type must surface it alongside the pooled Idea B.
	items, _, err := svc.List(context.Background(), target.Selector{TypePath: "idea"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v, want the owned and the pooled idea", items)
	}
	if items[0].Path != "drafts/Draft A/ideas/Idea A.md" || items[1].Path != "ideas/Idea B.md" {
		t.Errorf("paths = %q, %q", items[0].Path, items[1].Path)
	}
}

func TestGetDetail(t *testing.T) {
	svc, _ := testService(t)

	owner, err := svc.Get(context.Background(), "drafts/Draft A.md")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if owner.Owner != nil {
		t.Errorf("owner of top-level draft = %+v", owner.Owner)
	}
	if len(owner.Owned) != 1 || owner.Owned[0].OwnedPath != "drafts/Draft A/ideas/Idea A.md" {
		t.Errorf("owned = %+v", owner.Owned)
	}

	owned, err := svc.Get(context.Background(), "drafts/Draft A/ideas/Idea A.md")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if owned.Owner == nil || owned.Owner.OwnerPath != "drafts/Draft A.md" {
		t.Errorf("owner = %+v", owned.Owner)
	}
	if owned.TypePath != "idea" {
		t.Errorf("type path = %q", owned.TypePath)
	}

	if _, err := svc.Get(context.Background(), "objectives/Ghost.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing record: %v", err)
	}
}

func TestBulkEditDryRunWritesNothing(t *testing.T) {
	svc, store := testService(t)
	before, _ := store.Read("objectives/Alpha.md")

	report, err := svc.BulkEdit(context.Background(),
		target.Selector{TypePath: "objective"},
		ChangeSet{Set: map[string]any{"status": "done"}})
	if err != nil {
		t.Fatalf("BulkEdit: %v", err)
	}
	if !report.DryRun {
		t.Error("report should be a dry run")
	}
	if len(report.Changes) != 3 {
		t.Errorf("changes = %d, want 3", len(report.Changes))
	}
	for _, ch := range report.Changes {
		if ch.Op != OpSet || ch.Field != "status" || ch.New != "done" {
			t.Errorf("change = %+v", ch)
		}
	}

	after, _ := store.Read("objectives/Alpha.md")
	if string(before) != string(after) {
		t.Error("dry run modified the store")
	}
}

func TestBulkEditExecute(t *testing.T) {
	svc, _ := testService(t)

	report, err := svc.BulkEdit(context.Background(),
		target.Selector{TypePath: "objective", Execute: true},
		ChangeSet{Set: map[string]any{"status": "done"}})
	if err != nil {
		t.Fatalf("BulkEdit: %v", err)
	}
	if report.DryRun {
		t.Error("executed report marked dry run")
	}
	if len(report.Errors) != 0 {
		t.Fatalf("errors = %+v", report.Errors)
	}
	if len(report.Changes) != 3 {
		t.Errorf("changes = %d, want 3", len(report.Changes))
	}

	detail, err := svc.Get(context.Background(), "objectives/Alpha.md")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.Attrs["status"] != "done" {
		t.Errorf("status = %v after execute", detail.Attrs["status"])
	}
}

func TestBulkEditRenameAndRemove(t *testing.T) {
	svc, _ := testService(t)

	report, err := svc.BulkEdit(context.Background(),
		target.Selector{ID: "Alpha", Execute: true},
		ChangeSet{Rename: map[string]string{"status": "state"}, Remove: []string{"title"}})
	if err != nil {
		t.Fatalf("BulkEdit: %v", err)
	}
	if len(report.Changes) != 2 {
		t.Fatalf("changes = %+v", report.Changes)
	}

	detail, err := svc.Get(context.Background(), "objectives/Alpha.md")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.Attrs["state"] != "open" {
		t.Errorf("state = %v", detail.Attrs["state"])
	}
	if _, ok := detail.Attrs["status"]; ok {
		t.Error("old field name survived rename")
	}
	if _, ok := detail.Attrs["title"]; ok {
		t.Error("removed field survived")
	}
}

func TestBulkEditRenameConflictAbortsBatch(t *testing.T) {
	svc, store := testService(t)
	before, _ := store.Read("objectives/Alpha.md")

	// Every objective has both fields, so the rename target collides.
	_, err := svc.BulkEdit(context.Background(),
		target.Selector{TypePath: "objective", Execute: true},
		ChangeSet{Rename: map[string]string{"title": "status"}})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	after, _ := store.Read("objectives/Alpha.md")
	if string(before) != string(after) {
		t.Error("aborted batch modified the store")
	}
}

func TestBulkEditRejectsEmptyChangeSet(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.BulkEdit(context.Background(), target.Selector{All: true}, ChangeSet{}); err == nil {
		t.Error("expected error for empty change set")
	}
}

func TestBulkEditRequiresSelection(t *testing.T) {
	svc, _ := testService(t)
	_, err := svc.BulkEdit(context.Background(), target.Selector{},
		ChangeSet{Set: map[string]any{"status": "done"}})
	if !target.IsTargetingError(err) {
		t.Errorf("expected targeting error, got %v", err)
	}
}

func TestBulkDeleteDryRun(t *testing.T) {
	svc, store := testService(t)
	report, err := svc.BulkDelete(context.Background(), target.Selector{ID: "Beta"})
	if err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if !report.DryRun || len(report.Changes) != 1 || report.Changes[0].Op != OpDelete {
		t.Errorf("report = %+v", report)
	}
	if !store.Exists("objectives/Beta.md") {
		t.Error("dry run deleted the record")
	}
}

func TestBulkDeleteExecute(t *testing.T) {
	svc, store := testService(t)
	report, err := svc.BulkDelete(context.Background(), target.Selector{ID: "Beta", Execute: true})
	if err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("errors = %+v", report.Errors)
	}
	if store.Exists("objectives/Beta.md") {
		t.Error("record still exists after execute")
	}
}

func TestBulkDeleteRefusesOwnerWithChildren(t *testing.T) {
	svc, store := testService(t)
	report, err := svc.BulkDelete(context.Background(), target.Selector{ID: "Draft A", Execute: true})
	if err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0].Err, "still owns") {
		t.Errorf("errors = %+v", report.Errors)
	}
	if !store.Exists("drafts/Draft A.md") {
		t.Error("owner was deleted despite orphaning its children")
	}
}

func TestBulkDeleteOwnerWithChildrenTogether(t *testing.T) {
	svc, store := testService(t)
	// A glob covering the owner and everything under its folder.
	report, err := svc.BulkDelete(context.Background(),
		target.Selector{PathGlob: "drafts/Draft A**", Execute: true})
	if err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("errors = %+v", report.Errors)
	}
	if store.Exists("drafts/Draft A.md") || store.Exists("drafts/Draft A/ideas/Idea A.md") {
		t.Error("selection should delete owner and children together")
	}
}

func TestCheckFindsFieldProblems(t *testing.T) {
	svc, _ := testService(t)
	report, err := svc.Check(context.Background(), target.Selector{TypePath: "objective"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Checked != 3 {
		t.Errorf("checked = %d", report.Checked)
	}
	var missingTitle, badEnum bool
	for _, p := range report.Problems {
		if p.Path != "objectives/NoTitle.md" {
			t.Errorf("unexpected problem on %s: %s", p.Path, p.Problem)
			continue
		}
		if strings.Contains(p.Problem, `"title"`) {
			missingTitle = true
		}
		if strings.Contains(p.Problem, `"bogus"`) {
			badEnum = true
		}
	}
	if !missingTitle || !badEnum {
		t.Errorf("problems = %+v", report.Problems)
	}
}

func TestCheckFindsOwnershipViolations(t *testing.T) {
	svc, _ := testService(t)
	report, err := svc.Check(context.Background(), target.Selector{ID: "Other"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(report.Problems) != 1 || !strings.Contains(report.Problems[0].Problem, "owned by") {
		t.Errorf("problems = %+v", report.Problems)
	}
}
