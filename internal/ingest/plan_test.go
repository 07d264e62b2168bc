package ingest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atelier-ai/atelier/internal/store"
	_ "modernc.org/sqlite"
)

const samplePlan = `# Tidal Pools Triptych

Three square panels of the same pool at different tides.

- Medium: gouache
- Status: in_progress

## Materials

- Ultramarine
- Cold press pad
- Masking fluid

## Approach

Block in the darks first, then glaze.
`

func TestParsePlan(t *testing.T) {
	plan, err := ParsePlan([]byte(samplePlan))
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if plan.Title != "Tidal Pools Triptych" {
		t.Errorf("title = %q", plan.Title)
	}
	if plan.Medium != "gouache" {
		t.Errorf("medium = %q", plan.Medium)
	}
	if plan.Status != store.StatusInProgress {
		t.Errorf("status = %q", plan.Status)
	}
	want := []string{"Ultramarine", "Cold press pad", "Masking fluid"}
	if len(plan.Materials) != len(want) {
		t.Fatalf("materials = %v", plan.Materials)
	}
	for i, m := range want {
		if plan.Materials[i] != m {
			t.Errorf("material %d = %q, want %q", i, plan.Materials[i], m)
		}
	}
	if !strings.Contains(plan.Notes, "different tides") {
		t.Errorf("notes = %q", plan.Notes)
	}
	if !strings.Contains(plan.Notes, "glaze") {
		t.Errorf("notes missing later section: %q", plan.Notes)
	}
}

func TestParsePlanNoTitle(t *testing.T) {
	if _, err := ParsePlan([]byte("just some text\n")); err == nil {
		t.Fatal("want error for plan without a title heading")
	}
}

func TestParsePlanBadStatusFallsToNotes(t *testing.T) {
	plan, err := ParsePlan([]byte("# P\n\n- Status: someday\n"))
	if err != nil {
		t.Fatal(err)
	}
	if plan.Status != "" {
		t.Errorf("status = %q, want empty", plan.Status)
	}
	if !strings.Contains(plan.Notes, "someday") {
		t.Errorf("bad status line should land in notes: %q", plan.Notes)
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "studio.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	st, err := store.NewWithDB(db)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestImportLinksKnownMaterials(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	blue, err := st.AddSupply(ctx, store.SupplyInput{Name: "Ultramarine", Category: "paint"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddSupply(ctx, store.SupplyInput{Name: "Cold press pad", Category: "paper"}); err != nil {
		t.Fatal(err)
	}

	imp := NewImporter(st, nil, nil)
	res, err := imp.Import(ctx, []byte(samplePlan))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if res.Project.Title != "Tidal Pools Triptych" || res.Project.Status != store.StatusInProgress {
		t.Errorf("project = %+v", res.Project)
	}
	if len(res.Linked) != 2 {
		t.Errorf("linked = %+v, want 2", res.Linked)
	}
	if len(res.Missing) != 1 || res.Missing[0] != "Masking fluid" {
		t.Errorf("missing = %v", res.Missing)
	}

	linked, err := st.ProjectSupplies(ctx, res.Project.ID)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, s := range linked {
		if s.ID == blue.ID {
			found = true
		}
	}
	if !found {
		t.Error("ultramarine not linked to project")
	}

	// Unmatched materials end up as a project note.
	p, _ := st.GetProject(ctx, res.Project.ID)
	if !strings.Contains(p.Notes, "Masking fluid") {
		t.Errorf("project notes = %q, want missing material noted", p.Notes)
	}
}

func TestImportFile(t *testing.T) {
	st := newTestStore(t)
	path := filepath.Join(t.TempDir(), "plan.md")
	if err := os.WriteFile(path, []byte(samplePlan), 0o644); err != nil {
		t.Fatal(err)
	}

	imp := NewImporter(st, nil, nil)
	res, err := imp.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Project.Medium != "gouache" {
		t.Errorf("medium = %q", res.Project.Medium)
	}
}
