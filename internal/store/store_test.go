package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "studio.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewWithDB(db)
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}
	return s
}

func TestAddSupplySupersedes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old, err := s.AddSupply(ctx, SupplyInput{Name: "Titanium White", Category: "paint", Brand: "Winsor"})
	if err != nil {
		t.Fatalf("AddSupply: %v", err)
	}

	// Same name+brand (different case) supersedes the old row.
	repl, err := s.AddSupply(ctx, SupplyInput{Name: "titanium white", Category: "paint", Brand: "winsor", Level: LevelPlenty})
	if err != nil {
		t.Fatalf("AddSupply replacement: %v", err)
	}

	got, err := s.GetSupply(ctx, old.ID)
	if err != nil {
		t.Fatalf("GetSupply: %v", err)
	}
	if got.SupersededBy != repl.ID {
		t.Errorf("old supply SupersededBy = %q, want %q", got.SupersededBy, repl.ID)
	}

	list, err := s.ListSupplies(ctx, "")
	if err != nil {
		t.Fatalf("ListSupplies: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("listing has %d supplies, want 1 (superseded excluded)", len(list))
	}
	if list[0].ID != repl.ID {
		t.Errorf("listing shows %s, want replacement %s", list[0].ID, repl.ID)
	}
}

func TestAddSupplyDifferentBrandDoesNotSupersede(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AddSupply(ctx, SupplyInput{Name: "Titanium White", Category: "paint", Brand: "Winsor"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddSupply(ctx, SupplyInput{Name: "Titanium White", Category: "paint", Brand: "Golden"}); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListSupplies(ctx, "paint")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("got %d supplies, want 2", len(list))
	}
}

func TestSetSupplyLevelAndLowStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.AddSupply(ctx, SupplyInput{Name: "Gesso", Category: "medium"})
	b, _ := s.AddSupply(ctx, SupplyInput{Name: "Charcoal", Category: "drawing"})
	if _, err := s.AddSupply(ctx, SupplyInput{Name: "Canvas", Category: "surface"}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.SetSupplyLevel(ctx, a.ID, LevelLow); err != nil {
		t.Fatalf("SetSupplyLevel: %v", err)
	}
	if _, err := s.SetSupplyLevel(ctx, b.ID, LevelEmpty); err != nil {
		t.Fatalf("SetSupplyLevel: %v", err)
	}

	low, err := s.LowStock(ctx)
	if err != nil {
		t.Fatalf("LowStock: %v", err)
	}
	if len(low) != 2 {
		t.Fatalf("low stock has %d entries, want 2", len(low))
	}
	if low[0].Level != LevelEmpty {
		t.Errorf("empties should sort first, got %s", low[0].Level)
	}

	summary, err := s.SupplySummary(ctx)
	if err != nil {
		t.Fatalf("SupplySummary: %v", err)
	}
	if summary[LevelPlenty] != 1 || summary[LevelLow] != 1 || summary[LevelEmpty] != 1 {
		t.Errorf("summary = %v", summary)
	}
}

func TestSetSupplyLevelNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SetSupplyLevel(context.Background(), "nope", LevelLow)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSearchSupplies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddSupply(ctx, SupplyInput{Name: "Ultramarine Blue", Category: "paint", Brand: "Winsor"})
	s.AddSupply(ctx, SupplyInput{Name: "Round Brush #6", Category: "brushes"})

	got, err := s.SearchSupplies(ctx, "ultra")
	if err != nil {
		t.Fatalf("SearchSupplies: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Ultramarine Blue" {
		t.Errorf("search result = %+v", got)
	}

	got, err = s.SearchSupplies(ctx, "winsor")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("brand search returned %d results, want 1", len(got))
	}
}

func TestProjectStatusForwardOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, ProjectInput{Title: "Sunset triptych", Medium: "oil"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.Status != StatusIdea {
		t.Errorf("new project status = %s, want idea", p.Status)
	}

	p, err = s.SetProjectStatus(ctx, p.ID, StatusCompleted, false)
	if err != nil {
		t.Fatalf("SetProjectStatus: %v", err)
	}
	if p.CompletedAt == nil {
		t.Error("completed_at not stamped on completion")
	}
	first := *p.CompletedAt

	// Backward without reset fails.
	if _, err := s.SetProjectStatus(ctx, p.ID, StatusInProgress, false); !errors.Is(err, ErrStatusBackward) {
		t.Errorf("backward move err = %v, want ErrStatusBackward", err)
	}

	// Backward with reset succeeds and keeps the original completion stamp.
	p, err = s.SetProjectStatus(ctx, p.ID, StatusInProgress, true)
	if err != nil {
		t.Fatalf("reset move: %v", err)
	}
	if p.Status != StatusInProgress {
		t.Errorf("status after reset = %s", p.Status)
	}
	if p.CompletedAt == nil || !p.CompletedAt.Equal(first) {
		t.Errorf("completed_at changed on reset: %v, want %v", p.CompletedAt, first)
	}
}

func TestAddProjectNoteAppends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.CreateProject(ctx, ProjectInput{Title: "Linocut series"})
	p, err := s.AddProjectNote(ctx, p.ID, "carved first block")
	if err != nil {
		t.Fatalf("AddProjectNote: %v", err)
	}
	p, err = s.AddProjectNote(ctx, p.ID, "test print came out muddy")
	if err != nil {
		t.Fatal(err)
	}

	if want := "carved first block"; !strings.Contains(p.Notes, want) {
		t.Errorf("notes missing %q: %q", want, p.Notes)
	}
	if want := "test print came out muddy"; !strings.Contains(p.Notes, want) {
		t.Errorf("notes missing %q: %q", want, p.Notes)
	}
	if !strings.Contains(p.Notes, "\n") {
		t.Error("second note should append on a new line")
	}
}

func TestLinkSupply(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.CreateProject(ctx, ProjectInput{Title: "Mural study"})
	sup, _ := s.AddSupply(ctx, SupplyInput{Name: "Acrylic Red", Category: "paint"})

	if err := s.LinkSupply(ctx, p.ID, sup.ID); err != nil {
		t.Fatalf("LinkSupply: %v", err)
	}
	// Linking again is a no-op.
	if err := s.LinkSupply(ctx, p.ID, sup.ID); err != nil {
		t.Fatalf("second LinkSupply: %v", err)
	}

	linked, err := s.ProjectSupplies(ctx, p.ID)
	if err != nil {
		t.Fatalf("ProjectSupplies: %v", err)
	}
	if len(linked) != 1 || linked[0].ID != sup.ID {
		t.Errorf("linked = %+v", linked)
	}

	if err := s.LinkSupply(ctx, p.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("linking missing supply err = %v, want ErrNotFound", err)
	}
}

func TestPieceCompletedFreeze(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.AddPiece(ctx, PieceInput{Title: "Harbor at dusk", Status: PieceCompleted, ImagePath: "final.jpg"})
	if err != nil {
		t.Fatalf("AddPiece: %v", err)
	}
	if p.CompletedAt == nil {
		t.Error("completed piece missing completed_at")
	}

	wip := PieceWIP
	if _, err := s.UpdatePiece(ctx, p.ID, PieceUpdate{Status: &wip}); !errors.Is(err, ErrPieceFrozen) {
		t.Errorf("status change on completed piece err = %v, want ErrPieceFrozen", err)
	}

	img := "other.jpg"
	if _, err := s.UpdatePiece(ctx, p.ID, PieceUpdate{ImagePath: &img}); !errors.Is(err, ErrPieceFrozen) {
		t.Errorf("image change on completed piece err = %v, want ErrPieceFrozen", err)
	}

	// Title and description remain editable.
	title := "Harbor at Dusk (framed)"
	desc := "sold at the spring fair"
	got, err := s.UpdatePiece(ctx, p.ID, PieceUpdate{Title: &title, Description: &desc})
	if err != nil {
		t.Fatalf("title/description update: %v", err)
	}
	if got.Title != title || got.Description != desc {
		t.Errorf("piece = %+v", got)
	}
}

func TestAddProgressImagePromotesSketch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.AddPiece(ctx, PieceInput{Title: "Figure study"})
	if p.Status != PieceSketch {
		t.Fatalf("new piece status = %s, want sketch", p.Status)
	}

	p, err := s.AddProgressImage(ctx, p.ID, "uploads/figure-01.jpg")
	if err != nil {
		t.Fatalf("AddProgressImage: %v", err)
	}
	if p.Status != PieceWIP {
		t.Errorf("status after progress image = %s, want wip", p.Status)
	}
	if p.ImagePath != "uploads/figure-01.jpg" {
		t.Errorf("image path = %q", p.ImagePath)
	}

	// wip stays wip on further images.
	p, err = s.AddProgressImage(ctx, p.ID, "uploads/figure-02.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != PieceWIP {
		t.Errorf("status = %s, want wip", p.Status)
	}
}

func TestPortfolioStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddPiece(ctx, PieceInput{Title: "a"})
	s.AddPiece(ctx, PieceInput{Title: "b", Status: PieceWIP, ImagePath: "b.jpg"})
	s.AddPiece(ctx, PieceInput{Title: "c", Status: PieceCompleted, ImagePath: "c.jpg"})

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 || stats.Sketches != 1 || stats.InProgress != 1 || stats.Completed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.WithImages != 2 {
		t.Errorf("WithImages = %d, want 2", stats.WithImages)
	}
}

func TestProjectSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateProject(ctx, ProjectInput{Title: "Zine"})
	s.CreateProject(ctx, ProjectInput{Title: "Mural", Status: StatusInProgress})
	s.CreateProject(ctx, ProjectInput{Title: "Prints", Status: StatusInProgress})

	summary, err := s.ProjectSummary(ctx)
	if err != nil {
		t.Fatalf("ProjectSummary: %v", err)
	}
	if summary[StatusIdea] != 1 || summary[StatusInProgress] != 2 || summary[StatusCompleted] != 0 {
		t.Errorf("summary = %v", summary)
	}
}

func TestCompleteProjectFilesPiece(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, ProjectInput{Title: "Tide study", Status: StatusInProgress})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	project, piece, err := s.CompleteProject(ctx, p.ID, PieceInput{Description: "Final gouache"})
	if err != nil {
		t.Fatalf("CompleteProject: %v", err)
	}
	if project.Status != StatusCompleted || project.CompletedAt == nil {
		t.Errorf("project = %+v, want completed with completed_at", project)
	}
	if piece.Title != "Tide study" {
		t.Errorf("piece title = %q, want project title as default", piece.Title)
	}
	if piece.Status != PieceCompleted || piece.ProjectID != p.ID {
		t.Errorf("piece = %+v", piece)
	}
}

func TestCompleteProjectUnknownIDLeavesPortfolioUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.CompleteProject(ctx, "no-such-project", PieceInput{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("portfolio total = %d, want 0 after failed completion", stats.Total)
	}
}

func TestCompleteProjectKeepsFirstCompletionTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.CreateProject(ctx, ProjectInput{Title: "Series"})
	first, _, err := s.CompleteProject(ctx, p.ID, PieceInput{Title: "Panel one"})
	if err != nil {
		t.Fatalf("CompleteProject: %v", err)
	}
	second, _, err := s.CompleteProject(ctx, p.ID, PieceInput{Title: "Panel two"})
	if err != nil {
		t.Fatalf("second CompleteProject: %v", err)
	}
	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Errorf("completed_at moved: %v -> %v", first.CompletedAt, second.CompletedAt)
	}
}
