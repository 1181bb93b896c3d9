package scripts

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSaveGetReadDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	meta := Meta{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		RecordCount: 2,
		SizeBytes:   42,
	}
	script := "Set-Device -Id \"42\"\nGet-DeviceList\n"

	if err := store.Save(meta, script); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(meta.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.RecordCount != 2 {
		t.Fatalf("Get() RecordCount = %d; want 2", got.RecordCount)
	}

	text, err := store.ReadScript(meta.ID)
	if err != nil {
		t.Fatalf("ReadScript() error = %v", err)
	}
	if text != script {
		t.Fatalf("ReadScript() = %q; want %q", text, script)
	}

	if err := store.Delete(meta.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(meta.ID); err == nil {
		t.Fatal("Get() after Delete() = nil error; want not found")
	}
}

func TestListSortsNewestFirst(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	older := Meta{ID: uuid.NewString(), CreatedAt: time.Now().Add(-time.Hour)}
	newer := Meta{ID: uuid.NewString(), CreatedAt: time.Now()}
	for _, m := range []Meta{older, newer} {
		if err := store.Save(m, "# empty"); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(metas) != 2 || metas[0].ID != newer.ID {
		t.Fatalf("List() order = %v; want newest first", metas)
	}
}

func TestInvalidIDRejected(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if err := store.Save(Meta{ID: "../escape"}, "x"); err == nil {
		t.Fatal("Save() with path-traversal id = nil error; want rejection")
	}
	if _, err := store.Get("not-a-uuid"); err == nil || !strings.Contains(err.Error(), "invalid script id") {
		t.Fatalf("Get() error = %v; want invalid id", err)
	}
}
