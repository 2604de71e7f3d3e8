package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

func TestIndexRebuildAndResolvePrefix(t *testing.T) {
	dirs := setupDirs(t)
	role := Role{ID: "abcdef1234567890", Name: "R"}
	if _, err := SaveRole(dirs, role); err != nil {
		t.Fatalf("SaveRole failed: %v", err)
	}

	ix, err := OpenIndex(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}
	defer ix.Close()

	if err := ix.Rebuild(dirs); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	id, err := ix.ResolvePrefix(KindRole, "abcdef")
	if err != nil {
		t.Fatalf("ResolvePrefix failed: %v", err)
	}
	if id != role.ID {
		t.Fatalf("id = %q, want %q", id, role.ID)
	}

	if _, err := ix.ResolvePrefix(KindRole, "zzzzzz"); !wgerr.Is(err, wgerr.NotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestIndexAmbiguousPrefix(t *testing.T) {
	dirs := setupDirs(t)
	if _, err := SaveRole(dirs, Role{ID: "aaaa1111"}); err != nil {
		t.Fatalf("SaveRole failed: %v", err)
	}
	if _, err := SaveRole(dirs, Role{ID: "aaaa2222"}); err != nil {
		t.Fatalf("SaveRole failed: %v", err)
	}

	ix, err := OpenIndex(":memory:")
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}
	defer ix.Close()

	if err := ix.Rebuild(dirs); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	if _, err := ix.ResolvePrefix(KindRole, "aaaa"); !wgerr.Is(err, wgerr.Ambiguous) {
		t.Fatalf("err = %v, want Ambiguous", err)
	}
}

func TestFindRoleByPrefixUsesIndexWhenPresent(t *testing.T) {
	dirs := setupDirs(t)
	role := Role{ID: "deadbeef00", Name: "R"}
	if _, err := SaveRole(dirs, role); err != nil {
		t.Fatalf("SaveRole failed: %v", err)
	}

	ix, err := OpenIndex(":memory:")
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}
	defer ix.Close()
	if err := ix.Rebuild(dirs); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	dirs.Index = ix

	// Delete the YAML file so a successful lookup can only have come from
	// the index, not a directory-scan fallback.
	if err := os.Remove(filepath.Join(dirs.Roles, role.ID+".yaml")); err != nil {
		t.Fatalf("remove role file: %v", err)
	}

	id, err := resolvePrefix(dirs, KindRole, dirs.Roles, "deadbe")
	if err != nil {
		t.Fatalf("resolvePrefix failed: %v", err)
	}
	if id != role.ID {
		t.Fatalf("id = %q, want %q", id, role.ID)
	}
}

func TestFindRoleByPrefixFallsBackWithoutIndex(t *testing.T) {
	dirs := setupDirs(t)
	role := Role{ID: "cafef00d00", Name: "R"}
	if _, err := SaveRole(dirs, role); err != nil {
		t.Fatalf("SaveRole failed: %v", err)
	}

	found, err := FindRoleByPrefix(dirs, "cafef0")
	if err != nil {
		t.Fatalf("FindRoleByPrefix failed: %v", err)
	}
	if found.ID != role.ID {
		t.Fatalf("found.ID = %q, want %q", found.ID, role.ID)
	}
}
