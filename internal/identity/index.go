package identity

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// Index is a disposable SQLite-backed secondary index over entity ids, used
// to make prefix lookups fast on large identity directories without
// replacing the YAML files as the source of truth (spec.md §4.3 mandates
// YAML as ground truth; this index can be deleted and rebuilt from it at
// any time).
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) the index database at path. Pass ":memory:"
// for a process-local index that is rebuilt from the YAML directories on
// every startup.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "open identity index %s", path)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS entity_ids (
	kind TEXT NOT NULL,
	id   TEXT NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS entity_ids_kind_id ON entity_ids(kind, id);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "init identity index schema")
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (ix *Index) Close() error { return ix.db.Close() }

// Rebuild truncates the index and repopulates it from the YAML directories.
// Call this at startup, or whenever the index is suspected stale — it is
// never authoritative, so rebuilding is always safe.
func (ix *Index) Rebuild(dirs Dirs) error {
	roles, err := LoadAllRoles(dirs)
	if err != nil {
		return err
	}
	objectives, err := LoadAllObjectives(dirs)
	if err != nil {
		return err
	}
	agents, err := LoadAllAgents(dirs)
	if err != nil {
		return err
	}

	tx, err := ix.db.Begin()
	if err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "begin index rebuild")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM entity_ids`); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "clear index")
	}
	insert := func(kind, id string) error {
		_, err := tx.Exec(`INSERT OR IGNORE INTO entity_ids(kind, id) VALUES (?, ?)`, kind, id)
		return err
	}
	for _, r := range roles {
		if err := insert(string(KindRole), r.ID); err != nil {
			return wgerr.Wrap(wgerr.IOFailure, err, "index role %s", r.ID)
		}
	}
	for _, o := range objectives {
		if err := insert(string(KindObjective), o.ID); err != nil {
			return wgerr.Wrap(wgerr.IOFailure, err, "index objective %s", o.ID)
		}
	}
	for _, a := range agents {
		if err := insert(string(KindAgent), a.ID); err != nil {
			return wgerr.Wrap(wgerr.IOFailure, err, "index agent %s", a.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "commit index rebuild")
	}
	return nil
}

// ResolvePrefix looks up the full id for a kind+prefix query via the index.
// Same NotFound/Ambiguous semantics as the direct directory scan in store.go.
// An index that was opened but never rebuilt is empty and answers NotFound.
func (ix *Index) ResolvePrefix(kind Kind, query string) (string, error) {
	rows, err := ix.db.Query(
		`SELECT id FROM entity_ids WHERE kind = ? AND id LIKE ? ORDER BY id`,
		string(kind), query+"%",
	)
	if err != nil {
		return "", wgerr.Wrap(wgerr.IOFailure, err, "query index")
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", wgerr.Wrap(wgerr.IOFailure, err, "scan index row")
		}
		matches = append(matches, id)
	}

	switch len(matches) {
	case 0:
		return "", wgerr.New(wgerr.NotFound, "no %s matching prefix %q", kind, query)
	case 1:
		return matches[0], nil
	default:
		return "", wgerr.New(wgerr.Ambiguous, "prefix %q matches %d %ss", query, len(matches), kind).WithData(matches)
	}
}
