package regionendpoint

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // register side-effects
)

// Assignment is the persisted worker/epoch bookkeeping for one region,
// exported for operator-facing tooling such as the regioncdc CLI's region
// table.
type Assignment struct {
	RegionID uint64
	Worker   int
	ConfVer  uint64
	Version  uint64
}

// Registry persists region-to-worker assignments and the last observed
// epoch across process restarts. It is explicitly NOT an event durability
// or replay log, and worker placement is not read from it (WorkerIndexFor's
// hash decides placement): losing this database loses only the operator-facing
// record of assignments, since the live resolver/delegate state it describes
// is always rebuilt from on_region_ready.
type Registry struct {
	db *sql.DB
}

// OpenRegistry opens (creating if absent) the sqlite-backed registry at path.
func OpenRegistry(path string) (*Registry, error) {
	var db, err = sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("regionendpoint: opening registry db: %w", err)
	}
	if strings.HasPrefix(path, ":memory:") {
		// A pooled :memory: database is a distinct database per connection;
		// pin to one connection so the schema and rows are actually shared.
		db.SetMaxOpenConns(1)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS region_assignment (
	region_id    INTEGER PRIMARY KEY,
	worker_index INTEGER NOT NULL,
	conf_ver     INTEGER NOT NULL,
	version      INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("regionendpoint: creating registry schema: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close releases the underlying database handle.
func (r *Registry) Close() error { return r.db.Close() }

// Put persists (or updates) a region's worker assignment and last known
// epoch.
func (r *Registry) Put(regionID uint64, workerIndex int, confVer, version uint64) error {
	var _, err = r.db.Exec(`
INSERT INTO region_assignment (region_id, worker_index, conf_ver, version)
VALUES (?, ?, ?, ?)
ON CONFLICT(region_id) DO UPDATE SET worker_index=excluded.worker_index,
	conf_ver=excluded.conf_ver, version=excluded.version`,
		int64(regionID), workerIndex, int64(confVer), int64(version))
	if err != nil {
		return fmt.Errorf("regionendpoint: persisting region assignment: %w", err)
	}
	return nil
}

// Get returns the persisted assignment for regionID, if any.
func (r *Registry) Get(regionID uint64) (Assignment, bool, error) {
	var a = Assignment{RegionID: regionID}
	var row = r.db.QueryRow(`SELECT worker_index, conf_ver, version FROM region_assignment WHERE region_id = ?`, int64(regionID))

	switch err := row.Scan(&a.Worker, &a.ConfVer, &a.Version); err {
	case nil:
		return a, true, nil
	case sql.ErrNoRows:
		return Assignment{}, false, nil
	default:
		return Assignment{}, false, fmt.Errorf("regionendpoint: querying region assignment: %w", err)
	}
}

// List returns every persisted region assignment, ordered by region id, for
// operator-facing tooling.
func (r *Registry) List() ([]Assignment, error) {
	var rows, err = r.db.Query(`SELECT region_id, worker_index, conf_ver, version FROM region_assignment ORDER BY region_id`)
	if err != nil {
		return nil, fmt.Errorf("regionendpoint: listing region assignments: %w", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.RegionID, &a.Worker, &a.ConfVer, &a.Version); err != nil {
			return nil, fmt.Errorf("regionendpoint: scanning region assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete removes a region's persisted assignment, called once its delegate
// is dropped, either after reaching the Failed phase or after its last active
// downstream unsubscribes.
func (r *Registry) Delete(regionID uint64) error {
	var _, err = r.db.Exec(`DELETE FROM region_assignment WHERE region_id = ?`, int64(regionID))
	if err != nil {
		return fmt.Errorf("regionendpoint: deleting region assignment: %w", err)
	}
	return nil
}
