// Package drafts persists unflushed set edits so they survive a restart.
package drafts

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MaciejGL/shaper/internal/models"
	"github.com/MaciejGL/shaper/internal/session"
	_ "modernc.org/sqlite"
)

// Journal stores drafts for one plan in a SQLite file shared by all plans.
type Journal struct {
	db     *sql.DB
	planID string
}

// Compile-time check: Journal satisfies session.DraftJournal.
var _ session.DraftJournal = (*Journal)(nil)

// OpenJournal opens (or creates) the journal database at dir/drafts.db and
// scopes it to planID.
func OpenJournal(dir, planID string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating drafts dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "drafts.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening drafts db: %w", err)
	}
	// Timers write from their own goroutines; one connection keeps SQLite
	// from reporting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS drafts (
		plan_id    TEXT NOT NULL,
		set_id     TEXT NOT NULL,
		reps       TEXT NOT NULL DEFAULT '',
		weight     TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (plan_id, set_id)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating drafts table: %w", err)
	}

	return &Journal{db: db, planID: planID}, nil
}

// Save records the latest draft for a set.
func (j *Journal) Save(setID string, d models.Draft) error {
	_, err := j.db.Exec(
		`INSERT OR REPLACE INTO drafts (plan_id, set_id, reps, weight, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		j.planID, setID, d.Reps, d.Weight,
	)
	if err != nil {
		return fmt.Errorf("saving draft %s: %w", setID, err)
	}
	return nil
}

// Delete forgets a set's draft.
func (j *Journal) Delete(setID string) error {
	_, err := j.db.Exec(`DELETE FROM drafts WHERE plan_id = ? AND set_id = ?`, j.planID, setID)
	if err != nil {
		return fmt.Errorf("deleting draft %s: %w", setID, err)
	}
	return nil
}

// Load returns every draft of the plan.
func (j *Journal) Load() (map[string]models.Draft, error) {
	rows, err := j.db.Query(`SELECT set_id, reps, weight FROM drafts WHERE plan_id = ?`, j.planID)
	if err != nil {
		return nil, fmt.Errorf("querying drafts: %w", err)
	}
	defer rows.Close()

	result := make(map[string]models.Draft)
	for rows.Next() {
		var (
			setID string
			d     models.Draft
		)
		if err := rows.Scan(&setID, &d.Reps, &d.Weight); err != nil {
			return nil, fmt.Errorf("scanning draft: %w", err)
		}
		result[setID] = d
	}
	return result, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
