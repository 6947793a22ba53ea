// Package sqlite provides SQLite database writing for confidence estimates
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/crema/pkg/confidence"
	"github.com/ChrisMcGann/crema/pkg/core"
)

const (
	// Date format for Runs and HeaderTable (ISO 8601)
	dateFormat = time.RFC3339
	// Schema version written to HeaderTable
	schemaVersion = 1
)

// Writer handles writing confidence estimates to SQLite database files.
// Every WriteRun call adds one row to Runs and its estimates to
// ConfidenceEstimates.
type Writer struct {
	db           *sql.DB
	outputPath   string
	runStmt      *sql.Stmt
	estimateStmt *sql.Stmt
	runs         int
	closed       bool
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS Runs (
		RunId TEXT PRIMARY KEY,
		CreationDate TEXT,
		Method TEXT,
		ScoreColumn TEXT,
		Descending BOOL,
		Pi0 DOUBLE,
		Threshold TEXT,
		Inputs TEXT
	);

	CREATE TABLE IF NOT EXISTS ConfidenceEstimates (
		EstimateId INTEGER PRIMARY KEY AUTOINCREMENT,
		RunId TEXT REFERENCES Runs(RunId),
		Level TEXT,
		Target BOOL,
		Spectrum TEXT,
		Peptide TEXT,
		Protein TEXT,
		Score DOUBLE,
		QValue DOUBLE,
		Accept BOOL
	);

	CREATE INDEX IF NOT EXISTS idx_estimates_run_level ON ConfidenceEstimates (RunId, Level);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		LastModifiedDate TEXT,
		Description TEXT
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.runStmt, err = w.db.Prepare(`
		INSERT INTO Runs (
			RunId, CreationDate, Method, ScoreColumn, Descending, Pi0, Threshold, Inputs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare run statement: %w", err)
	}

	w.estimateStmt, err = w.db.Prepare(`
		INSERT INTO ConfidenceEstimates (
			RunId, Level, Target, Spectrum, Peptide, Protein, Score, QValue, Accept
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare estimate statement: %w", err)
	}

	return nil
}

// WriteRun writes the estimates of one confidence assignment and returns the
// generated run id.
func (w *Writer) WriteRun(conf *confidence.Confidence, inputs []string) (string, error) {
	if w.closed {
		return "", fmt.Errorf("write to closed database %s", w.outputPath)
	}

	runID := uuid.NewString()

	tx, err := w.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Pi0 is only estimated by mix-max
	var pi0 interface{} = nil
	if conf.Method == confidence.MixMax {
		pi0 = conf.Pi0
	}

	_, err = tx.Stmt(w.runStmt).Exec(
		runID,                               // RunId
		time.Now().UTC().Format(dateFormat), // CreationDate
		string(conf.Method),                 // Method
		conf.ScoreColumn,                    // ScoreColumn
		conf.Desc,                           // Descending
		pi0,                                 // Pi0
		conf.Threshold.String(),             // Threshold
		strings.Join(inputs, ","),           // Inputs
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt := tx.Stmt(w.estimateStmt)
	for _, level := range conf.Levels {
		for _, table := range []*core.Table{conf.Table(level), conf.DecoyTable(level)} {
			if table == nil {
				continue
			}
			for _, row := range table.Rows {
				// Accept is NULL when only q-values are reported
				var accept interface{} = nil
				if table.Layout.Accept {
					accept = row.Accept
				}
				_, err := stmt.Exec(
					runID,
					string(level),
					row.Target,
					strings.Join(row.Spectrum, ","),
					row.Peptide,
					row.Protein,
					row.Score,
					row.QValue,
					accept,
				)
				if err != nil {
					return "", fmt.Errorf("failed to insert %s estimate: %w", level, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	w.runs++
	return runID, nil
}

// Finalize writes the header table and closes the database. Calling it
// again is a no-op.
func (w *Writer) Finalize() error {
	if w.closed {
		return nil
	}
	w.closed = true

	now := time.Now().UTC().Format(dateFormat)
	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, Description)
		VALUES (?, ?, ?, ?)
	`, schemaVersion, now, now, fmt.Sprintf("crema confidence estimates (%d runs)", w.runs))
	if err != nil {
		w.db.Close()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	// Close prepared statements
	if w.runStmt != nil {
		w.runStmt.Close()
	}
	if w.estimateStmt != nil {
		w.estimateStmt.Close()
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}

// Summary counts the estimates of one level of one run.
type Summary struct {
	RunID       string
	CreatedAt   string
	Method      string
	ScoreColumn string
	Threshold   string
	Level       string
	Targets     int
	Decoys      int
	Accepted    int // Targets with Accept set; 0 when only q-values were reported
}

// ReadSummary reads per-level counts of every run in a database written by
// Writer, in creation order.
func ReadSummary(path string) ([]Summary, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT r.RunId, r.CreationDate, r.Method, r.ScoreColumn, r.Threshold, e.Level,
			SUM(CASE WHEN e.Target THEN 1 ELSE 0 END),
			SUM(CASE WHEN e.Target THEN 0 ELSE 1 END),
			SUM(CASE WHEN e.Target AND e.Accept THEN 1 ELSE 0 END)
		FROM Runs r
		JOIN ConfidenceEstimates e ON e.RunId = r.RunId
		GROUP BY r.RunId, e.Level
		ORDER BY MIN(e.EstimateId)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.RunID, &s.CreatedAt, &s.Method, &s.ScoreColumn, &s.Threshold,
			&s.Level, &s.Targets, &s.Decoys, &s.Accepted); err != nil {
			return nil, fmt.Errorf("failed to read summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}
	return out, nil
}
