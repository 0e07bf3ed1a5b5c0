// Package store persists the extracted project graph (languages, folders,
// files, symbols, call edges, and per-run provenance) to a local SQLite
// database, following the table names and dedup strategy of the pipeline
// this project documents: Language, Folder, File, Symbol,
// SymbolRelationship, ProjectData, plus the next_to_document view that
// surfaces the undocumented-leaf ordering.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"docweave/internal/model"
)

// Store wraps a *sql.DB with the schema this package owns.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) the database file at dbPath, applies pragmas,
// and runs any pending migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("store: create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dbPath, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA synchronous=NORMAL;",
	} {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: apply pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Exists reports whether a database already exists at dbPath, used by the
// CLI to prompt "Use already existing database or erase it?" before a run.
func Exists(dbPath string) bool {
	_, err := os.Stat(dbPath)
	return err == nil
}

// Erase removes the database file (and its WAL/SHM siblings) at dbPath.
func Erase(dbPath string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: erase %s%s: %w", dbPath, suffix, err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);
`

var migrations = []func(*sql.Tx) error{
	migrateV0,
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("store: create schema_version: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), -1) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("store: read schema_version: %w", err)
	}

	for version := current + 1; version < len(migrations); version++ {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("store: begin migration %d: %w", version, err)
		}
		if err := migrations[version](tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: apply migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit migration %d: %w", version, err)
		}
	}
	return nil
}

func migrateV0(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS Language (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);`,
		`CREATE TABLE IF NOT EXISTS Folder (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			rel_path TEXT NOT NULL UNIQUE,
			parent_id INTEGER REFERENCES Folder(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS File (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			folder_id INTEGER REFERENCES Folder(id) ON DELETE CASCADE,
			rel_path TEXT NOT NULL UNIQUE,
			language_id INTEGER REFERENCES Language(id),
			documented INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS Symbol (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_id INTEGER NOT NULL REFERENCES File(id) ON DELETE CASCADE,
			parent_id INTEGER REFERENCES Symbol(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			kind INTEGER NOT NULL,
			range_start_line INTEGER NOT NULL,
			range_start_char INTEGER NOT NULL,
			range_end_line INTEGER NOT NULL,
			range_end_char INTEGER NOT NULL,
			selection_start_line INTEGER NOT NULL,
			selection_start_char INTEGER NOT NULL,
			selection_end_line INTEGER NOT NULL,
			selection_end_char INTEGER NOT NULL,
			docstring TEXT DEFAULT '',
			summary TEXT DEFAULT '',
			documentation TEXT DEFAULT '',
			documented INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_symbol_file ON Symbol(file_id);`,
		`CREATE TABLE IF NOT EXISTS SymbolRelationship (
			caller_id INTEGER NOT NULL REFERENCES Symbol(id) ON DELETE CASCADE,
			callee_id INTEGER NOT NULL REFERENCES Symbol(id) ON DELETE CASCADE,
			PRIMARY KEY (caller_id, callee_id),
			CHECK (caller_id <> callee_id)
		);`,
		`CREATE TABLE IF NOT EXISTS ProjectData (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT DEFAULT '',
			name TEXT NOT NULL,
			root_path TEXT NOT NULL,
			commit_hash TEXT DEFAULT '',
			remote_url TEXT DEFAULT '',
			scanned_at TEXT NOT NULL,
			tool_version TEXT DEFAULT ''
		);`,
		// next_to_document surfaces the undocumented symbol with the
		// fewest outgoing calls (leaves first): outgoing_calls counts
		// distinct callees, including callees that are themselves still
		// undocumented, so a true leaf (zero callees) always sorts first.
		`CREATE VIEW IF NOT EXISTS next_to_document AS
			SELECT s.id, s.name, s.file_id,
				(SELECT COUNT(DISTINCT r.callee_id) FROM SymbolRelationship r WHERE r.caller_id = s.id) AS outgoing_calls
			FROM Symbol s
			WHERE s.documented = 0
			ORDER BY outgoing_calls ASC, s.file_id ASC, s.id ASC;`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Persist writes the whole project tree and a ProjectData row in a single
// transaction: exactly one writer at the end of a run, per the
// orchestrator's concurrency model.
func (s *Store) Persist(ctx context.Context, root *model.Folder, edges []model.CallEdge, project model.ProjectData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin persist: %w", err)
	}
	defer tx.Rollback()

	w := &writer{tx: tx, languageIDs: map[model.LanguageTag]int64{}, folderIDs: map[string]int64{}, fileIDs: map[string]int64{}}

	if err := w.writeFolder(root, nil); err != nil {
		return err
	}
	if err := w.writeEdges(edges); err != nil {
		return err
	}
	if err := w.writeProjectData(project); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit persist: %w", err)
	}
	return nil
}

type writer struct {
	tx          *sql.Tx
	languageIDs map[model.LanguageTag]int64
	folderIDs   map[string]int64
	fileIDs     map[string]int64
	symbolIDs   map[int64]int64 // extractor-local symbol ID -> persisted row ID
}

func (w *writer) languageID(tag model.LanguageTag) (int64, error) {
	if tag == "" {
		tag = "unknown"
	}
	if id, ok := w.languageIDs[tag]; ok {
		return id, nil
	}
	res, err := w.tx.Exec(`INSERT INTO Language (name) VALUES (?) ON CONFLICT(name) DO UPDATE SET name=excluded.name`, string(tag))
	if err != nil {
		return 0, fmt.Errorf("store: insert language %s: %w", tag, err)
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		row := w.tx.QueryRow(`SELECT id FROM Language WHERE name = ?`, string(tag))
		if scanErr := row.Scan(&id); scanErr != nil {
			return 0, fmt.Errorf("store: resolve language id %s: %w", tag, scanErr)
		}
	}
	w.languageIDs[tag] = id
	return id, nil
}

func (w *writer) writeFolder(f *model.Folder, parentID *int64) error {
	res, err := w.tx.Exec(`INSERT INTO Folder (name, rel_path, parent_id) VALUES (?, ?, ?)
		ON CONFLICT(rel_path) DO UPDATE SET name=excluded.name`, f.Name, f.RelPath, parentID)
	if err != nil {
		return fmt.Errorf("store: insert folder %s: %w", f.RelPath, err)
	}
	folderID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	w.folderIDs[f.RelPath] = folderID

	for _, file := range f.Files {
		if err := w.writeFile(file, folderID); err != nil {
			return err
		}
	}
	for _, sub := range f.Subfolders {
		if err := w.writeFolder(sub, &folderID); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) writeFile(file *model.FileRecord, folderID int64) error {
	langID, err := w.languageID(file.Language)
	if err != nil {
		return err
	}
	documented := 0
	if file.Documented {
		documented = 1
	}
	res, err := w.tx.Exec(`INSERT INTO File (folder_id, rel_path, language_id, documented) VALUES (?, ?, ?, ?)
		ON CONFLICT(rel_path) DO UPDATE SET folder_id=excluded.folder_id, language_id=excluded.language_id, documented=excluded.documented`,
		folderID, file.RelPath, langID, documented)
	if err != nil {
		return fmt.Errorf("store: insert file %s: %w", file.RelPath, err)
	}
	fileID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	w.fileIDs[file.RelPath] = fileID

	if w.symbolIDs == nil {
		w.symbolIDs = map[int64]int64{}
	}
	var writeSymbols func(syms []*model.Symbol, parentID *int64) error
	writeSymbols = func(syms []*model.Symbol, parentID *int64) error {
		for _, sym := range syms {
			rowID, err := w.writeSymbol(sym, fileID, parentID)
			if err != nil {
				return err
			}
			w.symbolIDs[sym.ID] = rowID
			if err := writeSymbols(sym.Children, &rowID); err != nil {
				return err
			}
		}
		return nil
	}
	return writeSymbols(file.Symbols, nil)
}

func (w *writer) writeSymbol(sym *model.Symbol, fileID int64, parentID *int64) (int64, error) {
	documented := 0
	if sym.Documented {
		documented = 1
	}
	// summary and documentation stay NULL until the LLM stage fills them.
	var summary, documentation any
	if sym.Summary != "" {
		summary = sym.Summary
	}
	if len(sym.Documentation) > 0 {
		documentation = string(sym.Documentation)
	}
	res, err := w.tx.Exec(`INSERT INTO Symbol (
		file_id, parent_id, name, kind,
		range_start_line, range_start_char, range_end_line, range_end_char,
		selection_start_line, selection_start_char, selection_end_line, selection_end_char,
		docstring, summary, documentation, documented
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fileID, parentID, sym.Name, int(sym.Kind),
		sym.Range.Start.Line, sym.Range.Start.Character, sym.Range.End.Line, sym.Range.End.Character,
		sym.SelectionRange.Start.Line, sym.SelectionRange.Start.Character, sym.SelectionRange.End.Line, sym.SelectionRange.End.Character,
		sym.Docstring, summary, documentation, documented,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert symbol %s: %w", sym.Name, err)
	}
	return res.LastInsertId()
}

func (w *writer) writeEdges(edges []model.CallEdge) error {
	for _, e := range edges {
		if e.CallerID == e.CalleeID {
			continue
		}
		callerRow, ok1 := w.symbolIDs[e.CallerID]
		calleeRow, ok2 := w.symbolIDs[e.CalleeID]
		if !ok1 || !ok2 {
			continue
		}
		if _, err := w.tx.Exec(`INSERT OR IGNORE INTO SymbolRelationship (caller_id, callee_id) VALUES (?, ?)`, callerRow, calleeRow); err != nil {
			return fmt.Errorf("store: insert call edge: %w", err)
		}
	}
	return nil
}

func (w *writer) writeProjectData(p model.ProjectData) error {
	_, err := w.tx.Exec(`INSERT INTO ProjectData (run_id, name, root_path, commit_hash, remote_url, scanned_at, tool_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, p.RunID, p.Name, p.RootPath, p.CommitHash, p.RemoteURL, p.ScannedAtRFC, p.ToolVersion)
	if err != nil {
		return fmt.Errorf("store: insert project data: %w", err)
	}
	return nil
}
