package symbols

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrSymbolNotFound indicates the requested symbol isn't in the database.
var ErrSymbolNotFound = errors.New("symbol not found")

// Store keeps symbol tables in a SQLite database so several generator runs
// (one per package) can feed one registration-table build.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent generator runs
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS symbols (
		name TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		decl TEXT NOT NULL,
		package TEXT NOT NULL,
		params JSON NOT NULL,
		result TEXT NOT NULL,
		position TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Replace stores every symbol of t, replacing all earlier symbols of the
// packages t covers.
func (s *Store) Replace(t *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cleared := make(map[string]bool)
	for _, sym := range t.Symbols {
		if !cleared[sym.Package] {
			if _, err := tx.Exec("DELETE FROM symbols WHERE package = ?", sym.Package); err != nil {
				return fmt.Errorf("clearing package %s: %w", sym.Package, err)
			}
			cleared[sym.Package] = true
		}

		params, err := json.Marshal(sym.Params)
		if err != nil {
			return fmt.Errorf("encoding params of %s: %w", sym.Name, err)
		}
		_, err = tx.Exec(
			"INSERT OR REPLACE INTO symbols (name, kind, decl, package, params, result, position) VALUES (?, ?, ?, ?, json(?), ?, ?)",
			sym.Name, sym.Kind, sym.Decl, sym.Package, string(params), sym.Result, sym.Position,
		)
		if err != nil {
			return fmt.Errorf("saving symbol %s: %w", sym.Name, err)
		}
	}

	return tx.Commit()
}

// Lookup retrieves one symbol by name.
func (s *Store) Lookup(name string) (Symbol, error) {
	row := s.db.QueryRow("SELECT name, kind, decl, package, params, result, position FROM symbols WHERE name = ?", name)
	sym, err := scanSymbol(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Symbol{}, ErrSymbolNotFound
	}
	return sym, err
}

// Table loads every stored symbol, ordered by package and name.
func (s *Store) Table() (*Table, error) {
	rows, err := s.db.Query("SELECT name, kind, decl, package, params, result, position FROM symbols ORDER BY package, name")
	if err != nil {
		return nil, fmt.Errorf("querying symbols: %w", err)
	}
	defer rows.Close()

	t := New()
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		t.Symbols = append(t.Symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating symbols: %w", err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSymbol(r scanner) (Symbol, error) {
	var sym Symbol
	var params string
	if err := r.Scan(&sym.Name, &sym.Kind, &sym.Decl, &sym.Package, &params, &sym.Result, &sym.Position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Symbol{}, err
		}
		return Symbol{}, fmt.Errorf("scanning symbol: %w", err)
	}
	if err := json.Unmarshal([]byte(params), &sym.Params); err != nil {
		return Symbol{}, fmt.Errorf("decoding params of %s: %w", sym.Name, err)
	}
	return sym, nil
}
