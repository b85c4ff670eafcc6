package filterstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/spapi-core/pkg/filter"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed filter catalog satisfying filter.Catalog.
// Reads run directly against the database; the working set is small
// enough (tens to low hundreds of definitions) that no in-process cache
// is required beyond SQLite's own page cache.
type Store struct {
	db *sql.DB
}

// Open runs migrations on db and returns a ready Store. db is not
// closed by the Store; callers own its lifecycle.
func Open(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("filterstore migrate: %w", err)
	}
	return s, nil
}

// SeedDoc is one importable JSON document: a set of filter definitions
// plus optional chain declarations. DefaultSeeds returns the built-in
// orders/order-items/inventory/common/chains documents in this shape,
// ready to pass to Import.
type SeedDoc struct {
	Filters []SeedFilter `json:"filters"`
	Chains  []SeedChain  `json:"chains"`
}

type SeedFilter struct {
	ID          string          `json:"id"`
	Endpoint    string          `json:"endpoint"`
	Endpoints   []string        `json:"endpoints"`
	Category    string          `json:"category"`
	Kind        string          `json:"kind"`
	Description string          `json:"description"`
	Expression  string          `json:"expression"`
	IsDefault   bool            `json:"isDefault"`
	Parameters  []SeedParameter `json:"parameters"`
	Examples    []SeedExample   `json:"examples"`
	Tags        []string        `json:"tags"`
	Tests       []SeedExample   `json:"tests"`
}

type SeedParameter struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Default  any    `json:"default"`
}

type SeedExample struct {
	Input  any `json:"input"`
	Output any `json:"output"`
}

type SeedChain struct {
	ID    string   `json:"id"`
	Steps []string `json:"steps"`
}

// Import upserts every filter and chain in doc by id, then rejects the
// whole document if any chain contains an unknown step id or forms a
// cycle. Re-importing the same document is idempotent: rows are
// replaced by primary key, not appended.
func (s *Store) Import(ctx context.Context, doc SeedDoc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	known := map[string]bool{}
	for _, f := range doc.Filters {
		if err := importFilter(ctx, tx, f); err != nil {
			return fmt.Errorf("import filter %s: %w", f.ID, err)
		}
		known[f.ID] = true
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM filters`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		known[id] = true
	}
	rows.Close()

	adjacency := map[string][]string{}
	for _, c := range doc.Chains {
		for _, step := range c.Steps {
			if !known[step] {
				return fmt.Errorf("chain %s references unknown filter id %s", c.ID, step)
			}
		}
		adjacency[c.ID] = c.Steps
	}
	if err := detectCycles(adjacency); err != nil {
		return err
	}

	for _, c := range doc.Chains {
		if _, err := tx.ExecContext(ctx, `DELETE FROM filter_chains WHERE chain_id = ?`, c.ID); err != nil {
			return err
		}
		for i, step := range c.Steps {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO filter_chains (chain_id, step_order, step_filter_id) VALUES (?, ?, ?)`,
				c.ID, i, step); err != nil {
				return err
			}
		}
	}

	if err := recordImportTimestamp(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func recordImportTimestamp(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES ('last_seed_import', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

func importFilter(ctx context.Context, tx *sql.Tx, f SeedFilter) error {
	isDefault := 0
	if f.IsDefault {
		isDefault = 1
	}
	endpoint := f.Endpoint
	if endpoint == "" && len(f.Endpoints) > 0 {
		endpoint = f.Endpoints[0]
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO filters (id, endpoint, category, kind, description, expression, is_default)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			endpoint = excluded.endpoint,
			category = excluded.category,
			kind = excluded.kind,
			description = excluded.description,
			expression = excluded.expression,
			is_default = excluded.is_default`,
		f.ID, endpoint, f.Category, f.Kind, f.Description, f.Expression, isDefault)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM filter_endpoints WHERE filter_id = ?`, f.ID); err != nil {
		return err
	}
	endpoints := f.Endpoints
	if len(endpoints) == 0 && f.Endpoint != "" {
		endpoints = []string{f.Endpoint}
	}
	for _, ep := range endpoints {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO filter_endpoints (filter_id, endpoint) VALUES (?, ?)`, f.ID, ep); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM filter_parameters WHERE filter_id = ?`, f.ID); err != nil {
		return err
	}
	for _, p := range f.Parameters {
		required := 0
		if p.Required {
			required = 1
		}
		var def sql.NullString
		if p.Default != nil {
			b, err := json.Marshal(p.Default)
			if err != nil {
				return err
			}
			def = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO filter_parameters (filter_id, name, required, default_value) VALUES (?, ?, ?, ?)`,
			f.ID, p.Name, required, def); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM filter_examples WHERE filter_id = ?`, f.ID); err != nil {
		return err
	}
	for i, ex := range f.Examples {
		in, _ := json.Marshal(ex.Input)
		out, _ := json.Marshal(ex.Output)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO filter_examples (filter_id, seq, input, output) VALUES (?, ?, ?, ?)`,
			f.ID, i, string(in), string(out)); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM filter_tags WHERE filter_id = ?`, f.ID); err != nil {
		return err
	}
	for _, tag := range f.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO filter_tags (filter_id, tag) VALUES (?, ?)`, f.ID, tag); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM filter_tests WHERE filter_id = ?`, f.ID); err != nil {
		return err
	}
	for i, ts := range f.Tests {
		in, _ := json.Marshal(ts.Input)
		exp, _ := json.Marshal(ts.Output)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO filter_tests (filter_id, seq, input, expected) VALUES (?, ?, ?, ?)`,
			f.ID, i, string(in), string(exp)); err != nil {
			return err
		}
	}
	return nil
}

// detectCycles runs a depth-first traversal over the chain adjacency
// map and rejects any chain reachable from itself.
func detectCycles(adjacency map[string][]string) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var visit func(node string, path []string) error
	visit = func(node string, path []string) error {
		switch color[node] {
		case gray:
			return fmt.Errorf("cycle detected in filter chains: %v -> %s", path, node)
		case black:
			return nil
		}
		color[node] = gray
		for _, next := range adjacency[node] {
			if _, isChain := adjacency[next]; isChain {
				if err := visit(next, append(path, node)); err != nil {
					return err
				}
			}
		}
		color[node] = black
		return nil
	}
	for id := range adjacency {
		if err := visit(id, nil); err != nil {
			return err
		}
	}
	return nil
}

// Get implements filter.Catalog.
func (s *Store) Get(id string) (filter.Definition, bool) {
	def, ok, err := s.getByID(context.Background(), id)
	if err != nil {
		return filter.Definition{}, false
	}
	return def, ok
}

func (s *Store) getByID(ctx context.Context, id string) (filter.Definition, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, endpoint, category, kind, expression FROM filters WHERE id = ?`, id)
	var def filter.Definition
	if err := row.Scan(&def.ID, &def.Endpoint, &def.Category, &def.Kind, &def.Expr); err != nil {
		if err == sql.ErrNoRows {
			return filter.Definition{}, false, nil
		}
		return filter.Definition{}, false, err
	}

	defaults, required, err := s.listParameters(ctx, id)
	if err != nil {
		return filter.Definition{}, false, err
	}
	def.Defaults = defaults
	def.Required = required
	return def, true, nil
}

func (s *Store) listParameters(ctx context.Context, id string) (map[string]any, []string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, required, default_value FROM filter_parameters WHERE filter_id = ?`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	defaults := map[string]any{}
	var required []string
	for rows.Next() {
		var name string
		var req int
		var defRaw sql.NullString
		if err := rows.Scan(&name, &req, &defRaw); err != nil {
			return nil, nil, err
		}
		if req == 1 {
			required = append(required, name)
		}
		if defRaw.Valid {
			var v any
			if err := json.Unmarshal([]byte(defRaw.String), &v); err == nil {
				defaults[name] = v
			}
		}
	}
	return defaults, required, rows.Err()
}

// ListParameters exposes the listParameters query per the store's
// public contract.
func (s *Store) ListParameters(ctx context.Context, id string) (map[string]any, []string, error) {
	return s.listParameters(ctx, id)
}

// ListEndpointsFor returns every endpoint a filter is registered
// against.
func (s *Store) ListEndpointsFor(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT endpoint FROM filter_endpoints WHERE filter_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var ep string
		if err := rows.Scan(&ep); err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// ChainSteps implements filter.Catalog.
func (s *Store) ChainSteps(id string) ([]string, bool) {
	steps, err := s.ListChainSteps(context.Background(), id)
	if err != nil || len(steps) == 0 {
		return nil, false
	}
	return steps, true
}

// ListChainSteps returns the ordered filter ids that make up a chain.
func (s *Store) ListChainSteps(ctx context.Context, chainID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step_filter_id FROM filter_chains WHERE chain_id = ? ORDER BY step_order`, chainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Search implements listFilters(endpoint?, category?, kind?, searchTerm?).
func (s *Store) Search(ctx context.Context, endpoint, category, kind, searchTerm string) ([]filter.Definition, error) {
	query := `SELECT DISTINCT f.id, f.endpoint, f.category, f.kind, f.expression, f.description
		FROM filters f LEFT JOIN filter_endpoints fe ON fe.filter_id = f.id WHERE 1=1`
	var args []any
	if endpoint != "" {
		query += ` AND (f.endpoint = ? OR fe.endpoint = ?)`
		args = append(args, endpoint, endpoint)
	}
	if category != "" {
		query += ` AND f.category = ?`
		args = append(args, category)
	}
	if kind != "" {
		query += ` AND f.kind = ?`
		args = append(args, kind)
	}
	if searchTerm != "" {
		query += ` AND (f.id LIKE ? OR f.description LIKE ?)`
		like := "%" + searchTerm + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY f.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []filter.Definition
	for rows.Next() {
		var def filter.Definition
		var description string
		if err := rows.Scan(&def.ID, &def.Endpoint, &def.Category, &def.Kind, &def.Expr, &description); err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

// DefaultFor returns the filter registered as the default reduction
// for operation, if any, satisfying filter.DefaultResolver.
func (s *Store) DefaultFor(operation string) (filter.Definition, bool) {
	row := s.db.QueryRowContext(context.Background(), `
		SELECT f.id, f.endpoint, f.category, f.kind, f.expression
		FROM filters f
		JOIN filter_endpoints fe ON fe.filter_id = f.id
		WHERE fe.endpoint = ? AND f.is_default = 1
		LIMIT 1`, operation)
	var def filter.Definition
	if err := row.Scan(&def.ID, &def.Endpoint, &def.Category, &def.Kind, &def.Expr); err != nil {
		return filter.Definition{}, false
	}
	defaults, required, err := s.listParameters(context.Background(), def.ID)
	if err != nil {
		return filter.Definition{}, false
	}
	def.Defaults = defaults
	def.Required = required
	return def, true
}
