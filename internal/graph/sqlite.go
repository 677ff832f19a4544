package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/recalld/internal/memory"
)

// SQLiteStore is a persistent Store backed by an embedded SQLite database.
// Structured memory fields travel as one JSON document per node; columns
// exist only for what the engine queries on (hash, kind, polarity, tags,
// symptoms, edges).
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	content_hash TEXT UNIQUE NOT NULL,
	kind TEXT NOT NULL,
	polarity TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	doc TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	seq INTEGER
);

CREATE INDEX IF NOT EXISTS idx_memories_hash ON memories(content_hash);

CREATE TABLE IF NOT EXISTS memory_tags (
	memory_id TEXT NOT NULL,
	tag TEXT NOT NULL,
	PRIMARY KEY (memory_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_memory_tags_tag ON memory_tags(tag);

CREATE TABLE IF NOT EXISTS environments (
	hash TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_env (
	memory_id TEXT PRIMARY KEY,
	env_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cases (
	id TEXT PRIMARY KEY,
	env_hash TEXT,
	doc TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS case_symptoms (
	case_id TEXT NOT NULL,
	symptom TEXT NOT NULL,
	PRIMARY KEY (case_id, symptom)
);

CREATE INDEX IF NOT EXISTS idx_case_symptoms_symptom ON case_symptoms(symptom);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS recall_edges (
	agent_id TEXT NOT NULL,
	memory_id TEXT NOT NULL,
	a REAL NOT NULL,
	b REAL NOT NULL,
	strength REAL NOT NULL,
	evidence REAL NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (agent_id, memory_id)
);

CREATE TABLE IF NOT EXISTS pair_edges (
	kind TEXT NOT NULL,
	a_id TEXT NOT NULL,
	b_id TEXT NOT NULL,
	a REAL NOT NULL DEFAULT 0,
	b REAL NOT NULL DEFAULT 0,
	strength REAL NOT NULL DEFAULT 0,
	evidence REAL NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (kind, a_id, b_id)
);

CREATE TABLE IF NOT EXISTS links (
	from_id TEXT NOT NULL,
	rel TEXT NOT NULL,
	to_id TEXT NOT NULL,
	props TEXT NOT NULL DEFAULT '{}',
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (from_id, rel, to_id)
);
`

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// UpsertMemory inserts a new memory node and its tag rows.
func (s *SQLiteStore) UpsertMemory(ctx context.Context, m *memory.Memory) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding memory %s: %w", m.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memories (id, content_hash, kind, polarity, title, content, doc, created_at, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM memories))`,
		m.ID, m.ContentHash, string(m.Kind), string(m.Polarity), m.Title, m.Content, string(doc), m.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting memory %s: %w", m.ID, err)
	}
	for _, t := range memory.NormalizeTags(m.Tags) {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO memory_tags (memory_id, tag) VALUES (?, ?)`, m.ID, t); err != nil {
			return fmt.Errorf("inserting tag %q: %w", t, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing memory insert: %w", err)
	}
	return nil
}

// FindIDByContentHash returns the id holding hash, or "".
func (s *SQLiteStore) FindIDByContentHash(ctx context.Context, hash string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM memories WHERE content_hash = ? LIMIT 1`, hash).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up content hash: %w", err)
	}
	return id, nil
}

// AttachEnvironment merges the environment node by hash and links the memory.
func (s *SQLiteStore) AttachEnvironment(ctx context.Context, memoryID string, env memory.EnvironmentFingerprint) error {
	doc, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding environment: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO environments (hash, doc) VALUES (?, ?)`, env.Hash, string(doc)); err != nil {
		return fmt.Errorf("merging environment: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO memory_env (memory_id, env_hash) VALUES (?, ?)`, memoryID, env.Hash); err != nil {
		return fmt.Errorf("linking environment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing environment link: %w", err)
	}
	return nil
}

func scanMemoryDoc(doc string) (memory.Memory, error) {
	var m memory.Memory
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return memory.Memory{}, fmt.Errorf("decoding memory document: %w", err)
	}
	return m, nil
}

// GetMemoriesByID fetches memories preserving the order of ids.
func (s *SQLiteStore) GetMemoriesByID(ctx context.Context, ids []string) ([]memory.Memory, error) {
	out := make([]memory.Memory, 0, len(ids))
	for _, id := range ids {
		var doc string
		err := s.db.QueryRowContext(ctx, `SELECT doc FROM memories WHERE id = ?`, id).Scan(&doc)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetching memory %s: %w", id, err)
		}
		m, err := scanMemoryDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ListMemories returns memories matching the query, newest first.
func (s *SQLiteStore) ListMemories(ctx context.Context, q ListQuery) ([]memory.Memory, error) {
	query := `SELECT doc FROM memories`
	args := []any{}
	if q.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(q.Kind))
	}
	query += ` ORDER BY seq DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer rows.Close()

	var out []memory.Memory
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning memory row: %w", err)
		}
		m, err := scanMemoryDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// FindTagCandidates returns memories sharing at least MinSharedTags tags.
func (s *SQLiteStore) FindTagCandidates(ctx context.Context, q TagOverlapQuery) ([]TagCandidate, error) {
	if len(q.Tags) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`SELECT m.id, COUNT(*) AS shared,
		(SELECT COUNT(*) FROM memory_tags mt WHERE mt.memory_id = m.id) AS total
		FROM memory_tags t JOIN memories m ON m.id = t.memory_id
		WHERE t.tag IN (`)
	sb.WriteString(placeholders(len(q.Tags)))
	sb.WriteString(`) AND m.id != ?`)

	args := make([]any, 0, len(q.Tags)+8)
	for _, t := range q.Tags {
		args = append(args, t)
	}
	args = append(args, q.MemoryID)

	if q.SameKind {
		sb.WriteString(` AND m.kind = ?`)
		args = append(args, string(q.Kind))
	}
	if q.SamePolarity {
		sb.WriteString(` AND m.polarity = ?`)
		args = append(args, string(q.Polarity))
	}
	if len(q.AllowedKinds) > 0 {
		sb.WriteString(` AND m.kind IN (`)
		sb.WriteString(placeholders(len(q.AllowedKinds)))
		sb.WriteString(`)`)
		for _, k := range q.AllowedKinds {
			args = append(args, string(k))
		}
	}
	sb.WriteString(` GROUP BY m.id HAVING shared >= ? ORDER BY shared DESC, m.id ASC`)
	args = append(args, q.MinSharedTags)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying tag candidates: %w", err)
	}
	defer rows.Close()

	var out []TagCandidate
	for rows.Next() {
		var c TagCandidate
		if err := rows.Scan(&c.ID, &c.SharedTags, &c.TotalTags); err != nil {
			return nil, fmt.Errorf("scanning tag candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchText scores memories by term matches over title and content.
func (s *SQLiteStore) SearchText(ctx context.Context, q TextQuery) ([]Hit, error) {
	terms := TextTerms(q.Query)
	if len(terms) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`SELECT doc FROM memories WHERE `)
	args := make([]any, 0, len(terms)*2)
	for i, t := range terms {
		if i > 0 {
			sb.WriteString(` OR `)
		}
		sb.WriteString(`(lower(title) LIKE ? OR lower(content) LIKE ?)`)
		pat := "%" + t + "%"
		args = append(args, pat, pat)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("searching text: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		m, err := scanMemoryDoc(doc)
		if err != nil {
			return nil, err
		}
		if score := TextScore(&m, terms); score > 0 {
			hits = append(hits, Hit{Memory: m, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortHits(hits)
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// FindByTags scores memories by overlap with the given normalized tags.
func (s *SQLiteStore) FindByTags(ctx context.Context, tags []string, limit int) ([]Hit, error) {
	norm := memory.NormalizeTags(tags)
	if len(norm) == 0 {
		return nil, nil
	}

	query := `SELECT m.doc, COUNT(*) AS shared
		FROM memory_tags t JOIN memories m ON m.id = t.memory_id
		WHERE t.tag IN (` + placeholders(len(norm)) + `)
		GROUP BY m.id ORDER BY shared DESC, m.id ASC`
	args := make([]any, 0, len(norm)+1)
	for _, t := range norm {
		args = append(args, t)
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying by tags: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var doc string
		var shared int
		if err := rows.Scan(&doc, &shared); err != nil {
			return nil, fmt.Errorf("scanning tag hit: %w", err)
		}
		m, err := scanMemoryDoc(doc)
		if err != nil {
			return nil, err
		}
		hits = append(hits, Hit{Memory: m, Score: float64(shared) / float64(len(norm))})
	}
	return hits, rows.Err()
}

// UpsertCase merges a case by id, replacing fields and symptom rows.
func (s *SQLiteStore) UpsertCase(ctx context.Context, c *memory.Case) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding case %s: %w", c.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO cases (id, env_hash, doc) VALUES (?, ?, ?)`,
		c.ID, c.Env.Hash, string(doc)); err != nil {
		return fmt.Errorf("merging case %s: %w", c.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM case_symptoms WHERE case_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clearing case symptoms: %w", err)
	}
	for _, sym := range c.Symptoms {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO case_symptoms (case_id, symptom) VALUES (?, ?)`, c.ID, sym); err != nil {
			return fmt.Errorf("inserting case symptom %q: %w", sym, err)
		}
	}
	if c.Env.Hash != "" {
		envDoc, err := json.Marshal(c.Env)
		if err != nil {
			return fmt.Errorf("encoding case environment: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO environments (hash, doc) VALUES (?, ?)`, c.Env.Hash, string(envDoc)); err != nil {
			return fmt.Errorf("merging case environment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing case upsert: %w", err)
	}
	return nil
}

// MatchCaseCandidates returns cases sharing a symptom or environment hash.
func (s *SQLiteStore) MatchCaseCandidates(ctx context.Context, q CaseQuery) ([]memory.Case, error) {
	var sb strings.Builder
	args := []any{}

	sb.WriteString(`SELECT DISTINCT c.doc FROM cases c`)
	switch {
	case len(q.Symptoms) > 0 && q.EnvHash != "":
		sb.WriteString(` LEFT JOIN case_symptoms cs ON cs.case_id = c.id
			WHERE cs.symptom IN (` + placeholders(len(q.Symptoms)) + `) OR c.env_hash = ?`)
		for _, sym := range q.Symptoms {
			args = append(args, sym)
		}
		args = append(args, q.EnvHash)
	case len(q.Symptoms) > 0:
		sb.WriteString(` JOIN case_symptoms cs ON cs.case_id = c.id
			WHERE cs.symptom IN (` + placeholders(len(q.Symptoms)) + `)`)
		for _, sym := range q.Symptoms {
			args = append(args, sym)
		}
	case q.EnvHash != "":
		sb.WriteString(` WHERE c.env_hash = ?`)
		args = append(args, q.EnvHash)
	default:
		return nil, nil
	}
	sb.WriteString(` ORDER BY c.id ASC`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("matching cases: %w", err)
	}
	defer rows.Close()

	var out []memory.Case
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning case row: %w", err)
		}
		var c memory.Case
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return nil, fmt.Errorf("decoding case document: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EnsureAgent merges the agent node by id.
func (s *SQLiteStore) EnsureAgent(ctx context.Context, agentID string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO agents (id) VALUES (?)`, agentID); err != nil {
		return fmt.Errorf("merging agent %s: %w", agentID, err)
	}
	return nil
}

// GetRecallEdges returns existing posteriors keyed by memory id.
func (s *SQLiteStore) GetRecallEdges(ctx context.Context, agentID string, memoryIDs []string) (map[string]memory.BetaEdge, error) {
	out := make(map[string]memory.BetaEdge)
	if len(memoryIDs) == 0 {
		return out, nil
	}

	query := `SELECT memory_id, a, b, strength, evidence, updated_at
		FROM recall_edges WHERE agent_id = ? AND memory_id IN (` + placeholders(len(memoryIDs)) + `)`
	args := make([]any, 0, len(memoryIDs)+1)
	args = append(args, agentID)
	for _, id := range memoryIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching recall edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var e memory.BetaEdge
		var updatedAt int64
		if err := rows.Scan(&id, &e.A, &e.B, &e.Strength, &e.Evidence, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning recall edge: %w", err)
		}
		e.UpdatedAt = time.Unix(0, updatedAt)
		out[id] = e
	}
	return out, rows.Err()
}

// UpdateRecallEdge atomically applies update to one agent->memory edge.
func (s *SQLiteStore) UpdateRecallEdge(ctx context.Context, agentID, memoryID string, update EdgeUpdate) (memory.BetaEdge, error) {
	var next memory.BetaEdge
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var prior *memory.BetaEdge
		var e memory.BetaEdge
		var updatedAt int64
		err := tx.QueryRowContext(ctx,
			`SELECT a, b, strength, evidence, updated_at FROM recall_edges WHERE agent_id = ? AND memory_id = ?`,
			agentID, memoryID).Scan(&e.A, &e.B, &e.Strength, &e.Evidence, &updatedAt)
		switch err {
		case nil:
			e.UpdatedAt = time.Unix(0, updatedAt)
			prior = &e
		case sql.ErrNoRows:
		default:
			return fmt.Errorf("reading recall edge: %w", err)
		}

		next = update(prior)
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO recall_edges (agent_id, memory_id, a, b, strength, evidence, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			agentID, memoryID, next.A, next.B, next.Strength, next.Evidence, next.UpdatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("writing recall edge: %w", err)
		}
		return nil
	})
	return next, err
}

// UpdateCoUsedEdge atomically applies update to the canonical pair edge.
func (s *SQLiteStore) UpdateCoUsedEdge(ctx context.Context, a, b string, update EdgeUpdate) (memory.BetaEdge, error) {
	aID, bID := PairKey(a, b)
	var next memory.BetaEdge
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var prior *memory.BetaEdge
		var e memory.BetaEdge
		var updatedAt int64
		err := tx.QueryRowContext(ctx,
			`SELECT a, b, strength, evidence, updated_at FROM pair_edges WHERE kind = ? AND a_id = ? AND b_id = ?`,
			string(memory.EdgeCoUsed), aID, bID).Scan(&e.A, &e.B, &e.Strength, &e.Evidence, &updatedAt)
		switch err {
		case nil:
			e.UpdatedAt = time.Unix(0, updatedAt)
			prior = &e
		case sql.ErrNoRows:
		default:
			return fmt.Errorf("reading co-used edge: %w", err)
		}

		next = update(prior)
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO pair_edges (kind, a_id, b_id, a, b, strength, evidence, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(memory.EdgeCoUsed), aID, bID, next.A, next.B, next.Strength, next.Evidence, next.UpdatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("writing co-used edge: %w", err)
		}
		return nil
	})
	return next, err
}

// MergeRelatedEdge merges the symmetric RELATED_TO edge, overwriting weight.
func (s *SQLiteStore) MergeRelatedEdge(ctx context.Context, a, b string, weight float64) error {
	aID, bID := PairKey(a, b)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pair_edges (kind, a_id, b_id, strength, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(memory.EdgeRelatedTo), aID, bID, weight, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("merging related edge: %w", err)
	}
	return nil
}

// MergeLink merges a generic named relationship with properties.
func (s *SQLiteStore) MergeLink(ctx context.Context, fromID, relType, toID string, props map[string]any) error {
	if props == nil {
		props = map[string]any{}
	}
	doc, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("encoding link props: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO links (from_id, rel, to_id, props, updated_at) VALUES (?, ?, ?, ?, ?)`,
		fromID, relType, toID, string(doc), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("merging link: %w", err)
	}
	return nil
}

// ListEdges exports co-used and related edges above MinStrength.
func (s *SQLiteStore) ListEdges(ctx context.Context, q EdgeQuery) ([]memory.EdgeExport, error) {
	query := `SELECT kind, a_id, b_id, strength, evidence, updated_at FROM pair_edges
		WHERE strength >= ? ORDER BY strength DESC, a_id ASC, b_id ASC`
	args := []any{q.MinStrength}
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}
	defer rows.Close()

	var out []memory.EdgeExport
	for rows.Next() {
		var e memory.EdgeExport
		var kind string
		var updatedAt int64
		if err := rows.Scan(&kind, &e.Source, &e.Target, &e.Strength, &e.Evidence, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning edge row: %w", err)
		}
		e.Kind = memory.EdgeKind(kind)
		e.UpdatedAt = time.Unix(0, updatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
