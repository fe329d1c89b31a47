package repo

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the part of a neo4j result the repository reads.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// Runner is the part of a neo4j session the repository uses.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Close(ctx context.Context) error
}

// SessionFunc opens a Runner.
type SessionFunc func(ctx context.Context) Runner

// DriverSessions opens write sessions on driver.
func DriverSessions(driver neo4j.DriverWithContext) SessionFunc {
	return func(ctx context.Context) Runner {
		return &session{s: driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})}
	}
}

type session struct{ s neo4j.SessionWithContext }

func (a *session) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return a.s.Run(ctx, cypher, params)
}

func (a *session) Close(ctx context.Context) error { return a.s.Close(ctx) }

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Neo4jRepo stores T as nodes with one label, identified by the Key
// property. Writes use MERGE so they are idempotent.
type Neo4jRepo[T any, ID comparable] struct {
	sessions   SessionFunc
	label      string
	key        string
	toMap      func(T) map[string]any
	fromRecord func(*neo4j.Record) (T, error)
}

// NewNeo4jRepo builds a repository. label and key must be plain
// identifiers; they are interpolated into cypher.
func NewNeo4jRepo[T any, ID comparable](
	sessions SessionFunc,
	label, key string,
	toMap func(T) map[string]any,
	fromRecord func(*neo4j.Record) (T, error),
) *Neo4jRepo[T, ID] {
	if !identRE.MatchString(label) || !identRE.MatchString(key) {
		panic(fmt.Sprintf("repo: invalid label %q or key %q", label, key))
	}
	return &Neo4jRepo[T, ID]{sessions: sessions, label: label, key: key, toMap: toMap, fromRecord: fromRecord}
}

var _ Repository[any, string] = (*Neo4jRepo[any, string])(nil)

// Label returns the node label.
func (r *Neo4jRepo[T, ID]) Label() string { return r.label }

func (r *Neo4jRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	var zero T
	sess := r.sessions(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN n", r.label, r.key)
	res, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return zero, err
	}
	if !res.Next(ctx) {
		return zero, fmt.Errorf("%s %v: %w", r.label, id, ErrNotFound)
	}
	return r.fromRecord(res.Record())
}

func (r *Neo4jRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	sess := r.sessions(ctx)
	defer sess.Close(ctx)

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	params := map[string]any{"offset": opts.Offset, "limit": limit}

	var where []string
	keys := make([]string, 0, len(opts.Filter))
	for k := range opts.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if !identRE.MatchString(k) {
			return nil, fmt.Errorf("invalid filter property %q", k)
		}
		p := fmt.Sprintf("f%d", i)
		where = append(where, fmt.Sprintf("n.%s = $%s", k, p))
		params[p] = opts.Filter[k]
	}
	cypher := fmt.Sprintf("MATCH (n:%s)", r.label)
	if len(where) > 0 {
		cypher += " WHERE " + strings.Join(where, " AND ")
	}
	cypher += fmt.Sprintf(" RETURN n ORDER BY n.%s SKIP $offset LIMIT $limit", r.key)

	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	var items []T
	for res.Next(ctx) {
		item, err := r.fromRecord(res.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Neo4jRepo[T, ID]) Upsert(ctx context.Context, entity T) error {
	return r.UpsertBatch(ctx, []T{entity})
}

// UpsertBatch merges all entities in one statement.
func (r *Neo4jRepo[T, ID]) UpsertBatch(ctx context.Context, entities []T) error {
	if len(entities) == 0 {
		return nil
	}
	rows := make([]map[string]any, len(entities))
	for i, e := range entities {
		rows[i] = r.toMap(e)
	}
	cypher := fmt.Sprintf("UNWIND $rows AS row MERGE (n:%s {%s: row.%s}) SET n += row", r.label, r.key, r.key)
	return r.Exec(ctx, cypher, map[string]any{"rows": rows})
}

func (r *Neo4jRepo[T, ID]) Delete(ctx context.Context, id ID) error {
	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) DETACH DELETE n", r.label, r.key)
	return r.Exec(ctx, cypher, map[string]any{"id": id})
}

// Exec runs a write statement and discards its result.
func (r *Neo4jRepo[T, ID]) Exec(ctx context.Context, cypher string, params map[string]any) error {
	sess := r.sessions(ctx)
	defer sess.Close(ctx)
	_, err := sess.Run(ctx, cypher, params)
	return err
}

// NodeProps returns the property map of the first value of rec when it is
// a node.
func NodeProps(rec *neo4j.Record) (map[string]any, error) {
	if rec == nil || len(rec.Values) == 0 {
		return nil, fmt.Errorf("empty record")
	}
	switch v := rec.Values[0].(type) {
	case neo4j.Node:
		return v.Props, nil
	case map[string]any:
		return v, nil
	}
	return nil, fmt.Errorf("unexpected value %T", rec.Values[0])
}
