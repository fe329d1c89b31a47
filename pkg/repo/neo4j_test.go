package repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type fakeResult struct {
	records []*neo4j.Record
	idx     int
}

func (f *fakeResult) Next(context.Context) bool {
	if f.idx < len(f.records) {
		f.idx++
		return true
	}
	return false
}

func (f *fakeResult) Record() *neo4j.Record { return f.records[f.idx-1] }

type call struct {
	cypher string
	params map[string]any
}

type fakeRunner struct {
	records []*neo4j.Record
	err     error
	calls   []call
	closed  int
}

func (f *fakeRunner) Run(_ context.Context, cypher string, params map[string]any) (Result, error) {
	f.calls = append(f.calls, call{cypher, params})
	if f.err != nil {
		return nil, f.err
	}
	return &fakeResult{records: f.records}, nil
}

func (f *fakeRunner) Close(context.Context) error { f.closed++; return nil }

type movie struct {
	Title string
	Shows int64
}

func newMovieRepo(f *fakeRunner) *Neo4jRepo[movie, string] {
	return NewNeo4jRepo[movie, string](
		func(context.Context) Runner { return f },
		"Movie", "title",
		func(m movie) map[string]any { return map[string]any{"title": m.Title, "shows": m.Shows} },
		func(rec *neo4j.Record) (movie, error) {
			p, err := NodeProps(rec)
			if err != nil {
				return movie{}, err
			}
			return movie{Title: p["title"].(string), Shows: p["shows"].(int64)}, nil
		},
	)
}

func nodeRecord(title string, shows int64) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"n"},
		Values: []any{neo4j.Node{Labels: []string{"Movie"}, Props: map[string]any{"title": title, "shows": shows}}},
	}
}

func TestGet(t *testing.T) {
	f := &fakeRunner{records: []*neo4j.Record{nodeRecord("Jawan", 4)}}
	m, err := newMovieRepo(f).Get(context.Background(), "Jawan")
	if err != nil {
		t.Fatal(err)
	}
	if m.Title != "Jawan" || m.Shows != 4 {
		t.Fatalf("got %+v", m)
	}
	if f.calls[0].params["id"] != "Jawan" || f.closed != 1 {
		t.Fatalf("unexpected call %+v closed=%d", f.calls[0], f.closed)
	}
}

func TestGetNotFound(t *testing.T) {
	_, err := newMovieRepo(&fakeRunner{}).Get(context.Background(), "x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListWithFilter(t *testing.T) {
	f := &fakeRunner{records: []*neo4j.Record{nodeRecord("A", 1), nodeRecord("B", 2)}}
	items, err := newMovieRepo(f).List(context.Background(), ListOpts{Filter: map[string]any{"shows": 1, "lang": "HINDI"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}
	c := f.calls[0]
	if !strings.Contains(c.cypher, "WHERE n.lang = $f0 AND n.shows = $f1") {
		t.Fatalf("cypher: %s", c.cypher)
	}
	if c.params["limit"] != 100 {
		t.Fatalf("default limit not applied: %v", c.params["limit"])
	}
}

func TestListRejectsBadFilterKey(t *testing.T) {
	_, err := newMovieRepo(&fakeRunner{}).List(context.Background(), ListOpts{Filter: map[string]any{"x) DETACH DELETE n //": 1}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsertBatch(t *testing.T) {
	f := &fakeRunner{}
	r := newMovieRepo(f)
	if err := r.UpsertBatch(context.Background(), nil); err != nil || len(f.calls) != 0 {
		t.Fatal("empty batch should be a no-op")
	}
	if err := r.UpsertBatch(context.Background(), []movie{{"A", 1}, {"B", 2}}); err != nil {
		t.Fatal(err)
	}
	c := f.calls[0]
	if !strings.HasPrefix(c.cypher, "UNWIND $rows AS row MERGE (n:Movie {title: row.title})") {
		t.Fatalf("cypher: %s", c.cypher)
	}
	if rows := c.params["rows"].([]map[string]any); len(rows) != 2 || rows[1]["title"] != "B" {
		t.Fatalf("rows: %+v", rows)
	}
}

func TestRunErrorsPropagate(t *testing.T) {
	f := &fakeRunner{err: errors.New("db down")}
	r := newMovieRepo(f)
	if err := r.Upsert(context.Background(), movie{Title: "A"}); err == nil {
		t.Fatal("expected error")
	}
	if err := r.Delete(context.Background(), "A"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := r.List(context.Background(), ListOpts{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestInvalidLabelPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewNeo4jRepo[movie, string](nil, "Bad Label", "id", nil, nil)
}

func TestNodePropsMap(t *testing.T) {
	p, err := NodeProps(&neo4j.Record{Values: []any{map[string]any{"a": 1}}})
	if err != nil || p["a"] != 1 {
		t.Fatalf("got %v %v", p, err)
	}
	if _, err := NodeProps(&neo4j.Record{Values: []any{"x"}}); err == nil {
		t.Fatal("expected error")
	}
}
