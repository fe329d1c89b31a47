// Package graph mirrors merged show snapshots into Neo4j:
//
//	(:Movie {title})-[:HAS_SHOW]->(:Show {key})-[:AT]->(:Venue {key})
//	(:Movie)-[:SCREENS {date}]->(:Venue)
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/showpulse/engine/show"
	"github.com/WessleyAI/showpulse/pkg/repo"
)

// Movie node.
type Movie struct {
	Title string
}

// Venue node, keyed by lower-cased name, city and state.
type Venue struct {
	Key   string
	Name  string
	City  string
	State string
	Chain string
}

// Show node.
type Show struct {
	Key        string
	Movie      string
	VenueKey   string
	Date       string
	Time       string
	Language   string
	Dimension  string
	Source     string
	TotalSeats int64
	Sold       int64
	Gross      float64
}

// VenueKey identifies a venue node.
func VenueKey(r show.Record) string {
	return strings.ToLower(strings.Join([]string{
		strings.TrimSpace(r.Venue), show.GroupKey(r.City), show.GroupKey(r.State),
	}, "|"))
}

// ShowKey identifies a show node; the identity key is scoped to a date.
func ShowKey(r show.Record) string { return r.Date + "|" + r.Key().String() }

// Sink writes snapshots to Neo4j.
type Sink struct {
	movies *repo.Neo4jRepo[Movie, string]
	venues *repo.Neo4jRepo[Venue, string]
	shows  *repo.Neo4jRepo[Show, string]
	log    *slog.Logger
}

// New returns a Sink that opens sessions with sessions.
func New(sessions repo.SessionFunc, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{
		movies: repo.NewNeo4jRepo[Movie, string](sessions, "Movie", "title", movieProps, movieFrom),
		venues: repo.NewNeo4jRepo[Venue, string](sessions, "Venue", "key", venueProps, venueFrom),
		shows:  repo.NewNeo4jRepo[Show, string](sessions, "Show", "key", showProps, showFrom),
		log:    log,
	}
}

// Connect opens a driver for url and verifies it.
func Connect(ctx context.Context, url, user, pass string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return driver, nil
}

// Mirror upserts every record and its relationships. Re-mirroring the
// same snapshot is a no-op in effect.
func (s *Sink) Mirror(ctx context.Context, records []show.Record) error {
	if len(records) == 0 {
		return nil
	}
	var (
		movies []Movie
		venues []Venue
		shows  = make([]Show, 0, len(records))
		seenM  = map[string]bool{}
		seenV  = map[string]bool{}
		links  = make([]map[string]any, 0, len(records))
	)
	for _, r := range records {
		vk := VenueKey(r)
		if !seenM[r.Movie] {
			seenM[r.Movie] = true
			movies = append(movies, Movie{Title: r.Movie})
		}
		if !seenV[vk] {
			seenV[vk] = true
			venues = append(venues, Venue{Key: vk, Name: r.Venue, City: r.City, State: r.State, Chain: r.Chain})
		}
		sk := ShowKey(r)
		shows = append(shows, Show{
			Key: sk, Movie: r.Movie, VenueKey: vk, Date: r.Date, Time: r.Time,
			Language: r.Language, Dimension: r.Dimension, Source: r.Source,
			TotalSeats: int64(r.TotalSeats), Sold: int64(r.Sold), Gross: r.Gross,
		})
		links = append(links, map[string]any{"movie": r.Movie, "show": sk, "venue": vk, "date": r.Date})
	}

	if err := s.movies.UpsertBatch(ctx, movies); err != nil {
		return fmt.Errorf("upsert movies: %w", err)
	}
	if err := s.venues.UpsertBatch(ctx, venues); err != nil {
		return fmt.Errorf("upsert venues: %w", err)
	}
	if err := s.shows.UpsertBatch(ctx, shows); err != nil {
		return fmt.Errorf("upsert shows: %w", err)
	}
	const link = `UNWIND $rows AS row
MATCH (m:Movie {title: row.movie}), (s:Show {key: row.show}), (v:Venue {key: row.venue})
MERGE (m)-[:HAS_SHOW]->(s)
MERGE (s)-[:AT]->(v)
MERGE (m)-[:SCREENS {date: row.date}]->(v)`
	if err := s.shows.Exec(ctx, link, map[string]any{"rows": links}); err != nil {
		return fmt.Errorf("link shows: %w", err)
	}
	s.log.Info("graph mirrored", "movies", len(movies), "venues", len(venues), "shows", len(shows))
	return nil
}

// Shows lists mirrored shows of a movie.
func (s *Sink) Shows(ctx context.Context, movie string, limit int) ([]Show, error) {
	return s.shows.List(ctx, repo.ListOpts{Limit: limit, Filter: map[string]any{"movie": movie}})
}

// Venue loads one venue node.
func (s *Sink) Venue(ctx context.Context, key string) (Venue, error) {
	return s.venues.Get(ctx, key)
}

func movieProps(m Movie) map[string]any { return map[string]any{"title": m.Title} }

func movieFrom(rec *neo4j.Record) (Movie, error) {
	p, err := repo.NodeProps(rec)
	if err != nil {
		return Movie{}, err
	}
	return Movie{Title: str(p, "title")}, nil
}

func venueProps(v Venue) map[string]any {
	return map[string]any{"key": v.Key, "name": v.Name, "city": v.City, "state": v.State, "chain": v.Chain}
}

func venueFrom(rec *neo4j.Record) (Venue, error) {
	p, err := repo.NodeProps(rec)
	if err != nil {
		return Venue{}, err
	}
	return Venue{Key: str(p, "key"), Name: str(p, "name"), City: str(p, "city"), State: str(p, "state"), Chain: str(p, "chain")}, nil
}

func showProps(s Show) map[string]any {
	return map[string]any{
		"key": s.Key, "movie": s.Movie, "venue_key": s.VenueKey, "date": s.Date, "time": s.Time,
		"language": s.Language, "dimension": s.Dimension, "source": s.Source,
		"total_seats": s.TotalSeats, "sold": s.Sold, "gross": s.Gross,
	}
}

func showFrom(rec *neo4j.Record) (Show, error) {
	p, err := repo.NodeProps(rec)
	if err != nil {
		return Show{}, err
	}
	gross, _ := p["gross"].(float64)
	return Show{
		Key: str(p, "key"), Movie: str(p, "movie"), VenueKey: str(p, "venue_key"), Date: str(p, "date"),
		Time: str(p, "time"), Language: str(p, "language"), Dimension: str(p, "dimension"),
		Source: str(p, "source"), TotalSeats: num(p, "total_seats"), Sold: num(p, "sold"), Gross: gross,
	}, nil
}

func str(p map[string]any, k string) string {
	s, _ := p[k].(string)
	return s
}

func num(p map[string]any, k string) int64 {
	n, _ := p[k].(int64)
	return n
}
