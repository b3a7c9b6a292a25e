// Package archive persists finished games to Postgres for long-term
// record keeping. The live coordinator never reads from it.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/chesslive/coordinator/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveCompleted upserts the final record of a terminal game.
func (r *Repository) SaveCompleted(ctx context.Context, g *domain.Game) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}
	if !g.Status.Terminal() {
		return nil
	}

	pgnResult := resultToken(g)
	pgn := exportPGN(g, pgnResult)
	duration := g.UpdatedAt.Sub(g.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO completed_games (
	    game_id, status, result, pgn, fen, move_count,
	    started_at, ended_at, duration_ms
	  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	  ON CONFLICT (game_id) DO UPDATE SET
	    status=EXCLUDED.status,
	    result=EXCLUDED.result,
	    pgn=EXCLUDED.pgn,
	    fen=EXCLUDED.fen,
	    move_count=EXCLUDED.move_count,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		g.ID, string(g.Status), pgnResult, pgn, g.FEN, len(g.Moves),
		g.CreatedAt, g.UpdatedAt, duration,
	)
	return err
}

// resultToken maps a terminal game to a PGN result string.
func resultToken(g *domain.Game) string {
	switch g.Result {
	case string(domain.White):
		return "1-0"
	case string(domain.Black):
		return "0-1"
	case "draw":
		return "1/2-1/2"
	}
	return "*"
}

func exportPGN(g *domain.Game, pgnResult string) string {
	var b strings.Builder
	date := g.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Live game\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[Termination \"%s\"]\n", string(g.Status))
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", pgnResult)
	if strings.TrimSpace(g.PGN) != "" {
		b.WriteString(strings.TrimSpace(g.PGN))
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}
