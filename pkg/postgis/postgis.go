// Package postgis stores a region hierarchy in a PostGIS table so several
// servers can load the same boundaries without shipping files around.
package postgis

import (
	"context"
	"database/sql"
	"encoding/binary"
	"time"

	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"

	"github.com/1F47E/geo-region-index/pkg/models"
	"github.com/1F47E/geo-region-index/pkg/region"
)

const srid = 4326

// Store reads and writes regions in the regions table.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open connects to dsn with the lib/pq driver and checks the connection.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgis: open database")
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "postgis: ping database")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return New(db, log), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.L()
	}
	return &Store{db: db, log: log.With(zap.String("component", "postgis"))}
}

func (s *Store) Close() error { return s.db.Close() }

// InitSchema creates the regions table and its spatial index if missing.
func (s *Store) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		`CREATE TABLE IF NOT EXISTS regions (
			code        TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			level       SMALLINT NOT NULL,
			parent_code TEXT NOT NULL DEFAULT '',
			geom        GEOMETRY(MULTIPOLYGON, 4326) NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_regions_geom ON regions USING GIST(geom);`,
		`CREATE INDEX IF NOT EXISTS idx_regions_level ON regions (level);`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return eris.Wrapf(err, "postgis: init schema")
		}
	}
	return nil
}

// Save replaces the table contents with h in one transaction.
func (s *Store) Save(ctx context.Context, h *region.Hierarchy) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "postgis: begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM regions`); err != nil {
		return eris.Wrap(err, "postgis: clear regions")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO regions (code, name, level, parent_code, geom)
		VALUES ($1, $2, $3, $4, ST_Multi(ST_GeomFromWKB($5, 4326)))
	`)
	if err != nil {
		return eris.Wrap(err, "postgis: prepare insert")
	}
	defer stmt.Close()

	n := 0
	for _, level := range models.Levels {
		for _, code := range h.Level(level) {
			r, _ := h.Get(code)
			blob, err := encodeGeometry(r.Polygons)
			if err != nil {
				return eris.Wrapf(err, "postgis: encode %s", code)
			}
			if _, err := stmt.ExecContext(ctx, r.Code, r.Name, int(r.Level), r.ParentCode, blob); err != nil {
				return eris.Wrapf(err, "postgis: insert %s", code)
			}
			n++
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "postgis: commit")
	}
	s.log.Info("regions saved", zap.Int("regions", n), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Load reads every region down to finest and builds the hierarchy.
func (s *Store) Load(ctx context.Context, finest models.Level) (*region.Hierarchy, error) {
	if !finest.Valid() {
		return nil, eris.Errorf("postgis: invalid level %d", int(finest))
	}
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, level, parent_code, ST_AsBinary(geom)
		FROM regions
		WHERE level <= $1
		ORDER BY level, code
	`, int(finest))
	if err != nil {
		return nil, eris.Wrap(err, "postgis: query regions")
	}
	defer rows.Close()

	b := region.NewBuilder()
	for rows.Next() {
		var (
			code, name, parent string
			level              int
			blob               []byte
		)
		if err := rows.Scan(&code, &name, &level, &parent, &blob); err != nil {
			return nil, eris.Wrap(err, "postgis: scan row")
		}
		r, err := decodeRegion(code, name, models.Level(level), parent, blob)
		if err != nil {
			return nil, err
		}
		if err := b.Add(r); err != nil {
			return nil, eris.Wrap(err, "postgis")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgis: rows")
	}

	h, err := b.Build()
	if err != nil {
		return nil, eris.Wrap(err, "postgis")
	}
	s.log.Info("regions loaded",
		zap.Int("regions", h.Len()),
		zap.Stringer("finest", finest),
		zap.Duration("elapsed", time.Since(start)),
	)
	return h, nil
}

// encodeGeometry renders the parts of a region as a WKB MultiPolygon.
func encodeGeometry(polys []region.Polygon) ([]byte, error) {
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)
	for _, p := range polys {
		if err := mp.Push(p.Geom()); err != nil {
			return nil, err
		}
	}
	return wkb.Marshal(mp, binary.LittleEndian)
}

func decodeRegion(code, name string, level models.Level, parent string, blob []byte) (*region.Region, error) {
	g, err := wkb.Unmarshal(blob)
	if err != nil {
		return nil, eris.Wrapf(err, "postgis: decode %s", code)
	}
	var parts []*geom.Polygon
	switch t := g.(type) {
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			parts = append(parts, t.Polygon(i))
		}
	case *geom.Polygon:
		parts = append(parts, t)
	default:
		return nil, eris.Errorf("postgis: %s: unsupported geometry %T", code, g)
	}

	r := &region.Region{Code: code, Name: name, Level: level, ParentCode: parent}
	for i, p := range parts {
		rp, err := region.PolygonFromGeom(p)
		if err != nil {
			return nil, eris.Wrapf(err, "postgis: %s polygon %d", code, i)
		}
		r.Polygons = append(r.Polygons, rp)
	}
	return r, nil
}
