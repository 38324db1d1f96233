package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/zoomtier/internal/db"
	"github.com/sells-group/zoomtier/internal/model"
)

// SRID of stored point geometries.
const SRID = 4326

// PostgresStore implements Store on PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.NewPool(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS layers (
	name        TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	tiers       JSONB NOT NULL,
	max_zoom    INTEGER NOT NULL,
	carry       TEXT NOT NULL DEFAULT 'release',
	point_count INTEGER NOT NULL,
	counts      JSONB NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS layer_points (
	layer      TEXT NOT NULL REFERENCES layers(name) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	zoom       INTEGER NOT NULL,
	properties JSONB,
	geom       geometry(Point, 4326) NOT NULL,
	PRIMARY KEY (layer, seq)
);

CREATE INDEX IF NOT EXISTS idx_layer_points_zoom ON layer_points(layer, zoom);
CREATE INDEX IF NOT EXISTS idx_layer_points_geom ON layer_points USING GIST (geom);
`

var pointColumns = []string{"layer", "seq", "zoom", "properties", "geom"}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// EncodePoint returns the EWKB encoding of (x, y) with SRID 4326.
func EncodePoint(x, y float64) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(SRID)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode point")
	}
	return data, nil
}

// pointRows builds COPY rows for points.
func pointRows(layer string, points []model.LayerPoint) ([][]any, error) {
	rows := make([][]any, len(points))
	for i, p := range points {
		wkb, err := EncodePoint(p.X, p.Y)
		if err != nil {
			return nil, err
		}
		var props []byte
		if len(p.Properties) > 0 {
			if props, err = json.Marshal(p.Properties); err != nil {
				return nil, eris.Wrap(err, "postgres: marshal properties")
			}
		}
		rows[i] = []any{layer, p.Seq, p.Zoom, props, wkb}
	}
	return rows, nil
}

func (s *PostgresStore) SaveLayer(ctx context.Context, layer *model.Layer, points []model.LayerPoint) error {
	tiersJSON, countsJSON, err := marshalLayer(layer)
	if err != nil {
		return err
	}
	rows, err := pointRows(layer.Name, points)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO layers (name, run_id, tiers, max_zoom, carry, point_count, counts, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (name) DO UPDATE SET
			run_id = EXCLUDED.run_id, tiers = EXCLUDED.tiers, max_zoom = EXCLUDED.max_zoom,
			carry = EXCLUDED.carry, point_count = EXCLUDED.point_count, counts = EXCLUDED.counts,
			source = EXCLUDED.source, created_at = EXCLUDED.created_at`,
		layer.Name, layer.RunID.String(), tiersJSON, layer.MaxZoom, layer.Carry,
		layer.PointCount, countsJSON, layer.Source, layer.CreatedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert layer %s", layer.Name)
	}

	if _, err := db.BulkUpsert(ctx, tx, db.UpsertConfig{
		Table:        "layer_points",
		Columns:      pointColumns,
		ConflictKeys: []string{"layer", "seq"},
	}, rows); err != nil {
		return eris.Wrapf(err, "postgres: load points %s", layer.Name)
	}

	// Points past the new count belong to an earlier, larger run.
	if _, err := tx.Exec(ctx, `DELETE FROM layer_points WHERE layer = $1 AND seq >= $2`, layer.Name, len(points)); err != nil {
		return eris.Wrapf(err, "postgres: trim points %s", layer.Name)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit layer")
}

const postgresLayerColumns = `name, run_id, tiers, max_zoom, carry, point_count, counts, source, created_at`

func scanPostgresLayer(row pgx.Row) (*model.Layer, error) {
	var l model.Layer
	var runID string
	var tiersJSON, countsJSON []byte
	var createdAt time.Time

	err := row.Scan(&l.Name, &runID, &tiersJSON, &l.MaxZoom, &l.Carry, &l.PointCount, &countsJSON, &l.Source, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan layer")
	}
	if err := unmarshalLayer(&l, runID, tiersJSON, countsJSON); err != nil {
		return nil, err
	}
	l.CreatedAt = createdAt.UTC()
	return &l, nil
}

func (s *PostgresStore) GetLayer(ctx context.Context, name string) (*model.Layer, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postgresLayerColumns+` FROM layers WHERE name = $1`, name)
	l, err := scanPostgresLayer(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, eris.Wrapf(err, "postgres: get layer %s", name)
	}
	return l, err
}

func (s *PostgresStore) ListLayers(ctx context.Context) ([]model.Layer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+postgresLayerColumns+` FROM layers ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list layers")
	}
	defer rows.Close()

	var layers []model.Layer
	for rows.Next() {
		l, err := scanPostgresLayer(rows)
		if err != nil {
			return nil, err
		}
		layers = append(layers, *l)
	}
	return layers, eris.Wrap(rows.Err(), "postgres: list layers rows")
}

func (s *PostgresStore) QueryPoints(ctx context.Context, name string, zoom int, bbox *BBox) ([]model.LayerPoint, error) {
	layer, err := s.GetLayer(ctx, name)
	if err != nil {
		return nil, err
	}

	var q strings.Builder
	q.WriteString(`SELECT seq, ST_X(geom), ST_Y(geom), zoom, properties FROM layer_points
		WHERE layer = $1 AND ((zoom > 0 AND zoom <= $2) OR (zoom = 0 AND $2 > $3))`)
	args := []any{name, zoom, layer.MaxZoom}
	if bbox != nil {
		fmt.Fprintf(&q, ` AND geom && ST_MakeEnvelope($4, $5, $6, $7, %d)`, SRID)
		args = append(args, bbox.MinX, bbox.MinY, bbox.MaxX, bbox.MaxY)
	}
	q.WriteString(` ORDER BY seq`)

	rows, err := s.pool.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query points %s", name)
	}
	defer rows.Close()

	var pts []model.LayerPoint
	for rows.Next() {
		var p model.LayerPoint
		var props []byte
		if err := rows.Scan(&p.Seq, &p.X, &p.Y, &p.Zoom, &props); err != nil {
			return nil, eris.Wrap(err, "postgres: scan point")
		}
		if len(props) > 0 {
			if err := json.Unmarshal(props, &p.Properties); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal properties")
			}
		}
		pts = append(pts, p)
	}
	return pts, eris.Wrap(rows.Err(), "postgres: query points rows")
}

func (s *PostgresStore) DeleteLayer(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM layers WHERE name = $1`, name)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete layer %s", name)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "layer %s", name)
	}
	return nil
}
