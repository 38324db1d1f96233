package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/zoomtier/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS layers (
	name        TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	tiers       TEXT NOT NULL,
	max_zoom    INTEGER NOT NULL,
	carry       TEXT NOT NULL DEFAULT 'release',
	point_count INTEGER NOT NULL,
	counts      TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS layer_points (
	layer      TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	x          REAL NOT NULL,
	y          REAL NOT NULL,
	zoom       INTEGER NOT NULL,
	properties TEXT,
	PRIMARY KEY (layer, seq)
);

CREATE INDEX IF NOT EXISTS idx_layer_points_zoom ON layer_points(layer, zoom);
CREATE INDEX IF NOT EXISTS idx_layer_points_xy ON layer_points(layer, x, y);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveLayer(ctx context.Context, layer *model.Layer, points []model.LayerPoint) error {
	tiersJSON, countsJSON, err := marshalLayer(layer)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM layer_points WHERE layer = ?`, layer.Name); err != nil {
		return eris.Wrapf(err, "sqlite: clear layer %s", layer.Name)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO layers (name, run_id, tiers, max_zoom, carry, point_count, counts, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
			run_id = excluded.run_id, tiers = excluded.tiers, max_zoom = excluded.max_zoom,
			carry = excluded.carry, point_count = excluded.point_count, counts = excluded.counts,
			source = excluded.source, created_at = excluded.created_at`,
		layer.Name, layer.RunID.String(), string(tiersJSON), layer.MaxZoom, layer.Carry,
		layer.PointCount, string(countsJSON), layer.Source, layer.CreatedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert layer %s", layer.Name)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO layer_points (layer, seq, x, y, zoom, properties) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare point insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, p := range points {
		props, err := marshalProperties(p.Properties)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, layer.Name, p.Seq, p.X, p.Y, p.Zoom, props); err != nil {
			return eris.Wrapf(err, "sqlite: insert point %d", p.Seq)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit layer")
}

const sqliteLayerColumns = `name, run_id, tiers, max_zoom, carry, point_count, counts, source, created_at`

func (s *SQLiteStore) GetLayer(ctx context.Context, name string) (*model.Layer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLayerColumns+` FROM layers WHERE name = ?`, name)
	return scanLayer(row)
}

func (s *SQLiteStore) ListLayers(ctx context.Context) ([]model.Layer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteLayerColumns+` FROM layers ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list layers")
	}
	defer rows.Close() //nolint:errcheck

	var layers []model.Layer
	for rows.Next() {
		l, err := scanLayer(rows)
		if err != nil {
			return nil, err
		}
		layers = append(layers, *l)
	}
	return layers, eris.Wrap(rows.Err(), "sqlite: list layers rows")
}

func (s *SQLiteStore) QueryPoints(ctx context.Context, name string, zoom int, bbox *BBox) ([]model.LayerPoint, error) {
	layer, err := s.GetLayer(ctx, name)
	if err != nil {
		return nil, err
	}

	var q strings.Builder
	q.WriteString(`SELECT seq, x, y, zoom, properties FROM layer_points
		WHERE layer = ? AND ((zoom > 0 AND zoom <= ?) OR (zoom = 0 AND ? > ?))`)
	args := []any{name, zoom, zoom, layer.MaxZoom}
	if bbox != nil {
		q.WriteString(` AND x >= ? AND x <= ? AND y >= ? AND y <= ?`)
		args = append(args, bbox.MinX, bbox.MaxX, bbox.MinY, bbox.MaxY)
	}
	q.WriteString(` ORDER BY seq`)

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query points %s", name)
	}
	defer rows.Close() //nolint:errcheck

	var pts []model.LayerPoint
	for rows.Next() {
		var p model.LayerPoint
		var props sql.NullString
		if err := rows.Scan(&p.Seq, &p.X, &p.Y, &p.Zoom, &props); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan point")
		}
		if props.Valid {
			if err := json.Unmarshal([]byte(props.String), &p.Properties); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal properties")
			}
		}
		pts = append(pts, p)
	}
	return pts, eris.Wrap(rows.Err(), "sqlite: query points rows")
}

func (s *SQLiteStore) DeleteLayer(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM layers WHERE name = ?`, name)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete layer %s", name)
	}
	if err := checkRowsAffected(res, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM layer_points WHERE layer = ?`, name); err != nil {
		return eris.Wrapf(err, "sqlite: delete points %s", name)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

// helpers

func checkRowsAffected(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "layer %s", name)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLayer(row scannable) (*model.Layer, error) {
	var l model.Layer
	var runID, tiersJSON, countsJSON string
	var createdAt time.Time

	err := row.Scan(&l.Name, &runID, &tiersJSON, &l.MaxZoom, &l.Carry, &l.PointCount, &countsJSON, &l.Source, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan layer")
	}
	if err := unmarshalLayer(&l, runID, []byte(tiersJSON), []byte(countsJSON)); err != nil {
		return nil, err
	}
	l.CreatedAt = createdAt.UTC()
	return &l, nil
}

func marshalLayer(l *model.Layer) (tiers, counts []byte, err error) {
	tiers, err = json.Marshal(l.Tiers)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal tiers")
	}
	counts, err = json.Marshal(l.Counts)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal counts")
	}
	return tiers, counts, nil
}

func unmarshalLayer(l *model.Layer, runID string, tiers, counts []byte) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return eris.Wrapf(err, "store: parse run id %q", runID)
	}
	l.RunID = id
	if err := json.Unmarshal(tiers, &l.Tiers); err != nil {
		return eris.Wrap(err, "store: unmarshal tiers")
	}
	if err := json.Unmarshal(counts, &l.Counts); err != nil {
		return eris.Wrap(err, "store: unmarshal counts")
	}
	return nil
}

func marshalProperties(props map[string]string) (any, error) {
	if len(props) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(props)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal properties")
	}
	return string(b), nil
}
