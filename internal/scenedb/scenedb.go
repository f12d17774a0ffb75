// Package scenedb stores scenes and shaders in an SQLite database.
//
// The schema keeps all vertices in one table; each scene node references a
// half-open range of vertex rows and a 1-based material id.
package scenedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Faultbox/quick3d/internal/engine/shader"
	"github.com/Faultbox/quick3d/internal/logger"
	"github.com/Faultbox/quick3d/internal/scene"
)

var (
	ErrDatabaseNotFound = errors.New("scene database not found")
	ErrShaderNotFound   = errors.New("shader not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS vertex(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	px REAL NOT NULL, py REAL NOT NULL, pz REAL NOT NULL,
	nx REAL NOT NULL, ny REAL NOT NULL, nz REAL NOT NULL,
	tu REAL NOT NULL, tv REAL NOT NULL);
CREATE TABLE IF NOT EXISTS material(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	diffuse_r REAL, diffuse_g REAL, diffuse_b REAL,
	diffuse_texname TEXT);
CREATE TABLE IF NOT EXISTS scene_node(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	material_id INTEGER,
	start_position INTEGER NOT NULL, end_position INTEGER NOT NULL,
	radius REAL NOT NULL,
	center_x REAL NOT NULL, center_y REAL NOT NULL, center_z REAL NOT NULL);
CREATE TABLE IF NOT EXISTS texture(
	name TEXT PRIMARY KEY NOT NULL,
	image BLOB NOT NULL);
CREATE TABLE IF NOT EXISTS shader(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL);
CREATE TABLE IF NOT EXISTS shader_version(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	shader_id INTEGER NOT NULL REFERENCES shader(id),
	version INTEGER NOT NULL,
	type TEXT NOT NULL,
	source TEXT NOT NULL);
`

// Shader stage names in shader_version.type.
const (
	StageVertex   = "vertex"
	StageFragment = "fragment"
)

// DB is an open scene database.
type DB struct {
	path string
	db   *sql.DB
}

// Open opens an existing database.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, path)
		}
		return nil, err
	}
	return open(path)
}

// Create opens a database, creating the file and schema if needed.
func Create(path string) (*DB, error) {
	d, err := open(path)
	if err != nil {
		return nil, err
	}
	if _, err := d.db.Exec(schema); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("creating schema in %s: %w", path, err)
	}
	return d, nil
}

func open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &DB{path: path, db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// LoadScene reads the whole scene. Nodes stored with a zero radius get a
// bounding sphere computed from their vertices.
func (d *DB) LoadScene(ctx context.Context) (*scene.Scene, error) {
	vertices, err := d.loadVertices(ctx)
	if err != nil {
		return nil, err
	}

	sc := &scene.Scene{}
	if sc.Materials, err = d.loadMaterials(ctx); err != nil {
		return nil, err
	}
	if sc.Meshes, err = d.loadNodes(ctx, vertices, len(sc.Materials)); err != nil {
		return nil, err
	}
	if sc.Images, err = d.loadTextures(ctx); err != nil {
		return nil, err
	}

	logger.Info("scene loaded from database",
		zap.String("path", d.path),
		zap.Int("vertices", len(vertices)),
		zap.Int("meshes", len(sc.Meshes)),
		zap.Int("materials", len(sc.Materials)),
		zap.Int("textures", len(sc.Images)))
	return sc, nil
}

func (d *DB) loadVertices(ctx context.Context) ([]scene.Vertex, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT px, py, pz, nx, ny, nz, tu, tv FROM vertex ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading vertices: %w", err)
	}
	defer rows.Close()

	var vertices []scene.Vertex
	for rows.Next() {
		var v scene.Vertex
		if err := rows.Scan(
			&v.Position[0], &v.Position[1], &v.Position[2],
			&v.Normal[0], &v.Normal[1], &v.Normal[2],
			&v.TexCoord[0], &v.TexCoord[1],
		); err != nil {
			return nil, fmt.Errorf("loading vertices: %w", err)
		}
		vertices = append(vertices, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading vertices: %w", err)
	}
	return vertices, nil
}

func (d *DB) loadMaterials(ctx context.Context) ([]scene.Material, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT name, diffuse_r, diffuse_g, diffuse_b, diffuse_texname FROM material ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading materials: %w", err)
	}
	defer rows.Close()

	var materials []scene.Material
	for rows.Next() {
		var (
			name, texname sql.NullString
			r, g, b       sql.NullFloat64
		)
		if err := rows.Scan(&name, &r, &g, &b, &texname); err != nil {
			return nil, fmt.Errorf("loading materials: %w", err)
		}
		materials = append(materials, scene.Material{
			Name:           name.String,
			Diffuse:        [3]float32{float32(r.Float64), float32(g.Float64), float32(b.Float64)},
			DiffuseTexture: texname.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading materials: %w", err)
	}
	return materials, nil
}

func (d *DB) loadNodes(ctx context.Context, vertices []scene.Vertex, materials int) ([]*scene.Mesh, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name, material_id, start_position, end_position,
		radius, center_x, center_y, center_z FROM scene_node ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("loading scene nodes: %w", err)
	}
	defer rows.Close()

	var meshes []*scene.Mesh
	for rows.Next() {
		var (
			name       sql.NullString
			materialID sql.NullInt64
			start, end int
			radius     float32
			center     [3]float32
		)
		if err := rows.Scan(&name, &materialID, &start, &end, &radius, &center[0], &center[1], &center[2]); err != nil {
			return nil, fmt.Errorf("loading scene nodes: %w", err)
		}
		if start < 0 || end < start || end > len(vertices) {
			return nil, fmt.Errorf("%w: node %q spans vertices [%d, %d) of %d",
				scene.ErrInvalidScene, name.String, start, end, len(vertices))
		}
		if materialID.Int64 < 1 || int(materialID.Int64) > materials {
			return nil, fmt.Errorf("%w: node %q uses material id %d of %d",
				scene.ErrInvalidScene, name.String, materialID.Int64, materials)
		}

		verts := append([]scene.Vertex(nil), vertices[start:end]...)
		index := int(materialID.Int64) - 1
		if radius > 0 {
			meshes = append(meshes, scene.NewMeshWithBounds(name.String, index, verts, center, radius))
		} else {
			meshes = append(meshes, scene.NewMesh(name.String, index, verts))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading scene nodes: %w", err)
	}
	return meshes, nil
}

func (d *DB) loadTextures(ctx context.Context) ([]scene.ImageBlob, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT name, image FROM texture ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("loading textures: %w", err)
	}
	defer rows.Close()

	var images []scene.ImageBlob
	for rows.Next() {
		var img scene.ImageBlob
		if err := rows.Scan(&img.Name, &img.Data); err != nil {
			return nil, fmt.Errorf("loading textures: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading textures: %w", err)
	}
	return images, nil
}

// LoadShader returns every version of the named shader that has both a
// vertex and a fragment stage, lowest version first.
func (d *DB) LoadShader(ctx context.Context, name string) ([]shader.Source, error) {
	var id int64
	err := d.db.QueryRowContext(ctx, "SELECT id FROM shader WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrShaderNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading shader %q: %w", name, err)
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT version, type, source FROM shader_version WHERE shader_id = ? ORDER BY version", id)
	if err != nil {
		return nil, fmt.Errorf("loading shader %q: %w", name, err)
	}
	defer rows.Close()

	byVersion := make(map[int]*shader.Source)
	for rows.Next() {
		var (
			version     int
			stage, code string
		)
		if err := rows.Scan(&version, &stage, &code); err != nil {
			return nil, fmt.Errorf("loading shader %q: %w", name, err)
		}
		src, ok := byVersion[version]
		if !ok {
			src = &shader.Source{Name: name, Version: version}
			byVersion[version] = src
		}
		switch stage {
		case StageVertex:
			src.Vertex = code
		case StageFragment:
			src.Fragment = code
		default:
			logger.Warn("unknown shader stage", zap.String("shader", name), zap.String("type", stage))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading shader %q: %w", name, err)
	}

	var sources []shader.Source
	for _, src := range byVersion {
		if src.Vertex == "" || src.Fragment == "" {
			logger.Warn("incomplete shader version skipped",
				zap.String("shader", name), zap.Int("version", src.Version))
			continue
		}
		sources = append(sources, *src)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: %q has no complete versions", ErrShaderNotFound, name)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Version < sources[j].Version })
	return sources, nil
}

// SaveScene replaces the scene stored in the database. Mesh bounds and
// vertex ranges are written so LoadScene restores the same scene.
func (d *DB) SaveScene(ctx context.Context, sc *scene.Scene) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"vertex", "material", "scene_node", "texture"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM sqlite_sequence WHERE name IN ('vertex', 'material', 'scene_node')"); err != nil {
			return fmt.Errorf("resetting ids: %w", err)
		}

		for _, m := range sc.Materials {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO material(name, diffuse_r, diffuse_g, diffuse_b, diffuse_texname) VALUES (?, ?, ?, ?, ?)",
				m.Name, m.Diffuse[0], m.Diffuse[1], m.Diffuse[2], m.DiffuseTexture); err != nil {
				return fmt.Errorf("saving material %q: %w", m.Name, err)
			}
		}

		vstmt, err := tx.PrepareContext(ctx,
			"INSERT INTO vertex(px, py, pz, nx, ny, nz, tu, tv) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer vstmt.Close()

		position := 0
		for _, m := range sc.Meshes {
			for _, v := range m.Vertices {
				if _, err := vstmt.ExecContext(ctx,
					v.Position[0], v.Position[1], v.Position[2],
					v.Normal[0], v.Normal[1], v.Normal[2],
					v.TexCoord[0], v.TexCoord[1]); err != nil {
					return fmt.Errorf("saving vertices of %q: %w", m.Name, err)
				}
			}
			end := position + len(m.Vertices)
			if _, err := tx.ExecContext(ctx, `INSERT INTO scene_node(name, material_id, start_position,
				end_position, radius, center_x, center_y, center_z) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				m.Name, m.MaterialIndex+1, position, end,
				m.Radius, m.Center[0], m.Center[1], m.Center[2]); err != nil {
				return fmt.Errorf("saving node %q: %w", m.Name, err)
			}
			position = end
		}

		for _, img := range sc.Images {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO texture(name, image) VALUES (?, ?)", img.Name, img.Data); err != nil {
				return fmt.Errorf("saving texture %q: %w", img.Name, err)
			}
		}
		return nil
	})
}

// SaveShader stores sources under name, replacing versions already there.
func (d *DB) SaveShader(ctx context.Context, name string, sources []shader.Source) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO shader(name) VALUES (?)", name); err != nil {
			return fmt.Errorf("saving shader %q: %w", name, err)
		}
		var id int64
		if err := tx.QueryRowContext(ctx, "SELECT id FROM shader WHERE name = ?", name).Scan(&id); err != nil {
			return fmt.Errorf("saving shader %q: %w", name, err)
		}
		for _, src := range sources {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM shader_version WHERE shader_id = ? AND version = ?", id, src.Version); err != nil {
				return fmt.Errorf("saving shader %q: %w", name, err)
			}
			for _, stage := range []struct{ typ, code string }{
				{StageVertex, src.Vertex},
				{StageFragment, src.Fragment},
			} {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO shader_version(shader_id, version, type, source) VALUES (?, ?, ?, ?)",
					id, src.Version, stage.typ, stage.code); err != nil {
					return fmt.Errorf("saving shader %q: %w", name, err)
				}
			}
		}
		return nil
	})
}

func (d *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
