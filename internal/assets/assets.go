// Package assets loads scenes and shader sources from disk and caches
// decoded textures.
package assets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/quick3d/internal/engine/shader"
	"github.com/Faultbox/quick3d/internal/logger"
	"github.com/Faultbox/quick3d/internal/scene"
	"github.com/Faultbox/quick3d/internal/scenedb"
)

// IsDatabase reports whether path names an SQLite scene database.
func IsDatabase(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// LoadScene loads a scene from an SQLite database or a Q3D file (raw or
// zlib-compressed), chosen by extension.
func LoadScene(ctx context.Context, path string) (*scene.Scene, error) {
	if !IsDatabase(path) {
		return scene.LoadFile(path)
	}

	db, err := scenedb.Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	sc, err := db.LoadScene(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return sc, nil
}

// SaveScene writes a scene to a database or a Q3D file by extension. Q3D
// output is compressed when compress is set or the name ends in ".gz".
func SaveScene(ctx context.Context, sc *scene.Scene, path string, compress bool) error {
	if !IsDatabase(path) {
		return sc.SaveFile(path, compress || strings.EqualFold(filepath.Ext(path), ".gz"))
	}

	db, err := scenedb.Create(path)
	if err != nil {
		return err
	}
	if err := db.SaveScene(ctx, sc); err != nil {
		_ = db.Close()
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return db.Close()
}

// LoadShaderSources returns the named shader from the database at dbPath.
// Without a database or name it returns the built-in shader. A database
// that lacks the shader also falls back to the built-in one.
func LoadShaderSources(ctx context.Context, dbPath, name string) ([]shader.Source, error) {
	if dbPath == "" || name == "" || name == shader.DefaultName {
		return shader.Default(), nil
	}

	db, err := scenedb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	sources, err := db.LoadShader(ctx, name)
	if errors.Is(err, scenedb.ErrShaderNotFound) {
		logger.Warn("shader not in database, using built-in shader",
			zap.String("shader", name),
			zap.String("database", dbPath))
		return shader.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return sources, nil
}
