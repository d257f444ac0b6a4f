package pg

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/stagegate/internal/observability/logger"
)

// Direction de una migración.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ListMigrations devuelve los archivos *_<dir>.sql en orden de aplicación:
// ascendente para up, descendente para down. steps > 0 limita la cantidad.
func ListMigrations(fsys fs.FS, dir string, d Direction, steps int) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	suffix := "_" + string(d) + ".sql"
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, path.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	if d == Down {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if steps > 0 && steps < len(out) {
		out = out[:steps]
	}
	return out, nil
}

// Migrate aplica las migraciones en una sola pasada. Devuelve cuántas aplicó.
func (s *Store) Migrate(ctx context.Context, fsys fs.FS, dir string, d Direction, steps int) (int, error) {
	files, err := ListMigrations(fsys, dir, d, steps)
	if err != nil {
		return 0, fmt.Errorf("pg: list migrations: %w", err)
	}
	log := logger.L().With(logger.Component("migrate"))
	for i, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return i, fmt.Errorf("pg: read %s: %w", f, err)
		}
		start := time.Now()
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return i, fmt.Errorf("pg: exec %s: %w", f, err)
		}
		log.Info("migration_applied", zap.String("file", path.Base(f)), logger.DurationMs(time.Since(start)))
	}
	return len(files), nil
}
