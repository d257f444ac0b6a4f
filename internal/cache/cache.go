// Package cache provee el almacenamiento efímero con TTL sobre el que viven los
// flujos, los marcadores de sesión y las ventanas de rate limit.
//
// Soporta:
//   - Memory (in-process, go-cache; desarrollo y single-node)
//   - Redis (distribuido, producción)
//
// Las operaciones de una sola clave son atómicas en ambos backends. Take es la
// primitiva que resuelve carreras de verificación: el primero se lleva el valor,
// el segundo ve ErrNotFound.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda (sobrescribe) un valor. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX guarda sólo si la key no existe. Devuelve true si la escribió.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Take obtiene y elimina atómicamente. Retorna ErrNotFound si no existe.
	Take(ctx context.Context, key string) (string, error)

	// Delete elimina una key. Borrar una key inexistente no es error.
	Delete(ctx context.Context, key string) error

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error

	// Stats retorna estadísticas del cache.
	Stats(ctx context.Context) (Stats, error)
}

// Stats contiene estadísticas del cache.
type Stats struct {
	Driver     string
	Keys       int64
	UsedMemory string
	Hits       int64
	Misses     int64
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver          string // "memory" | "redis"
	Addr            string // host:port (redis)
	Password        string
	DB              int
	Prefix          string        // Prefijo para todas las keys
	CleanupInterval time.Duration // memory
}

var ErrNotFound = errors.New("cache: key not found")

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix, cfg.CleanupInterval), nil
	default:
		return nil, errors.New("cache: unknown driver " + cfg.Driver)
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
