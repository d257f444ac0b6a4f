package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/stagegate/internal/cache"
)

// backendCollector expone gauges del pool de Postgres y del cache efímero.
type backendCollector struct {
	pool  func() *pgxpool.Pool
	cache cache.Client

	pgAcquired *prometheus.Desc
	pgIdle     *prometheus.Desc
	pgTotal    *prometheus.Desc
	cacheKeys  *prometheus.Desc
	cacheUp    *prometheus.Desc
}

// NewBackendCollector: pool puede devolver nil (driver memory).
func NewBackendCollector(pool func() *pgxpool.Pool, c cache.Client) prometheus.Collector {
	return &backendCollector{
		pool:       pool,
		cache:      c,
		pgAcquired: prometheus.NewDesc("pg_pool_acquired", "Conexiones adquiridas", nil, nil),
		pgIdle:     prometheus.NewDesc("pg_pool_idle", "Conexiones inactivas", nil, nil),
		pgTotal:    prometheus.NewDesc("pg_pool_total", "Conexiones totales", nil, nil),
		cacheKeys:  prometheus.NewDesc("stagegate_cache_keys", "Keys vivas en el cache efímero", []string{"driver"}, nil),
		cacheUp:    prometheus.NewDesc("stagegate_cache_up", "1 si el cache responde", []string{"driver"}, nil),
	}
}

func (c *backendCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pgAcquired
	ch <- c.pgIdle
	ch <- c.pgTotal
	ch <- c.cacheKeys
	ch <- c.cacheUp
}

func (c *backendCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool != nil {
		if pool := c.pool(); pool != nil {
			stat := pool.Stat()
			ch <- prometheus.MustNewConstMetric(c.pgAcquired, prometheus.GaugeValue, float64(stat.AcquiredConns()))
			ch <- prometheus.MustNewConstMetric(c.pgIdle, prometheus.GaugeValue, float64(stat.IdleConns()))
			ch <- prometheus.MustNewConstMetric(c.pgTotal, prometheus.GaugeValue, float64(stat.TotalConns()))
		}
	}
	if c.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		st, err := c.cache.Stats(ctx)
		up := 1.0
		if err != nil {
			up = 0
		}
		driver := st.Driver
		if driver == "" {
			driver = "unknown"
		}
		ch <- prometheus.MustNewConstMetric(c.cacheUp, prometheus.GaugeValue, up, driver)
		if err == nil {
			ch <- prometheus.MustNewConstMetric(c.cacheKeys, prometheus.GaugeValue, float64(st.Keys), driver)
		}
	}
}
