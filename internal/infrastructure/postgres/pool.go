package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jhoicas/invorya-verifactu/pkg/config"
)

// Tiempo máximo esperando a que PostgreSQL acepte conexiones al arrancar.
const connectWait = 30 * time.Second

// NewPool abre el pool y espera a que la base de datos responda. appName se publica como
// application_name para identificar las sesiones en pg_stat_activity.
func NewPool(ctx context.Context, cfg config.DBConfig, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := newPoolConfig(cfg, appName)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("crear pool: %w", err)
	}

	wait := backoff.NewExponentialBackOff()
	wait.InitialInterval = 500 * time.Millisecond
	wait.MaxElapsedTime = connectWait
	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pool.Ping(pingCtx)
	}
	if err := backoff.Retry(ping, backoff.WithContext(wait, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}
	return pool, nil
}

func newPoolConfig(cfg config.DBConfig, appName string) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	// Cada emisión retiene una conexión mientras espera el bloqueo de la serie.
	poolConfig.MaxConns = 25
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	params := poolConfig.ConnConfig.RuntimeParams
	if appName != "" {
		params["application_name"] = appName
	}
	// Las marcas de tiempo de la cadena se guardan y leen siempre en UTC.
	params["timezone"] = "UTC"

	poolConfig.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	return poolConfig, nil
}
