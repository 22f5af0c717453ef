package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	log "github.com/sirupsen/logrus"

	"crashgame/internal/ports"
)

var ErrRoundNotFound = errors.New("round not found")

// Service is the Postgres round archive.
type Service interface {
	// Health returns a map of health status information.
	Health() map[string]string

	SaveRound(ctx context.Context, rec ports.RoundRecord) error
	GetRound(ctx context.Context, roundID string) (ports.RoundRecord, error)

	// Close terminates the connection pool.
	Close() error
}

type Config struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
}

func (c Config) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Schema)
}

type service struct {
	pool *pgxpool.Pool
}

var (
	database   = getEnv("DB_DATABASE", "crashdb")
	password   = getEnv("DB_PASSWORD", "postgres")
	username   = getEnv("DB_USERNAME", "postgres")
	port       = getEnv("DB_PORT", "5432")
	host       = getEnv("DB_HOST", "localhost")
	schema     = getEnv("DB_SCHEMA", "public")
	dbInstance *service
)

// New returns the shared archive built from the DB_* environment.
func New() Service {
	if dbInstance != nil {
		return dbInstance
	}

	svc, err := NewWithConfig(context.Background(), envConfig())
	if err != nil {
		log.WithField("component", "database").Fatal(err)
	}
	dbInstance = svc.(*service)
	return dbInstance
}

func NewWithConfig(ctx context.Context, cfg Config) (Service, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(log.Fields{
		"component": "database",
		"host":      cfg.Host,
		"database":  cfg.Database,
	}).Info("connected to postgres")

	return &service{pool: pool}, nil
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.WithField("component", "database").WithError(err).Error("database health check failed")
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	poolStats := s.pool.Stat()
	stats["open_connections"] = strconv.Itoa(int(poolStats.TotalConns()))
	stats["in_use"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["idle"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["wait_count"] = strconv.FormatInt(poolStats.EmptyAcquireCount(), 10)
	stats["wait_duration"] = poolStats.AcquireDuration().String()
	stats["max_lifetime_closed"] = strconv.FormatInt(poolStats.MaxLifetimeDestroyCount(), 10)

	if poolStats.AcquiredConns() > 20 {
		stats["message"] = "The database is experiencing heavy load."
	}

	return stats
}

const insertRound = `
INSERT INTO rounds (
	round_id, hashed_seed, server_seed, client_seed, nonce, crash_point,
	bet_count, won_count, wagered_cents, paid_cents, started_at, crashed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (round_id) DO NOTHING`

// SaveRound archives a crashed round. Saving the same round twice is a
// no-op.
func (s *service) SaveRound(ctx context.Context, rec ports.RoundRecord) error {
	_, err := s.pool.Exec(ctx, insertRound,
		rec.RoundID, rec.HashedSeed, rec.ServerSeed, rec.ClientSeed, int64(rec.Nonce), rec.CrashPoint,
		rec.BetCount, rec.WonCount, rec.WageredCents, rec.PaidCents, rec.StartedAt, rec.CrashedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save round %s: %w", rec.RoundID, err)
	}
	return nil
}

const selectRound = `
SELECT round_id, hashed_seed, server_seed, client_seed, nonce, crash_point,
	bet_count, won_count, wagered_cents, paid_cents, started_at, crashed_at
FROM rounds WHERE round_id = $1`

func (s *service) GetRound(ctx context.Context, roundID string) (ports.RoundRecord, error) {
	var (
		rec   ports.RoundRecord
		nonce int64
	)
	err := s.pool.QueryRow(ctx, selectRound, roundID).Scan(
		&rec.RoundID, &rec.HashedSeed, &rec.ServerSeed, &rec.ClientSeed, &nonce, &rec.CrashPoint,
		&rec.BetCount, &rec.WonCount, &rec.WageredCents, &rec.PaidCents, &rec.StartedAt, &rec.CrashedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.RoundRecord{}, ErrRoundNotFound
	}
	if err != nil {
		return ports.RoundRecord{}, fmt.Errorf("failed to load round %s: %w", roundID, err)
	}
	rec.Nonce = uint64(nonce)
	return rec, nil
}

func (s *service) Close() error {
	log.WithFields(log.Fields{
		"component": "database",
		"database":  database,
	}).Info("disconnected from database")
	s.pool.Close()
	if dbInstance == s {
		dbInstance = nil
	}
	return nil
}

func envConfig() Config {
	return Config{
		Host:     host,
		Port:     port,
		Database: database,
		Username: username,
		Password: password,
		Schema:   schema,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
