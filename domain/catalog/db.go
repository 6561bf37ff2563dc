package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig selects and tunes the store backend.
type DBConfig struct {
	Driver  string // sqlite or postgres
	DSN     string
	Timeout time.Duration
	LogSQL  bool
}

// Open connects to the configured database.
func Open(cfg DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	level := logger.Warn
	if cfg.LogSQL {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the catalog tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Category{}, &Product{}, &Variant{}, &Cart{}, &CartItem{}, &Review{}); err != nil {
		return fmt.Errorf("failed to migrate catalog tables: %w", err)
	}
	return nil
}

// isUniqueViolation recognizes unique-constraint failures from postgres
// (SQLSTATE 23505) and sqlite.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// duplicateField names the column behind a unique violation as well as the
// driver message allows.
func duplicateField(err error) string {
	msg := err.Error()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		msg = pgErr.ConstraintName + " " + pgErr.Detail
	}
	switch {
	case strings.Contains(msg, "product_code"):
		return "productCode"
	case strings.Contains(msg, "slug"):
		return "slug"
	case strings.Contains(msg, "name"):
		return "name"
	case strings.Contains(msg, "user_id"):
		return "user"
	default:
		return "identifier"
	}
}

// translate maps a gorm error onto the catalog taxonomy.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.As(err, new(*Error)):
		return err
	case isUniqueViolation(err):
		return DuplicateIdentifier(duplicateField(err), err)
	default:
		return StoreUnavailable(op, err)
	}
}

// notFoundOr maps gorm.ErrRecordNotFound to NOT_FOUND for resource.
func notFoundOr(resource, op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(resource)
	}
	return translate(op, err)
}

// Store is the gorm implementation of the catalog store contracts.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewStore creates a store. A zero timeout disables per-call deadlines.
func NewStore(db *gorm.DB, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// conn returns a session bound to ctx with the per-call timeout applied.
func (s *Store) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.timeout <= 0 {
		return s.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// likePattern builds a lower-cased substring pattern with LIKE wildcards
// escaped. Use with "LIKE ? ESCAPE '\'".
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}
