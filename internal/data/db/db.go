package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/helixmap/biograph-backend/internal/platform/envutil"
	"github.com/helixmap/biograph-backend/internal/platform/logger"
	"github.com/helixmap/biograph-backend/internal/types"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

// New opens the durable store. Postgres when POSTGRES_HOST is set, otherwise
// a local sqlite file so development and tests need no external database.
func New(log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "DBService")

	host := envutil.Str("POSTGRES_HOST", "")
	var (
		gdb *gorm.DB
		err error
	)
	if host != "" {
		port := envutil.Str("POSTGRES_PORT", "5432")
		user := envutil.Str("POSTGRES_USER", "postgres")
		password := envutil.Str("POSTGRES_PASSWORD", "")
		name := envutil.Str("POSTGRES_NAME", "biograph")
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
		gdb, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
		})
	} else {
		path := envutil.Str("SQLITE_PATH", "biograph.db")
		gdb, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
	}
	if err != nil {
		serviceLog.Error("failed to connect to database", "error", err)
		return nil, fmt.Errorf("db: connect: %w", err)
	}

	return &Service{db: gdb, log: serviceLog}, nil
}

// NewSQLite opens a throwaway sqlite database at path. Used by tests.
func NewSQLite(log *logger.Logger, path string) (*Service, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("db: sqlite %s: %w", path, err)
	}
	return &Service{db: gdb, log: log.With("service", "DBService")}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) AutoMigrateAll() error {
	s.log.Info("migrating graph tables")
	if err := s.db.AutoMigrate(
		&types.Node{},
		&types.Edge{},
		&types.Evidence{},
	); err != nil {
		s.log.Error("auto migration failed", "error", err)
		return err
	}
	return nil
}
