package query

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"github.com/sitecraft/sitecraft/pkg/config"
	"github.com/sitecraft/sitecraft/pkg/logutils"
)

var (
	once     sync.Once
	instance *gorm.DB
)

// GetDB returns the singleton instance of the database connection.
func GetDB() *gorm.DB {
	once.Do(func() {
		db, err := Open(config.GetConfig())
		if err != nil {
			panic(err)
		}
		instance = db
	})
	return instance
}

// DSN builds the primary postgres DSN from the config.
func DSN(cfg *config.Config) string {
	pg := cfg.Postgres
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		pg.Host, pg.User, pg.Password, pg.DBName, pg.Port, pg.SSLMode, pg.TimeZone)
}

// Open connects to postgres and registers read replicas when configured.
func Open(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if len(cfg.Postgres.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.Postgres.Replicas))
		for _, dsn := range cfg.Postgres.Replicas {
			replicas = append(replicas, postgres.Open(dsn))
		}
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return nil, fmt.Errorf("register read replicas: %w", err)
		}
		logutils.Log.Infof("Registered %d postgres read replicas", len(replicas))
	}

	maxIdleConns := 5
	maxOpenConns := 10
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logutils.Log.Info("Postgres init success!")
	return db, nil
}
