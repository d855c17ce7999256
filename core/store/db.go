package store

import (
	"database/sql"
	"errors"
	"flag"
	"strconv"
	"strings"
	"time"

	"mspb-config/config"
	"mspb-config/core/utils"

	_ "modernc.org/sqlite"
)

// NewDB opens the configurations database with a bounded pool. Pool
// exhaustion blocks the caller until a connection frees or the connect
// timeout elapses; it never drops the request.
func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if driver == "" {
		switch {
		case strings.TrimSpace(cfg.DBURL) != "":
			driver = "postgres"
		case isTestRuntime() && strings.TrimSpace(cfg.DBPath) != "":
			driver = "sqlite"
		default:
			driver = "postgres"
		}
	}
	switch driver {
	case "postgres", "pg":
		if strings.TrimSpace(cfg.DBURL) == "" {
			return nil, errors.New("MSPB_DB_URL is required for postgres")
		}
		db, err := sql.Open(postgresDriverName, withConnectTimeout(cfg.DBURL, cfg.Pool.ConnectTimeout))
		if err != nil {
			if logger != nil {
				logger.Errorf("db open failed: %v", err)
			}
			return nil, err
		}
		applyPoolConfig(db, cfg.Pool)
		if logger != nil {
			logger.Printf("db open postgres (max conns %d)", cfg.Pool.MaxConns)
		}
		return db, nil
	case "sqlite":
		if !isTestRuntime() {
			return nil, errors.New("sqlite driver is supported only in go test runtime")
		}
		if strings.TrimSpace(cfg.DBPath) == "" {
			return nil, errors.New("DBPath is required for sqlite")
		}
		db, err := sql.Open("sqlite", cfg.DBPath)
		if err != nil {
			if logger != nil {
				logger.Errorf("db open failed: %v", err)
			}
			return nil, err
		}
		// sqlite serializes writers; a single connection avoids lock errors.
		db.SetMaxOpenConns(1)
		if logger != nil {
			logger.Printf("db open sqlite (test runtime)")
		}
		return db, nil
	default:
		return nil, errors.New("unsupported db driver: " + driver)
	}
}

// NewDirectoryDB opens the external user directory. When no separate
// directory URL is configured (tests, single-DB deployments) the
// configurations handle is shared.
func NewDirectoryDB(cfg *config.AppConfig, configDB *sql.DB, logger *utils.Logger) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DirectoryDBURL) == "" {
		return configDB, nil
	}
	db, err := sql.Open(postgresDriverName, withConnectTimeout(cfg.DirectoryDBURL, cfg.Pool.ConnectTimeout))
	if err != nil {
		if logger != nil {
			logger.Errorf("directory db open failed: %v", err)
		}
		return nil, err
	}
	applyPoolConfig(db, cfg.Pool)
	if logger != nil {
		logger.Printf("directory db open postgres (max conns %d)", cfg.Pool.MaxConns)
	}
	return db, nil
}

func applyPoolConfig(db *sql.DB, pool config.PoolConfig) {
	if pool.MaxConns > 0 {
		db.SetMaxOpenConns(pool.MaxConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.IdleTimeout > 0 {
		db.SetConnMaxIdleTime(pool.IdleTimeout)
	}
}

// withConnectTimeout threads the configured connect timeout into the DSN so
// dials against an unreachable server give up instead of hanging. An
// explicit connect_timeout in the DSN wins.
func withConnectTimeout(dsn string, timeout time.Duration) string {
	if timeout <= 0 || dsn == "" || strings.Contains(dsn, "connect_timeout") {
		return dsn
	}
	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "connect_timeout=" + strconv.Itoa(secs)
	}
	// Keyword/value form.
	return dsn + " connect_timeout=" + strconv.Itoa(secs)
}

func isTestRuntime() bool {
	return flag.Lookup("test.v") != nil
}
