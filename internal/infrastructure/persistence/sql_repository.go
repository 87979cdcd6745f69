package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"ifsync/internal/domain/entities"
	"ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
	"ifsync/internal/infrastructure/config"
	"ifsync/internal/infrastructure/metrics"
)

// Supported database drivers
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

var schemas = map[string]string{
	DriverMySQL: `
		CREATE TABLE IF NOT EXISTS desired_interface (
			id INT AUTO_INCREMENT PRIMARY KEY,
			node_name VARCHAR(255) NOT NULL,
			name VARCHAR(15) NOT NULL DEFAULT '',
			descriptor TEXT NOT NULL,
			status INT NOT NULL DEFAULT 0,
			modified_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_desired_interface_node (node_name, status)
		)`,
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS desired_interface (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			node_name TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			descriptor TEXT NOT NULL,
			status INTEGER NOT NULL DEFAULT 0,
			modified_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
}

const selectColumns = `SELECT id, node_name, name, descriptor, status FROM desired_interface`

// batchLimit bounds the records handled in one polling cycle
const batchLimit = 10

// Open connects to the database named by cfg and applies the pool settings
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	var dsn string
	switch cfg.Driver {
	case DriverMySQL:
		dsn = mysqlDSN(cfg)
	case DriverSQLite:
		dsn = cfg.Path
	default:
		return nil, errors.NewOtherError("unsupported database driver "+cfg.Driver, nil)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, errors.NewOtherError("failed to open database", err)
	}
	if cfg.Driver == DriverSQLite {
		// one writer
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewOtherError("failed to connect to database", err)
	}
	return db, nil
}

func mysqlDSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Host + ":" + cfg.Port
	mc.DBName = cfg.Database
	mc.ParseTime = true
	return mc.FormatDSN()
}

// SQLRepository is the DesiredInterfaceRepository over MySQL or SQLite
type SQLRepository struct {
	db     *sql.DB
	driver string
	logger *logrus.Logger
}

var _ interfaces.DesiredInterfaceRepository = (*SQLRepository)(nil)

func NewSQLRepository(db *sql.DB, driver string, logger *logrus.Logger) *SQLRepository {
	return &SQLRepository{
		db:     db,
		driver: driver,
		logger: logger,
	}
}

// EnsureSchema creates the desired_interface table when it is missing
func (r *SQLRepository) EnsureSchema(ctx context.Context) error {
	ddl, ok := schemas[r.driver]
	if !ok {
		return errors.NewOtherError("unsupported database driver "+r.driver, nil)
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return errors.NewOtherError("failed to create schema", err)
	}
	return nil
}

// GetPendingInterfaces returns records of a node waiting to be defined
func (r *SQLRepository) GetPendingInterfaces(ctx context.Context, nodeName string) ([]entities.DesiredInterface, error) {
	return r.list(ctx, "get_pending", nodeName, entities.StatusPending)
}

// GetDeletingInterfaces returns records of a node marked for removal
func (r *SQLRepository) GetDeletingInterfaces(ctx context.Context, nodeName string) ([]entities.DesiredInterface, error) {
	return r.list(ctx, "get_deleting", nodeName, entities.StatusDeleting)
}

func (r *SQLRepository) list(ctx context.Context, queryType, nodeName string, status entities.InterfaceStatus) ([]entities.DesiredInterface, error) {
	defer observe(queryType, time.Now())

	query := selectColumns + `
		WHERE node_name = ? AND status = ?
		ORDER BY id
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, nodeName, int(status), batchLimit)
	if err != nil {
		return nil, errors.NewOtherError("database query failed", err)
	}
	defer rows.Close()

	var records []entities.DesiredInterface
	for rows.Next() {
		record, err := scan(rows)
		if err != nil {
			r.logger.WithError(err).Error("Failed to scan row")
			continue
		}
		records = append(records, *record)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.NewOtherError("failed to read query results", err)
	}
	return records, nil
}

// UpdateInterfaceStatus sets the status of a record
func (r *SQLRepository) UpdateInterfaceStatus(ctx context.Context, id int, status entities.InterfaceStatus) error {
	defer observe("update_status", time.Now())

	query := `UPDATE desired_interface SET status = ?, modified_at = CURRENT_TIMESTAMP WHERE id = ?`
	if err := r.update(ctx, query, id, int(status), id); err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"interface_id": id,
		"status":       status,
	}).Info("Interface status updated")
	return nil
}

// UpdateInterfaceName records the canonical name assigned by define
func (r *SQLRepository) UpdateInterfaceName(ctx context.Context, id int, name string) error {
	defer observe("update_name", time.Now())

	query := `UPDATE desired_interface SET name = ?, modified_at = CURRENT_TIMESTAMP WHERE id = ?`
	return r.update(ctx, query, id, name, id)
}

func (r *SQLRepository) update(ctx context.Context, query string, id int, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.NewOtherError("update failed", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewOtherError("failed to check affected rows", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("desired interface not found: ID=%d", id))
	}
	return nil
}

// GetInterfaceByID returns one record
func (r *SQLRepository) GetInterfaceByID(ctx context.Context, id int) (*entities.DesiredInterface, error) {
	defer observe("get_by_id", time.Now())

	record, err := scan(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("desired interface not found: ID=%d", id))
	}
	if err != nil {
		return nil, errors.NewOtherError("database query failed", err)
	}
	return record, nil
}

// CreateInterface inserts a record and fills in its ID
func (r *SQLRepository) CreateInterface(ctx context.Context, iface *entities.DesiredInterface) error {
	defer observe("create", time.Now())

	if err := iface.Validate(); err != nil {
		return errors.NewOtherError("invalid desired interface", err)
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO desired_interface (node_name, name, descriptor, status) VALUES (?, ?, ?, ?)`,
		iface.NodeName, iface.Name, iface.Descriptor, int(iface.Status))
	if err != nil {
		return errors.NewOtherError("insert failed", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return errors.NewOtherError("failed to read inserted id", err)
	}
	iface.ID = int(id)
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(row scanner) (*entities.DesiredInterface, error) {
	var record entities.DesiredInterface
	var status int
	if err := row.Scan(&record.ID, &record.NodeName, &record.Name, &record.Descriptor, &status); err != nil {
		return nil, err
	}
	record.Status = entities.InterfaceStatus(status)
	return &record, nil
}

func observe(queryType string, start time.Time) {
	metrics.RecordDBQuery(queryType, time.Since(start).Seconds())
}
