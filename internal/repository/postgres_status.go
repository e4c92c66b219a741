package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chsnow/ride-watch/internal/models"

	"go.uber.org/zap"
)

// PostgresStatusRepo 景点状态 PostgreSQL 仓库
type PostgresStatusRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStatusRepo 创建景点状态仓库
func NewPostgresStatusRepo(db *sql.DB, logger *zap.Logger) *PostgresStatusRepo {
	return &PostgresStatusRepo{
		db:     db,
		logger: logger,
	}
}

// ListAll 全量读取所有状态记录（缓存预热用）
func (r *PostgresStatusRepo) ListAll(ctx context.Context) ([]models.RideStatusRecord, error) {
	query := `
		SELECT
			ride_id,
			ride_name,
			status,
			updated_at
		FROM ride_status
		ORDER BY ride_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ride status records: %w", err)
	}
	defer rows.Close()

	var records []models.RideStatusRecord
	for rows.Next() {
		var record models.RideStatusRecord
		var rideName sql.NullString
		if err := rows.Scan(
			&record.RideID,
			&rideName,
			&record.Status,
			&record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ride status row: %w", err)
		}
		if rideName.Valid {
			record.RideName = rideName.String
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ride status rows: %w", err)
	}

	return records, nil
}

// Get 按 ride_id 读取单条记录，不存在时返回 (nil, nil)
func (r *PostgresStatusRepo) Get(ctx context.Context, rideID string) (*models.RideStatusRecord, error) {
	if rideID == "" {
		return nil, fmt.Errorf("ride_id is required")
	}

	query := `
		SELECT
			ride_id,
			ride_name,
			status,
			updated_at
		FROM ride_status
		WHERE ride_id = $1
	`

	var record models.RideStatusRecord
	var rideName sql.NullString
	err := r.db.QueryRowContext(ctx, query, rideID).Scan(
		&record.RideID,
		&rideName,
		&record.Status,
		&record.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ride status: %w", err)
	}
	if rideName.Valid {
		record.RideName = rideName.String
	}

	return &record, nil
}

// Upsert 按 ride_id 写入或更新记录
func (r *PostgresStatusRepo) Upsert(ctx context.Context, record *models.RideStatusRecord) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if record.RideID == "" {
		return fmt.Errorf("ride_id is required")
	}

	query := `
		INSERT INTO ride_status (ride_id, ride_name, status, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ride_id) DO UPDATE SET
			ride_name = EXCLUDED.ride_name,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query,
		record.RideID,
		record.RideName,
		record.Status,
		record.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert ride status: %w", err)
	}

	r.logger.Debug("Ride status persisted",
		zap.String("ride_id", record.RideID),
		zap.String("status", record.Status))

	return nil
}
