package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chsnow/ride-watch/internal/models"

	"go.uber.org/zap"
)

// PostgresDevicesRepo 推送目标设备 PostgreSQL 仓库
type PostgresDevicesRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresDevicesRepo 创建设备仓库
func NewPostgresDevicesRepo(db *sql.DB, logger *zap.Logger) *PostgresDevicesRepo {
	return &PostgresDevicesRepo{
		db:     db,
		logger: logger,
	}
}

const deviceTargetColumns = `
	token,
	platform,
	active,
	invalid,
	disabled_reason,
	registered_at,
	last_updated
`

func scanDeviceTarget(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.DeviceTarget, error) {
	var target models.DeviceTarget
	var platform, disabledReason sql.NullString
	if err := scanner.Scan(
		&target.Token,
		&platform,
		&target.Active,
		&target.Invalid,
		&disabledReason,
		&target.RegisteredAt,
		&target.LastUpdated,
	); err != nil {
		return nil, err
	}
	if platform.Valid {
		target.Platform = platform.String
	}
	if disabledReason.Valid {
		target.DisabledReason = disabledReason.String
	}
	return &target, nil
}

// ListActive 读取所有 active=true 的设备
func (r *PostgresDevicesRepo) ListActive(ctx context.Context) ([]models.DeviceTarget, error) {
	query := `
		SELECT` + deviceTargetColumns + `
		FROM device_targets
		WHERE active = TRUE
		ORDER BY registered_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active device targets: %w", err)
	}
	defer rows.Close()

	var targets []models.DeviceTarget
	for rows.Next() {
		target, err := scanDeviceTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device target row: %w", err)
		}
		targets = append(targets, *target)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device target rows: %w", err)
	}

	return targets, nil
}

// List 分页读取设备列表
// includeInactive=false 时只返回 active=true 的设备
func (r *PostgresDevicesRepo) List(ctx context.Context, includeInactive bool, page, size int) ([]models.DeviceTarget, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	where := "TRUE"
	if !includeInactive {
		where = "active = TRUE"
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM device_targets WHERE ` + where
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count device targets: %w", err)
	}

	query := `
		SELECT` + deviceTargetColumns + `
		FROM device_targets
		WHERE ` + where + `
		ORDER BY registered_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list device targets: %w", err)
	}
	defer rows.Close()

	var targets []models.DeviceTarget
	for rows.Next() {
		target, err := scanDeviceTarget(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan device target row: %w", err)
		}
		targets = append(targets, *target)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate device target rows: %w", err)
	}

	return targets, total, nil
}

// Get 按 token 读取单个设备，不存在时返回 (nil, nil)
func (r *PostgresDevicesRepo) Get(ctx context.Context, token string) (*models.DeviceTarget, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}

	query := `
		SELECT` + deviceTargetColumns + `
		FROM device_targets
		WHERE token = $1
	`

	target, err := scanDeviceTarget(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get device target: %w", err)
	}

	return target, nil
}

// Register 按 token upsert
// 合并语义：platform 为空时不覆盖已有值；registered_at 只在首次插入时写入；
// 重新注册会恢复 active=true 并清除失效标记
func (r *PostgresDevicesRepo) Register(ctx context.Context, target models.DeviceTarget) error {
	if target.Token == "" {
		return fmt.Errorf("token is required")
	}

	query := `
		INSERT INTO device_targets (token, platform, active, invalid, disabled_reason, registered_at, last_updated)
		VALUES ($1, NULLIF($2, ''), TRUE, FALSE, NULL, NOW(), NOW())
		ON CONFLICT (token) DO UPDATE SET
			platform = COALESCE(NULLIF($2, ''), device_targets.platform),
			active = TRUE,
			invalid = FALSE,
			disabled_reason = NULL,
			last_updated = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, target.Token, target.Platform); err != nil {
		return fmt.Errorf("failed to register device target: %w", err)
	}

	r.logger.Debug("Device target registered",
		zap.String("token", target.Token),
		zap.String("platform", target.Platform))

	return nil
}

// Unregister 软删除：active=false，原因为用户注销
func (r *PostgresDevicesRepo) Unregister(ctx context.Context, token string) error {
	return r.deactivate(ctx, token, models.DisabledReasonUnregistered, false)
}

// MarkInvalid 软删除：active=false 且 invalid=true，原因由推送渠道提供
func (r *PostgresDevicesRepo) MarkInvalid(ctx context.Context, token, reason string) error {
	if reason == "" {
		reason = models.DisabledReasonInvalidToken
	}
	return r.deactivate(ctx, token, reason, true)
}

func (r *PostgresDevicesRepo) deactivate(ctx context.Context, token, reason string, invalid bool) error {
	if token == "" {
		return fmt.Errorf("token is required")
	}

	query := `
		UPDATE device_targets SET
			active = FALSE,
			invalid = invalid OR $2,
			disabled_reason = $3,
			last_updated = NOW()
		WHERE token = $1
	`

	result, err := r.db.ExecContext(ctx, query, token, invalid, reason)
	if err != nil {
		return fmt.Errorf("failed to deactivate device target: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("device target not found: token=%s", token)
	}

	r.logger.Info("Device target deactivated",
		zap.String("token", token),
		zap.String("reason", reason),
		zap.Bool("invalid", invalid))

	return nil
}
