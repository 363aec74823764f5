package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bonus-drops/internal/models"

	"github.com/jackc/pgx/v5"
)

var (
	ErrBonusCodeNotFound = errors.New("bonus code not found")
	ErrBonusCodeExists   = errors.New("bonus code already exists")
)

const bonusCodeColumns = `id, code, reward_amount, wagered_requirement, claims_count, expiry_duration,
	message_type, original_message, telegram_message_id, chat_id, created_at, expires_at,
	is_active, source`

type BonusCodeRepository struct {
	db *DB
}

func NewBonusCodeRepository(db *DB) *BonusCodeRepository {
	return &BonusCodeRepository{db: db}
}

// Create inserts b. Telegram records conflicting on (chat_id,
// telegram_message_id) and ids already present yield ErrBonusCodeExists.
func (r *BonusCodeRepository) Create(ctx context.Context, b *models.BonusCode) error {
	query := `
		INSERT INTO bonus_codes (` + bonusCodeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT DO NOTHING
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		b.ID, b.Code, b.RewardAmount, b.WageredRequirement, b.ClaimsCount, b.ExpiryDuration,
		string(b.MessageType), b.OriginalMessage, b.TelegramMessageID, b.ChatID, b.CreatedAt, b.ExpiresAt,
		b.IsActive, string(b.Source),
	)
	if err != nil {
		return fmt.Errorf("failed to insert bonus code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBonusCodeExists
	}
	return nil
}

func (r *BonusCodeRepository) GetByID(ctx context.Context, id string) (*models.BonusCode, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+bonusCodeColumns+` FROM bonus_codes WHERE id = $1`, id)
	return scanOne(row)
}

// GetByTelegramMessageID returns the record ingested from the given
// message, or nil when there is none.
func (r *BonusCodeRepository) GetByTelegramMessageID(ctx context.Context, chatID int64, messageID int) (*models.BonusCode, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+bonusCodeColumns+` FROM bonus_codes WHERE chat_id = $1 AND telegram_message_id = $2 LIMIT 1`,
		chatID, messageID,
	)
	b, err := scanOne(row)
	if errors.Is(err, ErrBonusCodeNotFound) {
		return nil, nil
	}
	return b, err
}

func (r *BonusCodeRepository) CodeExists(ctx context.Context, code string, chatID int64) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM bonus_codes WHERE code = $1 AND chat_id = $2)", code, chatID,
	).Scan(&exists)
	return exists, err
}

// List returns codes matching f, newest first.
func (r *BonusCodeRepository) List(ctx context.Context, f models.BonusCodeFilters) ([]models.BonusCode, error) {
	query, args := buildListQuery(f, time.Now())

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bonus codes: %w", err)
	}

	codes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.BonusCode, error) {
		b, err := scan(row)
		if err != nil {
			return models.BonusCode{}, err
		}
		return *b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan bonus codes: %w", err)
	}
	return codes, nil
}

func (r *BonusCodeRepository) Update(ctx context.Context, id string, u models.BonusCodeUpdate) error {
	query, args := buildUpdateQuery(id, u)
	if query == "" {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return nil
	}

	tag, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update bonus code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBonusCodeNotFound
	}
	return nil
}

func (r *BonusCodeRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM bonus_codes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete bonus code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBonusCodeNotFound
	}
	return nil
}

// DeactivateExpired flips is_active off for active codes whose expiry lies
// before now and returns how many were changed.
func (r *BonusCodeRepository) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE bonus_codes SET is_active = FALSE WHERE is_active AND expires_at IS NOT NULL AND expires_at < $1",
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired bonus codes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *BonusCodeRepository) Stats(ctx context.Context) (models.Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE message_type = $1),
			COUNT(*) FILTER (WHERE source = $2),
			COUNT(*) FILTER (WHERE source = $3)
		FROM bonus_codes
	`
	var s models.Stats
	err := r.db.Pool.QueryRow(ctx, query,
		string(models.MessageTypeVIP), string(models.SourceTelegram), string(models.SourceManual),
	).Scan(&s.Total, &s.Active, &s.VIP, &s.Telegram, &s.Manual)
	return s, err
}

func buildListQuery(f models.BonusCodeFilters, now time.Time) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.IsActive != nil {
		add("is_active = $%d", *f.IsActive)
	}
	if f.MessageType != "" {
		add("message_type = $%d", string(f.MessageType))
	}
	if f.Source != "" {
		add("source = $%d", string(f.Source))
	}
	if f.Expired != nil {
		if *f.Expired {
			add("(expires_at IS NOT NULL AND expires_at < $%d)", now)
		} else {
			add("(expires_at IS NULL OR expires_at >= $%d)", now)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + bonusCodeColumns + " FROM bonus_codes")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	return sb.String(), args
}

func buildUpdateQuery(id string, u models.BonusCodeUpdate) (string, []any) {
	if u.Empty() {
		return "", nil
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, arg any) {
		args = append(args, arg)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.IsActive != nil {
		set("is_active", *u.IsActive)
	}
	if u.ExpiresAt != nil {
		set("expires_at", *u.ExpiresAt)
	}
	if u.RewardAmount != nil {
		set("reward_amount", *u.RewardAmount)
	}
	if u.WageredRequirement != nil {
		set("wagered_requirement", *u.WageredRequirement)
	}
	if u.ClaimsCount != nil {
		set("claims_count", *u.ClaimsCount)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE bonus_codes SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return query, args
}

func scanOne(row pgx.Row) (*models.BonusCode, error) {
	b, err := scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBonusCodeNotFound
		}
		return nil, err
	}
	return b, nil
}

func scan(row pgx.Row) (*models.BonusCode, error) {
	var (
		b           models.BonusCode
		messageType string
		source      string
	)
	err := row.Scan(
		&b.ID, &b.Code, &b.RewardAmount, &b.WageredRequirement, &b.ClaimsCount, &b.ExpiryDuration,
		&messageType, &b.OriginalMessage, &b.TelegramMessageID, &b.ChatID, &b.CreatedAt, &b.ExpiresAt,
		&b.IsActive, &source,
	)
	if err != nil {
		return nil, err
	}
	b.MessageType = models.MessageType(messageType)
	b.Source = models.Source(source)
	return &b, nil
}
