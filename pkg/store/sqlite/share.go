package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/store"
)

const shareColumns = `id, file_id, owner_id, share_type, code_hash, expires_at, access_count, created_at, updated_at`

func (s *SQLiteStore) CreateShare(ctx context.Context, share *depot.Share) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shares (`+shareColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		share.ID, share.FileID, share.OwnerID, string(share.Type), share.CodeHash,
		nullableTime(share.ExpiresAt), share.AccessCount,
		share.CreatedAt.UnixNano(), share.UpdatedAt.UnixNano(),
	)
	return translateError(err, share.FileID)
}

func (s *SQLiteStore) GetShare(ctx context.Context, id string) (*depot.Share, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE id = ?`, id)
	share, err := scanShare(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("share", id)
	}
	return share, err
}

func (s *SQLiteStore) GetShareByFileID(ctx context.Context, fileID string) (*depot.Share, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE file_id = ?`, fileID)
	share, err := scanShare(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("share", fileID)
	}
	return share, err
}

func (s *SQLiteStore) UpdateShare(ctx context.Context, share *depot.Share) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE shares SET file_id = ?, owner_id = ?, share_type = ?, code_hash = ?,
		        expires_at = ?, access_count = ?, created_at = ?, updated_at = ?
		 WHERE id = ?`,
		share.FileID, share.OwnerID, string(share.Type), share.CodeHash,
		nullableTime(share.ExpiresAt), share.AccessCount,
		share.CreatedAt.UnixNano(), share.UpdatedAt.UnixNano(),
		share.ID,
	)
	if err != nil {
		return translateError(err, share.ID)
	}
	return requireRow(res, "share", share.ID)
}

func (s *SQLiteStore) DeleteShare(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shares WHERE id = ?`, id)
	if err != nil {
		return translateError(err, id)
	}
	return requireRow(res, "share", id)
}

func (s *SQLiteStore) DeleteShareByFileID(ctx context.Context, fileID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM shares WHERE file_id = ?`, fileID)
	return translateError(err, fileID)
}

func (s *SQLiteStore) ListSharesByOwner(ctx context.Context, ownerID string, page store.Page) ([]*depot.Share, int, error) {
	page = page.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shares WHERE owner_id = ?`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		ownerID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	shares := make([]*depot.Share, 0, page.Size)
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, 0, err
		}
		shares = append(shares, share)
	}
	return shares, total, rows.Err()
}

func (s *SQLiteStore) IncrementAccessCount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE shares SET access_count = access_count + 1 WHERE id = ?`, id)
	if err != nil {
		return translateError(err, id)
	}
	return requireRow(res, "share", id)
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM shares WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		before.UnixNano())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanShare(row scanner) (*depot.Share, error) {
	var (
		share              depot.Share
		shareType          string
		expiresAt          sql.NullInt64
		createdAt, updated int64
	)
	err := row.Scan(&share.ID, &share.FileID, &share.OwnerID, &shareType,
		&share.CodeHash, &expiresAt, &share.AccessCount, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	share.Type = depot.ShareType(shareType)
	if expiresAt.Valid {
		t := time.Unix(0, expiresAt.Int64)
		share.ExpiresAt = &t
	}
	share.CreatedAt = time.Unix(0, createdAt)
	share.UpdatedAt = time.Unix(0, updated)
	return &share, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}
