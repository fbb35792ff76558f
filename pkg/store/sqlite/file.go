package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/store"
)

const fileColumns = `id, owner_id, filename, folder, size, content_type, md5, object_key, download_count, created_at, updated_at`

func (s *SQLiteStore) CreateFile(ctx context.Context, file *depot.File) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file.ID, file.OwnerID, file.Filename, file.Folder, file.Size,
		file.ContentType, file.MD5, file.ObjectKey, file.DownloadCount,
		file.CreatedAt.UnixNano(), file.UpdatedAt.UnixNano(),
	)
	return translateError(err, file.ID)
}

func (s *SQLiteStore) GetFile(ctx context.Context, id string) (*depot.File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("file", id)
	}
	return file, err
}

func (s *SQLiteStore) UpdateFile(ctx context.Context, file *depot.File) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET owner_id = ?, filename = ?, folder = ?, size = ?,
		        content_type = ?, md5 = ?, object_key = ?, download_count = ?,
		        created_at = ?, updated_at = ?
		 WHERE id = ?`,
		file.OwnerID, file.Filename, file.Folder, file.Size,
		file.ContentType, file.MD5, file.ObjectKey, file.DownloadCount,
		file.CreatedAt.UnixNano(), file.UpdatedAt.UnixNano(),
		file.ID,
	)
	if err != nil {
		return translateError(err, file.ID)
	}
	return requireRow(res, "file", file.ID)
}

func (s *SQLiteStore) DeleteFile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return translateError(err, id)
	}
	return requireRow(res, "file", id)
}

func (s *SQLiteStore) ListFiles(ctx context.Context, filter store.FileFilter, page store.Page) ([]*depot.File, int, error) {
	page = page.Normalize()

	where, args := buildFileFilter(filter)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files`+where+
			` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	files := make([]*depot.File, 0, page.Size)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		files = append(files, file)
	}
	return files, total, rows.Err()
}

// buildFileFilter assembles the WHERE clause for ListFiles. The search
// term is matched case-insensitively against the filename, with LIKE
// metacharacters escaped so user input stays literal.
func buildFileFilter(filter store.FileFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.OwnerID != "" {
		conds = append(conds, `owner_id = ?`)
		args = append(args, filter.OwnerID)
	}
	if filter.Folder != "" {
		conds = append(conds, `folder = ?`)
		args = append(args, filter.Folder)
	}
	if filter.Search != "" {
		conds = append(conds, `LOWER(filename) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(filter.Search))+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *SQLiteStore) ListFolders(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT folder FROM files WHERE owner_id = ? ORDER BY folder`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []string
	for rows.Next() {
		var folder string
		if err := rows.Scan(&folder); err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	return folders, rows.Err()
}

func (s *SQLiteStore) IncrementDownloadCount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET download_count = download_count + 1 WHERE id = ?`, id)
	if err != nil {
		return translateError(err, id)
	}
	return requireRow(res, "file", id)
}

func (s *SQLiteStore) Stats(ctx context.Context, ownerID string) (store.FileStats, error) {
	var stats store.FileStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files WHERE owner_id = ?`,
		ownerID).Scan(&stats.Count, &stats.TotalBytes)
	return stats, err
}

func (s *SQLiteStore) ForEachObjectKey(ctx context.Context, fn func(key string) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT object_key FROM files`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanFile(row scanner) (*depot.File, error) {
	var (
		file               depot.File
		createdAt, updated int64
	)
	err := row.Scan(&file.ID, &file.OwnerID, &file.Filename, &file.Folder,
		&file.Size, &file.ContentType, &file.MD5, &file.ObjectKey,
		&file.DownloadCount, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	file.CreatedAt = time.Unix(0, createdAt)
	file.UpdatedAt = time.Unix(0, updated)
	return &file, nil
}
