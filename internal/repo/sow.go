package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

const sowColumns = `project_id,version,content,provider,generated_at`

func scanSOW(scan func(dest ...any) error) (domain.SOW, error) {
	var s domain.SOW
	err := scan(&s.ProjectID, &s.Version, &s.Content, &s.Provider, &s.GeneratedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

// MaxSOWVersionTx returns 0 when the project has no documents yet.
func (r Repo) MaxSOWVersionTx(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version),0) FROM sow_documents WHERE project_id=?`, projectID)
	var v int
	err := row.Scan(&v)
	return v, err
}

func (r Repo) InsertSOWTx(ctx context.Context, tx *sql.Tx, s domain.SOW) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sow_documents(`+sowColumns+`) VALUES (?,?,?,?,?)`,
		s.ProjectID, s.Version, s.Content, s.Provider, s.GeneratedAt)
	return err
}

func (r Repo) GetSOW(ctx context.Context, projectID string, version int) (domain.SOW, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+sowColumns+` FROM sow_documents WHERE project_id=? AND version=?`, projectID, version)
	return scanSOW(row.Scan)
}

func (r Repo) GetLatestSOW(ctx context.Context, projectID string) (domain.SOW, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+sowColumns+` FROM sow_documents WHERE project_id=? ORDER BY version DESC LIMIT 1`, projectID)
	return scanSOW(row.Scan)
}

func (r Repo) ListSOWVersions(ctx context.Context, projectID string) ([]domain.SOW, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+sowColumns+` FROM sow_documents WHERE project_id=? ORDER BY version ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SOW
	for rows.Next() {
		s, err := scanSOW(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
