package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"gigline/internal/domain"
)

const reviewColumns = `id,project_id,order_id,reviewer_id,reviewee_id,rating,comment,created_at`

func scanReview(scan func(dest ...any) error) (domain.Review, error) {
	var rv domain.Review
	var comment sql.NullString
	err := scan(&rv.ID, &rv.ProjectID, &rv.OrderID, &rv.ReviewerID, &rv.RevieweeID, &rv.Rating, &comment, &rv.CreatedAt)
	if err == sql.ErrNoRows {
		return rv, ErrNotFound
	}
	if err != nil {
		return rv, err
	}
	if comment.Valid {
		rv.Comment = comment.String
	}
	return rv, nil
}

func (r Repo) InsertReviewTx(ctx context.Context, tx *sql.Tx, rv domain.Review) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO reviews(`+reviewColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		rv.ID, rv.ProjectID, rv.OrderID, rv.ReviewerID, rv.RevieweeID, rv.Rating, nullable(rv.Comment), rv.CreatedAt)
	return err
}

func (r Repo) ListReviewsByProject(ctx context.Context, projectID string) ([]domain.Review, error) {
	return r.listReviews(ctx, `WHERE project_id=?`, projectID)
}

func (r Repo) ListReviewsByReviewee(ctx context.Context, revieweeID string) ([]domain.Review, error) {
	return r.listReviews(ctx, `WHERE reviewee_id=?`, revieweeID)
}

func (r Repo) listReviews(ctx context.Context, where string, args ...any) ([]domain.Review, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+reviewColumns+` FROM reviews `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rv)
	}
	return res, rows.Err()
}

// ReviewExistsTx reports whether the reviewer already reviewed the
// reviewee on this project. Uniqueness is an engine rule, not a schema
// constraint.
func (r Repo) ReviewExistsTx(ctx context.Context, tx *sql.Tx, projectID, reviewerID, revieweeID string) (bool, error) {
	row := tx.QueryRowContext(ctx, `SELECT 1 FROM reviews WHERE project_id=? AND reviewer_id=? AND reviewee_id=? LIMIT 1`,
		projectID, reviewerID, revieweeID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

const disputeColumns = `id,project_id,order_id,raised_by,reason,evidence_json,status,created_at,updated_at`

func scanDispute(scan func(dest ...any) error) (domain.Dispute, error) {
	var d domain.Dispute
	var evidence sql.NullString
	err := scan(&d.ID, &d.ProjectID, &d.OrderID, &d.RaisedBy, &d.Reason, &evidence, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if evidence.Valid && evidence.String != "" {
		_ = json.Unmarshal([]byte(evidence.String), &d.Evidence)
	}
	return d, nil
}

func (r Repo) InsertDisputeTx(ctx context.Context, tx *sql.Tx, d domain.Dispute) error {
	var evidence any
	if len(d.Evidence) > 0 {
		b, err := json.Marshal(d.Evidence)
		if err != nil {
			return err
		}
		evidence = string(b)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO disputes(`+disputeColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		d.ID, d.ProjectID, d.OrderID, d.RaisedBy, d.Reason, evidence, d.Status, d.CreatedAt, d.UpdatedAt)
	return err
}

func (r Repo) GetDispute(ctx context.Context, id string) (domain.Dispute, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id=?`, id)
	return scanDispute(row.Scan)
}

func (r Repo) ListDisputesByProject(ctx context.Context, projectID string) ([]domain.Dispute, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE project_id=? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Dispute
	for rows.Next() {
		d, err := scanDispute(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// SetDisputeStatusTx advances a dispute keyed on its expected current
// status; false means a concurrent advance won.
func (r Repo) SetDisputeStatusTx(ctx context.Context, tx *sql.Tx, id, fromStatus, toStatus, now string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE disputes SET status=?, updated_at=? WHERE id=? AND status=?`,
		toStatus, now, id, fromStatus)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
