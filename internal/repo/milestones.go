package repo

import (
	"context"
	"database/sql"
	"strings"

	"gigline/internal/domain"
)

const milestoneColumns = `id,order_id,project_id,title,description,due_date,state,created_at,updated_at`

func scanMilestone(scan func(dest ...any) error) (domain.Milestone, error) {
	var m domain.Milestone
	var desc, dueDate, state sql.NullString
	err := scan(&m.ID, &m.OrderID, &m.ProjectID, &m.Title, &desc, &dueDate, &state, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if desc.Valid {
		m.Description = desc.String
	}
	if dueDate.Valid {
		m.DueDate = &dueDate.String
	}
	if state.Valid {
		m.State = state.String
	}
	return m, nil
}

func (r Repo) InsertMilestoneTx(ctx context.Context, tx *sql.Tx, m domain.Milestone) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO milestones(`+milestoneColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		m.ID, m.OrderID, m.ProjectID, m.Title, nullable(m.Description), nullableStringPtr(m.DueDate),
		nullable(m.State), m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) GetMilestone(ctx context.Context, id string) (domain.Milestone, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id=?`, id)
	return scanMilestone(row.Scan)
}

func (r Repo) ListMilestonesByOrder(ctx context.Context, orderID string) ([]domain.Milestone, error) {
	return r.listMilestones(ctx, `WHERE order_id=?`, orderID)
}

func (r Repo) ListMilestonesByProject(ctx context.Context, projectID string) ([]domain.Milestone, error) {
	return r.listMilestones(ctx, `WHERE project_id=?`, projectID)
}

func (r Repo) listMilestones(ctx context.Context, where string, args ...any) ([]domain.Milestone, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+milestoneColumns+` FROM milestones `+where+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// MilestonePatch carries mutable planning fields. Nil leaves a field
// unchanged; ClearDueDate removes the date.
type MilestonePatch struct {
	Title        *string
	Description  *string
	DueDate      *string
	ClearDueDate bool
	State        *string
}

func (r Repo) UpdateMilestoneTx(ctx context.Context, tx *sql.Tx, id string, patch MilestonePatch, now string) error {
	fields := []string{"updated_at=?"}
	args := []any{now}
	if patch.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*patch.Description))
	}
	if patch.ClearDueDate {
		fields = append(fields, "due_date=NULL")
	} else if patch.DueDate != nil {
		fields = append(fields, "due_date=?")
		args = append(args, *patch.DueDate)
	}
	if patch.State != nil {
		fields = append(fields, "state=?")
		args = append(args, nullable(*patch.State))
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, `UPDATE milestones SET `+strings.Join(fields, ",")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertDeliveryTx appends a delivery row. There is deliberately no
// update or delete counterpart; delivery history is insert-only.
func (r Repo) InsertDeliveryTx(ctx context.Context, tx *sql.Tx, d domain.Delivery) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO deliveries(id,milestone_id,creator_id,note,file_url,created_at) VALUES (?,?,?,?,?,?)`,
		d.ID, d.MilestoneID, d.CreatorID, nullable(d.Note), nullable(d.FileURL), d.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListDeliveries returns deliveries oldest first; the last row is the
// current submission.
func (r Repo) ListDeliveries(ctx context.Context, milestoneID string) ([]domain.Delivery, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT seq,id,milestone_id,creator_id,note,file_url,created_at FROM deliveries WHERE milestone_id=? ORDER BY seq ASC`, milestoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Delivery
	for rows.Next() {
		var d domain.Delivery
		var note, fileURL sql.NullString
		if err := rows.Scan(&d.Seq, &d.ID, &d.MilestoneID, &d.CreatorID, &note, &fileURL, &d.CreatedAt); err != nil {
			return nil, err
		}
		if note.Valid {
			d.Note = note.String
		}
		if fileURL.Valid {
			d.FileURL = fileURL.String
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
