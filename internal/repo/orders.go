package repo

import (
	"context"
	"database/sql"
	"strings"

	"gigline/internal/domain"
)

const orderColumns = `id,project_id,proposal_id,buyer_id,creator_id,service_id,price,delivery_days,status,created_at,updated_at,completed_at`

func scanOrder(scan func(dest ...any) error) (domain.Order, error) {
	var o domain.Order
	var serviceID, completedAt sql.NullString
	err := scan(&o.ID, &o.ProjectID, &o.ProposalID, &o.BuyerID, &o.CreatorID, &serviceID,
		&o.Price, &o.DeliveryDays, &o.Status, &o.CreatedAt, &o.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if serviceID.Valid {
		o.ServiceID = &serviceID.String
	}
	if completedAt.Valid {
		o.CompletedAt = &completedAt.String
	}
	return o, nil
}

func (r Repo) InsertOrderTx(ctx context.Context, tx *sql.Tx, o domain.Order) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO orders(`+orderColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.ProjectID, o.ProposalID, o.BuyerID, o.CreatorID, nullableStringPtr(o.ServiceID),
		o.Price, o.DeliveryDays, o.Status, o.CreatedAt, o.UpdatedAt, nullableStringPtr(o.CompletedAt))
	return err
}

func (r Repo) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=?`, id)
	return scanOrder(row.Scan)
}

type OrderFilters struct {
	BuyerID   string
	CreatorID string
	ServiceID string
	ProjectID string
	Status    string
	Limit     int
}

func (r Repo) ListOrders(ctx context.Context, f OrderFilters) ([]domain.Order, error) {
	var clauses []string
	var args []any
	if f.BuyerID != "" {
		clauses = append(clauses, "buyer_id=?")
		args = append(args, f.BuyerID)
	}
	if f.CreatorID != "" {
		clauses = append(clauses, "creator_id=?")
		args = append(args, f.CreatorID)
	}
	if f.ServiceID != "" {
		clauses = append(clauses, "service_id=?")
		args = append(args, f.ServiceID)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + orderColumns + ` FROM orders ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// SetOrderStatusTx advances an order keyed on its expected current
// status (compare-and-set). Returns false when another writer got
// there first or the status was stale.
func (r Repo) SetOrderStatusTx(ctx context.Context, tx *sql.Tx, id, fromStatus, toStatus, now string, completedAt *string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE orders SET status=?, updated_at=?, completed_at=COALESCE(?, completed_at) WHERE id=? AND status=?`,
		toStatus, now, nullableStringPtr(completedAt), id, fromStatus)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
