package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

const serviceColumns = `id,creator_id,title,description,category,price,featured,created_at`

func scanService(scan func(dest ...any) error) (domain.Service, error) {
	var s domain.Service
	var desc sql.NullString
	var featured int
	err := scan(&s.ID, &s.CreatorID, &s.Title, &desc, &s.Category, &s.Price, &featured, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if desc.Valid {
		s.Description = desc.String
	}
	s.Featured = featured != 0
	return s, nil
}

func (r Repo) InsertServiceTx(ctx context.Context, tx *sql.Tx, s domain.Service) error {
	featured := 0
	if s.Featured {
		featured = 1
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO services(`+serviceColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.CreatorID, s.Title, nullable(s.Description), s.Category, s.Price, featured, s.CreatedAt)
	return err
}

func (r Repo) GetService(ctx context.Context, id string) (domain.Service, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id=?`, id)
	return scanService(row.Scan)
}

type ServiceFilters struct {
	CreatorID string
	Category  string
	Featured  *bool
	Limit     int
}

func (r Repo) ListServices(ctx context.Context, f ServiceFilters) ([]domain.Service, error) {
	q := `SELECT ` + serviceColumns + ` FROM services WHERE 1=1`
	var args []any
	if f.CreatorID != "" {
		q += ` AND creator_id=?`
		args = append(args, f.CreatorID)
	}
	if f.Category != "" {
		q += ` AND category=?`
		args = append(args, f.Category)
	}
	if f.Featured != nil {
		q += ` AND featured=?`
		if *f.Featured {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Service
	for rows.Next() {
		s, err := scanService(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) SetServiceFeaturedTx(ctx context.Context, tx *sql.Tx, id string, featured bool) error {
	v := 0
	if featured {
		v = 1
	}
	res, err := tx.ExecContext(ctx, `UPDATE services SET featured=? WHERE id=?`, v, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const messageColumns = `id,order_id,sender_id,body,created_at`

func (r Repo) InsertMessageTx(ctx context.Context, tx *sql.Tx, m domain.Message) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO messages(`+messageColumns+`) VALUES (?,?,?,?,?)`,
		m.ID, m.OrderID, m.SenderID, m.Body, m.CreatedAt)
	return err
}

func (r Repo) ListMessagesByOrder(ctx context.Context, orderID string) ([]domain.Message, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE order_id=? ORDER BY created_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

const portfolioColumns = `id,creator_id,title,description,url,created_at`

func (r Repo) InsertPortfolioItemTx(ctx context.Context, tx *sql.Tx, p domain.PortfolioItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO portfolio_items(`+portfolioColumns+`) VALUES (?,?,?,?,?,?)`,
		p.ID, p.CreatorID, p.Title, nullable(p.Description), nullable(p.URL), p.CreatedAt)
	return err
}

func (r Repo) ListPortfolioByCreator(ctx context.Context, creatorID string) ([]domain.PortfolioItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+portfolioColumns+` FROM portfolio_items WHERE creator_id=? ORDER BY created_at DESC, id DESC`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PortfolioItem
	for rows.Next() {
		var p domain.PortfolioItem
		var desc, url sql.NullString
		if err := rows.Scan(&p.ID, &p.CreatorID, &p.Title, &desc, &url, &p.CreatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			p.Description = desc.String
		}
		if url.Valid {
			p.URL = url.String
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
