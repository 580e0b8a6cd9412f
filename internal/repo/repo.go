package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gigline/internal/config"
	"gigline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, actorID string, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO actors(id, created_at) VALUES (?,?)`, actorID, now)
	return err
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,buyer_id,title,description,category,budget_min,budget_max,deadline,status,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.BuyerID, p.Title, nullable(p.Description), nullable(p.Category),
		nullableInt64(p.BudgetMin), nullableInt64(p.BudgetMax), nullable(p.Deadline), p.Status, p.CreatedAt)
	return err
}

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var desc, category, deadline sql.NullString
	var budgetMin, budgetMax sql.NullInt64
	err := scan(&p.ID, &p.BuyerID, &p.Title, &desc, &category, &budgetMin, &budgetMax, &deadline, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if desc.Valid {
		p.Description = desc.String
	}
	if category.Valid {
		p.Category = category.String
	}
	if budgetMin.Valid {
		p.BudgetMin = budgetMin.Int64
	}
	if budgetMax.Valid {
		p.BudgetMax = budgetMax.Int64
	}
	if deadline.Valid {
		p.Deadline = deadline.String
	}
	return p, nil
}

const projectColumns = `id,buyer_id,title,description,category,budget_min,budget_max,deadline,status,created_at`

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

type ProjectFilters struct {
	BuyerID  string
	Category string
	Status   string
	Limit    int
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilters) ([]domain.Project, error) {
	var clauses []string
	var args []any
	if f.BuyerID != "" {
		clauses = append(clauses, "buyer_id=?")
		args = append(args, f.BuyerID)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + projectColumns + ` FROM projects ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProjectStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpsertMarketplaceConfig(ctx context.Context, marketplaceID string, cfg *config.Config) error {
	return upsertMarketplaceConfig(ctx, r.DB, nil, marketplaceID, cfg)
}

func (r Repo) UpsertMarketplaceConfigTx(ctx context.Context, tx *sql.Tx, marketplaceID string, cfg *config.Config) error {
	return upsertMarketplaceConfig(ctx, nil, tx, marketplaceID, cfg)
}

func upsertMarketplaceConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, marketplaceID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Marketplace.ID = marketplaceID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO marketplace_configs(marketplace_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(marketplace_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, marketplaceID, string(payload), now, now)
	return err
}

// SingleMarketplace returns the marketplace ID when exactly one is
// configured in the workspace database.
func (r Repo) SingleMarketplace(ctx context.Context) (string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT marketplace_id FROM marketplace_configs LIMIT 2`)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(ids) != 1 {
		return "", ErrNotFound
	}
	return ids[0], nil
}

func (r Repo) GetMarketplaceConfig(ctx context.Context, marketplaceID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM marketplace_configs WHERE marketplace_id=?`, marketplaceID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Marketplace.ID == "" {
		cfg.Marketplace.ID = marketplaceID
	}
	return &cfg, cfg.Validate()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
