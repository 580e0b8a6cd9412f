package repo

import (
	"context"
	"database/sql"
	"strings"

	"gigline/internal/domain"
)

const proposalColumns = `id,project_id,creator_id,service_id,delivery_days,milestone_plan,revision_scope,price,status,created_at,updated_at`

func scanProposal(scan func(dest ...any) error) (domain.Proposal, error) {
	var p domain.Proposal
	var serviceID, plan, scope sql.NullString
	err := scan(&p.ID, &p.ProjectID, &p.CreatorID, &serviceID, &p.DeliveryDays, &plan, &scope, &p.Price, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if serviceID.Valid {
		p.ServiceID = &serviceID.String
	}
	if plan.Valid {
		p.MilestonePlan = plan.String
	}
	if scope.Valid {
		p.RevisionScope = scope.String
	}
	return p, nil
}

func (r Repo) InsertProposalTx(ctx context.Context, tx *sql.Tx, p domain.Proposal) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO proposals(`+proposalColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.ProjectID, p.CreatorID, nullableStringPtr(p.ServiceID), p.DeliveryDays,
		nullable(p.MilestonePlan), nullable(p.RevisionScope), p.Price, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProposal(ctx context.Context, id string) (domain.Proposal, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=?`, id)
	return scanProposal(row.Scan)
}

func (r Repo) GetProposalTx(ctx context.Context, tx *sql.Tx, id string) (domain.Proposal, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=?`, id)
	return scanProposal(row.Scan)
}

func (r Repo) listProposals(ctx context.Context, where string, args ...any) ([]domain.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals ` + where + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) ListProposalsByProject(ctx context.Context, projectID string) ([]domain.Proposal, error) {
	return r.listProposals(ctx, `WHERE project_id=?`, projectID)
}

func (r Repo) ListProposalsByCreator(ctx context.Context, creatorID string) ([]domain.Proposal, error) {
	return r.listProposals(ctx, `WHERE creator_id=?`, creatorID)
}

// DecideProposalTx flips a pending proposal to the given status. The
// WHERE clause on the current status is what serializes concurrent
// deciders: exactly one caller can win the row.
func (r Repo) DecideProposalTx(ctx context.Context, tx *sql.Tx, id, status, now string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE proposals SET status=?, updated_at=? WHERE id=? AND status=?`,
		status, now, id, domain.ProposalPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RejectSiblingProposalsTx rejects every other pending proposal on the
// project and returns the affected ids.
func (r Repo) RejectSiblingProposalsTx(ctx context.Context, tx *sql.Tx, projectID, acceptedID, now string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM proposals WHERE project_id=? AND status=? AND id<>?`,
		projectID, domain.ProposalPending, acceptedID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := []any{domain.ProposalRejected, now}
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE proposals SET status=?, updated_at=? WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return nil, err
	}
	return ids, nil
}

// ProposalTermsPatch carries the fields an update may touch. Nil means
// leave unchanged.
type ProposalTermsPatch struct {
	DeliveryDays  *int
	MilestonePlan *string
	RevisionScope *string
	Price         *int64
}

// UpdateProposalTermsTx applies a terms patch, guarded on pending
// status. Returns false when the proposal was not pending anymore.
func (r Repo) UpdateProposalTermsTx(ctx context.Context, tx *sql.Tx, id string, patch ProposalTermsPatch, now string) (bool, error) {
	fields := []string{"updated_at=?"}
	args := []any{now}
	if patch.DeliveryDays != nil {
		fields = append(fields, "delivery_days=?")
		args = append(args, *patch.DeliveryDays)
	}
	if patch.MilestonePlan != nil {
		fields = append(fields, "milestone_plan=?")
		args = append(args, nullable(*patch.MilestonePlan))
	}
	if patch.RevisionScope != nil {
		fields = append(fields, "revision_scope=?")
		args = append(args, nullable(*patch.RevisionScope))
	}
	if patch.Price != nil {
		fields = append(fields, "price=?")
		args = append(args, *patch.Price)
	}
	args = append(args, id, domain.ProposalPending)
	res, err := tx.ExecContext(ctx, `UPDATE proposals SET `+strings.Join(fields, ",")+` WHERE id=? AND status=?`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
