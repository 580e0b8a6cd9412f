package engine

import (
	"context"
	"time"

	"gigline/internal/events"
)

// SeedRBAC loads the configured roles and permissions into storage.
// Inserts are idempotent, so re-seeding after a config change is safe.
func (e Engine) SeedRBAC(ctx context.Context) error {
	if e.Config == nil || len(e.Config.RBAC.Roles) == 0 {
		return nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for roleID, role := range e.Config.RBAC.Roles {
		if err := e.Repo.InsertRole(ctx, tx, roleID, role.Description); err != nil {
			return err
		}
		for _, perm := range role.Permissions {
			if err := e.Repo.InsertPermission(ctx, tx, perm, ""); err != nil {
				return err
			}
			if err := e.Repo.AddRolePermission(ctx, tx, roleID, perm); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (e Engine) AssignRole(ctx context.Context, actorID, roleID, grantedBy string) error {
	if roleID == "" {
		return ValidationError{Field: "role_id", Reason: "required"}
	}
	if e.Config != nil && len(e.Config.RBAC.Roles) > 0 {
		if _, ok := e.Config.RBAC.Roles[roleID]; !ok {
			return ValidationError{Field: "role_id", Reason: "unknown role " + roleID}
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, actorID, now); err != nil {
		return err
	}
	if err := e.Repo.AssignRole(ctx, tx, e.marketplaceID(), actorID, roleID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "rbac.role_assigned", e.marketplaceID(), "actor", actorID, grantedBy, events.EventPayload{
		"role_id": roleID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) RevokeRole(ctx context.Context, actorID, roleID, revokedBy string) error {
	if roleID == "" {
		return ValidationError{Field: "role_id", Reason: "required"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.RevokeRole(ctx, tx, e.marketplaceID(), actorID, roleID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "rbac.role_revoked", e.marketplaceID(), "actor", actorID, revokedBy, events.EventPayload{
		"role_id": roleID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
