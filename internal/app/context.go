package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gigline/internal/config"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

// ResolveMarketplaceAndConfig picks the active marketplace and ensures
// its config exists in the DB, seeding defaults if missing. It prefers
// the override, then the workspace gigline.yml, then a single
// marketplace already present in the DB.
func ResolveMarketplaceAndConfig(ctx context.Context, workspace, marketplaceOverride, actorID string, r repo.Repo) (string, *config.Config, error) {
	marketplaceID := marketplaceOverride
	var fileCfg *config.Config
	if cfg, err := config.LoadOptional(workspace); err == nil && cfg != nil {
		fileCfg = cfg
		if marketplaceID == "" {
			marketplaceID = cfg.Marketplace.ID
		}
	} else if err != nil {
		return "", nil, err
	}
	if marketplaceID == "" {
		if id, err := r.SingleMarketplace(ctx); err == nil {
			marketplaceID = id
		} else {
			return "", nil, fmt.Errorf("marketplace not specified; use --marketplace or add gigline.yml")
		}
	}

	cfg, err := r.GetMarketplaceConfig(ctx, marketplaceID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		seedCfg := fileCfg
		if seedCfg == nil {
			seedCfg = config.Default(marketplaceID)
		}
		if err := bootstrapMarketplace(ctx, r, marketplaceID, seedCfg, actorID); err != nil {
			return "", nil, err
		}
		cfg = seedCfg
	}
	cfg.Marketplace.ID = marketplaceID
	return marketplaceID, cfg, nil
}

// bootstrapMarketplace seeds config, RBAC roles, and an admin grant for
// the bootstrap actor.
func bootstrapMarketplace(ctx context.Context, r repo.Repo, marketplaceID string, seedCfg *config.Config, actorID string) error {
	if seedCfg == nil {
		seedCfg = config.Default(marketplaceID)
	}
	if err := r.UpsertMarketplaceConfig(ctx, marketplaceID, seedCfg); err != nil {
		return fmt.Errorf("seed marketplace config: %w", err)
	}
	e := engine.New(r.DB, seedCfg)
	if err := e.SeedRBAC(ctx); err != nil {
		return fmt.Errorf("seed rbac: %w", err)
	}
	if actorID == "" {
		actorID = "local-user"
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.EnsureActor(ctx, tx, actorID, now); err != nil {
		return fmt.Errorf("ensure actor: %w", err)
	}
	if _, ok := seedCfg.RBAC.Roles["admin"]; ok {
		if err := r.AssignRole(ctx, tx, marketplaceID, actorID, "admin"); err != nil {
			return fmt.Errorf("assign admin role: %w", err)
		}
	}
	return tx.Commit()
}
