package handlers

import (
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ferremas/internal/config"
	"ferremas/internal/repos"
	"ferremas/internal/services"
)

type Deps struct {
	Auth *services.AuthService

	InventoryHandler *InventoryHandler
	MovementHandler  *MovementHandler
	OrderHandler     *OrderHandler
	KeyHandler       *KeyHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, logger *zap.Logger) *Deps {
	invRepo := repos.NewInventoryRepo(db)
	moveRepo := repos.NewMovementRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	refRepo := repos.NewReferenceRepo(db)
	keyRepo := repos.NewAPIKeyRepo(db)

	moveSvc := services.NewMovementService(db, invRepo, moveRepo, refRepo, logger)
	invSvc := services.NewInventoryService(db, invRepo, moveSvc, refRepo, logger)
	orderSvc := services.NewOrderService(db, orderRepo, invRepo, moveSvc, refRepo, logger)
	if cfg.DefaultCurrencyID != "" {
		orderSvc.DefaultCurrencyID = cfg.DefaultCurrencyID
	}
	if rate, err := decimal.NewFromString(cfg.DefaultTaxRate); err == nil && !rate.IsNegative() {
		orderSvc.DefaultTaxRate = rate
	}

	auth := services.NewAuthService(keyRepo)
	return &Deps{
		Auth:             auth,
		InventoryHandler: &InventoryHandler{Inv: invSvc},
		MovementHandler:  &MovementHandler{Moves: moveSvc},
		OrderHandler:     &OrderHandler{Orders: orderSvc},
		KeyHandler:       &KeyHandler{Auth: auth},
	}
}
