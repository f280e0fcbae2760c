package staff

import (
	"github.com/MaxymChyncha/house-security-system/pkg/audit"
	"github.com/MaxymChyncha/house-security-system/pkg/database"
	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

// Module holds all staff components
type Module struct {
	Repository Repository
	Service    Service
	Handler    *Handler
}

// ModuleConfig holds configuration for the staff module
type ModuleConfig struct {
	Recorder   audit.Recorder
	BcryptCost int
}

// NewModule creates a new staff module with all dependencies
func NewModule(db *database.DB, cfg ModuleConfig, log *logger.Logger) *Module {
	repo := NewRepository(db)
	svc := NewService(repo, cfg.Recorder, cfg.BcryptCost, log)

	return &Module{
		Repository: repo,
		Service:    svc,
		Handler:    NewHandler(svc),
	}
}
