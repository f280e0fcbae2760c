package property

import (
	"github.com/MaxymChyncha/house-security-system/pkg/audit"
	"github.com/MaxymChyncha/house-security-system/pkg/database"
	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

// Module holds all property components
type Module struct {
	Repository Repository
	Service    Service
	Handler    *Handler
}

// ModuleConfig holds configuration for the property module
type ModuleConfig struct {
	Users    UserLookup
	Recorder audit.Recorder
}

// NewModule creates a new property module with all dependencies
func NewModule(db *database.DB, cfg ModuleConfig, log *logger.Logger) *Module {
	repo := NewRepository(db)
	svc := NewService(repo, cfg.Users, cfg.Recorder, log)

	return &Module{
		Repository: repo,
		Service:    svc,
		Handler:    NewHandler(svc),
	}
}
