package auth

import (
	"time"

	"github.com/MaxymChyncha/house-security-system/pkg/audit"
	"github.com/MaxymChyncha/house-security-system/pkg/cache"
	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

// Module holds all auth components
type Module struct {
	JWTService *JWTService
	Service    Service
	Handler    *Handler
}

// Config holds configuration for auth module
type Config struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
	// Revoked stores logged out token ids until they expire
	Revoked  cache.Cache
	Recorder audit.Recorder
	Observer LoginObserver
	Rules    RuleSource
}

// NewModule creates a new auth module with all dependencies
func NewModule(users UserStore, cfg Config, log *logger.Logger) *Module {
	jwtService := NewJWTService(cfg.Secret, cfg.Issuer, cfg.TokenTTL)
	svc := NewService(users, jwtService, cfg.Revoked, cfg.Recorder, cfg.Observer, log)

	return &Module{
		JWTService: jwtService,
		Service:    svc,
		Handler:    NewHandler(svc, cfg.Rules),
	}
}
