package app

import (
	"context"

	"github.com/matiasracedo/zitadel-trickle-migration/internal/config"
	"github.com/matiasracedo/zitadel-trickle-migration/internal/middleware"
	"github.com/matiasracedo/zitadel-trickle-migration/internal/migration"
	"github.com/matiasracedo/zitadel-trickle-migration/internal/migration/handler"
	"github.com/matiasracedo/zitadel-trickle-migration/internal/zitadel"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	directory, cleanup, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	platform, err := zitadel.New(ctx, zitadel.Config{
		Domain:       cfg.ZitadelDomain,
		OrgID:        cfg.ZitadelOrgID,
		PAT:          cfg.ZitadelPAT,
		ClientID:     cfg.ZitadelClientID,
		ClientSecret: cfg.ZitadelClientSecret,
	})
	if err != nil {
		return nil, nil, err
	}

	machine := migration.NewMachine(directory, platform, cfg.LoginClientUserID)

	actionHandler := handler.NewHandler(machine, handler.SigningKeys{
		ListUsers:   cfg.ListUsersSigningKey,
		SetSession:  cfg.SetSessionSigningKey,
		SetPassword: cfg.SetPasswordSigningKey,
	})

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())

	actionHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return router, cleanup, nil
}
