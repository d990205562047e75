package migration

import (
	"github.com/mk070/zenlance-sub002/internal/config"
	invoicedomain "github.com/mk070/zenlance-sub002/internal/invoice/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Versioned SQL migrations target postgres; other engines
			// (sqlite for local dev) get the schema from the models.
			return conn.AutoMigrate(
				&invoicedomain.Invoice{},
				&invoicedomain.InvoiceSequence{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
