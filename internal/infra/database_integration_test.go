//go:build integration

package infra

import (
	"context"
	"testing"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("inventory_schema"),
		tcPostgres.WithUsername("inventory"),
		tcPostgres.WithPassword("inventory"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := NewDatabase(dsn, DatabaseOptions{})
	require.NoError(t, err)
	return db
}

func TestPostgresChecks(t *testing.T) {
	db := openPostgres(t)
	require.NoError(t, Migrate(db), "patches must be re-runnable")

	product := &model.Product{Name: "Phone", Status: model.ProductActive}
	require.NoError(t, db.Create(product).Error)

	t.Run("unknown kind", func(t *testing.T) {
		err := db.Create(&model.Variant{ProductID: product.ID, Kind: "bundle", Name: "x", Active: true}).Error
		assert.Error(t, err)
		err = db.Create(&model.Variant{ProductID: product.ID, Kind: "", Name: "x", Active: true}).Error
		assert.Error(t, err)
	})

	t.Run("unit without parent", func(t *testing.T) {
		serial := "NO-PARENT-1"
		err := db.Create(&model.Variant{
			ProductID: product.ID, Kind: model.KindUnit, Name: "x", Active: true,
			Serial: &serial, State: model.UnitAvailable,
		}).Error
		assert.Error(t, err)
	})

	t.Run("known kinds", func(t *testing.T) {
		assert.NoError(t, db.Create(&model.Variant{ProductID: product.ID, Kind: model.KindStandard, Name: "S", Active: true}).Error)
		assert.NoError(t, db.Create(&model.Variant{ProductID: product.ID, Kind: model.KindParent, Name: "P", Active: true}).Error)
	})
}
