package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/margincraft/backend/internal/domain/promotion"
	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/margincraft/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockPromotionRepository(t *testing.T) (*GormPromotionRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormPromotionRepository(gormDB), mock, mockDB
}

func TestGormPromotionRepository_FindByID(t *testing.T) {
	t.Run("treats a null analysis column as not analyzed", func(t *testing.T) {
		repo, mock, mockDB := newMockPromotionRepository(t)
		defer mockDB.Close()

		promoID := uuid.New()
		companyID := uuid.New()

		rows := sqlmock.NewRows([]string{
			"id", "company_id", "name", "retailer", "status",
			"payback_percent", "variants", "labor", "analysis",
		}).AddRow(
			promoID, companyID, "Spring BOGO", "Coastal Grocer", "DRAFT",
			"10.00",
			`{"8oz":{"retail_price":"10.00","units_available":"100.00","base_unit_cost":"1.00"}}`,
			`[]`,
			nil,
		)

		mock.ExpectQuery(`SELECT \* FROM "promotions" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(promoID, 1).
			WillReturnRows(rows)

		promo, err := repo.FindByID(context.Background(), promoID)

		require.NoError(t, err)
		assert.Equal(t, "Spring BOGO", promo.Name)
		assert.Equal(t, promotion.StatusDraft, promo.Status)
		assert.Equal(t, "10.00", promo.PaybackPercent.StringFixed2())
		assert.False(t, promo.IsAnalyzed())

		terms, ok := promo.Variants["8oz"]
		require.True(t, ok)
		assert.Equal(t, "1.00", terms.BaseUnitCost.StringFixed2())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("restores a stored analysis", func(t *testing.T) {
		repo, mock, mockDB := newMockPromotionRepository(t)
		defer mockDB.Close()

		promoID := uuid.New()
		analysisJSON := `{"variants":[{"variant":"8oz","margin_with_promo":"60.00","quality":"good"}],"recommendation":"participate","reason":"Every variant margin stays at or above 50.00% (lowest 60.00%)"}`

		rows := sqlmock.NewRows([]string{"id", "company_id", "name", "retailer", "status", "analysis"}).
			AddRow(promoID, uuid.New(), "Spring BOGO", "Coastal Grocer", "SUBMITTED", analysisJSON)

		mock.ExpectQuery(`SELECT \* FROM "promotions" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(promoID, 1).
			WillReturnRows(rows)

		promo, err := repo.FindByID(context.Background(), promoID)

		require.NoError(t, err)
		require.True(t, promo.IsAnalyzed())
		require.Len(t, promo.Analysis.Variants, 1)
		assert.Equal(t, "60.00", promo.Analysis.Variants[0].MarginWithPromo.StringFixed2())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for missing promotion", func(t *testing.T) {
		repo, mock, mockDB := newMockPromotionRepository(t)
		defer mockDB.Close()

		promoID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "promotions" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(promoID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		promo, err := repo.FindByID(context.Background(), promoID)

		assert.Nil(t, promo)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPromotionRepository_FindAllForCompany(t *testing.T) {
	t.Run("filters by status within the company", func(t *testing.T) {
		repo, mock, mockDB := newMockPromotionRepository(t)
		defer mockDB.Close()

		companyID := uuid.New()
		status := promotion.StatusApproved

		rows := sqlmock.NewRows([]string{"id", "company_id", "name", "retailer", "status"}).
			AddRow(uuid.New(), companyID, "Spring BOGO", "Coastal Grocer", "APPROVED")

		mock.ExpectQuery(`SELECT \* FROM "promotions" WHERE company_id = \$1 AND is_active = \$2 AND status = \$3 ORDER BY updated_at DESC LIMIT .*`).
			WithArgs(companyID, true, status, 20).
			WillReturnRows(rows)

		promos, err := repo.FindAllForCompany(context.Background(), companyID, promotion.Filter{
			Filter: shared.Filter{Page: 1, PageSize: 20},
			Status: &status,
		})

		require.NoError(t, err)
		require.Len(t, promos, 1)
		assert.Equal(t, promotion.StatusApproved, promos[0].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPromotionRepository_Save(t *testing.T) {
	t.Run("returns concurrency conflict when the version is stale", func(t *testing.T) {
		repo, mock, mockDB := newMockPromotionRepository(t)
		defer mockDB.Close()

		promo, err := promotion.NewPromotion(
			uuid.New(), "Spring BOGO", "Coastal Grocer",
			valueobject.MustAmount("20"), valueobject.MustAmount("10"),
			map[string]promotion.VariantTerms{}, nil,
		)
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "promotions" SET .+ WHERE id = .+ AND version = .+`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "promotions" WHERE id = \$1`).
			WithArgs(promo.ID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		err = repo.Save(context.Background(), promo)

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
