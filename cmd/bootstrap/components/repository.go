package components

import (
	"storefront/internal/infra/readstore"
	"storefront/internal/infra/uow"
	"storefront/internal/usecase/queries"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var RepositoryModule = fx.Module("repository",
	fx.Provide(
		uow.NewPostgresUoW,
		// Read-side store for queries
		fx.Annotate(
			NewOrderReadStore,
			fx.As(new(queries.OrderReadStore)),
		),
	),
)

func NewOrderReadStore(pool *pgxpool.Pool) *readstore.OrderReadStore {
	return readstore.NewOrderReadStore(pool)
}
