package components

import (
	"storefront/internal/pkg/clock"
	"storefront/internal/pkg/config"
	"storefront/internal/usecase/commands"
	"storefront/internal/usecase/queries"
	"storefront/internal/usecase/shared"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseCommandsModule,
	usecaseQueriesModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		NewCheckoutCommands,
	),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		queries.NewOrderQueries,
	),
)

func NewCheckoutCommands(gateway shared.PaymentGateway, unitOfWork shared.UnitOfWork, cfg config.Config, clk clock.Clock) commands.CheckoutCommands {
	return commands.NewCheckoutUseCase(gateway, unitOfWork, cfg.Checkout, clk)
}
