package components

import (
	"storefront/internal/handler"
	"storefront/internal/handler/api"
	"storefront/internal/handler/middleware"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		middleware.NewAuthMiddleware,
		api.NewCheckoutHandler,
		api.NewOrderHandler,
	),
	fx.Invoke(
		handler.NewRouter,
	),
)
