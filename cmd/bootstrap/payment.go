package bootstrap

import (
	"storefront/internal/infra/payment"
	"storefront/internal/pkg/config"
	"storefront/internal/usecase/shared"

	"go.uber.org/fx"
)

var PaymentModule = fx.Module("payment",
	fx.Provide(
		fx.Annotate(
			NewPaymentGateway,
			fx.As(new(shared.PaymentGateway)),
		),
	),
)

func NewPaymentGateway(cfg config.Config) *payment.StripeClient {
	return payment.NewStripeClient(cfg.Stripe)
}
