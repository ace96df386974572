package biz

import (
	"github.com/Sophix-ma/Mindra/internal/ai"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewPricingTable,
	NewUserBalanceUseCase,
	NewUsageLedgerUseCase,
	NewAccountUseCase,
	NewMeteringUseCase,
	wire.Bind(new(InferenceClient), new(*ai.Client)),
)
