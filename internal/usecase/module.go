package usecase

import (
	"go.uber.org/fx"

	"github.com/polkiloo/payouts/internal/rail"
	"github.com/polkiloo/payouts/internal/risk"
)

// Module provides the withdrawal use cases to the fx container.
var Module = fx.Provide(
	NewLedger,
	func(r *rail.Registry) Plugins { return r },
	func(g *risk.Gate) RiskChecker { return g },
	NewOrchestrator,
	NewReview,
	NewSettlement,
)
