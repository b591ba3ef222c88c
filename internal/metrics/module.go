package metrics

import "go.uber.org/fx"

// Module provides the shared *Metrics.
var Module = fx.Provide(New)
