package trackingevent

import "go.uber.org/fx"

// Module provides the tracking event repository to Fx.
var Module = fx.Provide(NewRepository)
