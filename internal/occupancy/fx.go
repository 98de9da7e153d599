package occupancy

import (
	"github.com/smallbiznis/contractdesk/internal/occupancy/overlap"
	"github.com/smallbiznis/contractdesk/internal/occupancy/repository"
	"github.com/smallbiznis/contractdesk/internal/occupancy/service"
	"go.uber.org/fx"
)

var Module = fx.Module("occupancy.service",
	fx.Provide(repository.Provide),
	fx.Provide(overlap.NewValidator),
	fx.Provide(service.NewCoordinator),
)
