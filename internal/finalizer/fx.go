package finalizer

import (
	"github.com/smallbiznis/paysettle/internal/finalizer/domain"
	"github.com/smallbiznis/paysettle/internal/finalizer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("finalizer.service",
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
)
