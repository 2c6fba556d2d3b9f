package reconciliation

import (
	"github.com/smallbiznis/paysettle/internal/reconciliation/domain"
	"github.com/smallbiznis/paysettle/internal/reconciliation/repository"
	"github.com/smallbiznis/paysettle/internal/reconciliation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciliation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
)
