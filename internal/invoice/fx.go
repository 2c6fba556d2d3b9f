package invoice

import (
	"github.com/smallbiznis/paysettle/internal/invoice/domain"
	"github.com/smallbiznis/paysettle/internal/invoice/repository"
	"github.com/smallbiznis/paysettle/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
)
