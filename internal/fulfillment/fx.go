package fulfillment

import (
	"github.com/smallbiznis/paysettle/internal/fulfillment/domain"
	"github.com/smallbiznis/paysettle/internal/fulfillment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fulfillment.service",
	fx.Provide(service.NewService),
	fx.Provide(
		func(s *service.Service) domain.UserProvisioner { return s },
		func(s *service.Service) domain.PurchaseCompleter { return s },
		func(s *service.Service) domain.LegalDocumentFulfiller { return s },
	),
)
