package registration

import (
	"github.com/smallbiznis/paysettle/internal/registration/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("registration.repository",
	fx.Provide(repository.Provide),
)
