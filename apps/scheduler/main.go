package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/authorization"
	"github.com/smallbiznis/paysettle/internal/clock"
	"github.com/smallbiznis/paysettle/internal/config"
	"github.com/smallbiznis/paysettle/internal/finalizer"
	"github.com/smallbiznis/paysettle/internal/fulfillment"
	"github.com/smallbiznis/paysettle/internal/invoice"
	"github.com/smallbiznis/paysettle/internal/observability"
	"github.com/smallbiznis/paysettle/internal/payment"
	"github.com/smallbiznis/paysettle/internal/pricing"
	"github.com/smallbiznis/paysettle/internal/reconciliation"
	"github.com/smallbiznis/paysettle/internal/registration"
	"github.com/smallbiznis/paysettle/internal/scheduler"
	"github.com/smallbiznis/paysettle/internal/subscription"
	"github.com/smallbiznis/paysettle/pkg/db"
	"go.uber.org/fx"
)

// Scheduler-only worker. Schema is owned by cmd/paysettle; no ops server.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by scheduler
		payment.Module,
		pricing.Module,
		registration.Module,
		subscription.Module,
		fulfillment.Module,
		authorization.Module,
		invoice.Module,
		finalizer.Module,
		reconciliation.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
