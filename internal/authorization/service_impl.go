package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, object string, action string) error {
	subject, err := subjectFor(actor)
	if err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, strings.TrimSpace(object), strings.TrimSpace(action))
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) AssignRole(ctx context.Context, operatorID string, role string) error {
	subject, err := subjectFor(operatorID)
	if err != nil {
		return err
	}
	roleName, err := roleSubject(role)
	if err != nil {
		return err
	}

	// Operators carry a single role; drop any previous assignment.
	if _, err := s.enforcer.RemoveFilteredGroupingPolicy(0, subject); err != nil {
		return err
	}
	if _, err := s.enforcer.AddGroupingPolicy(subject, roleName); err != nil {
		return err
	}

	s.log.Info("role assigned", zap.String("subject", subject), zap.String("role", roleName))
	return nil
}

func subjectFor(actor string) (string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", ErrInvalidActor
	}
	if actor == ActorSystem {
		return ActorSystem, nil
	}
	return "operator:" + actor, nil
}

func roleSubject(role string) (string, error) {
	switch role = strings.ToLower(strings.TrimSpace(role)); role {
	case RoleFinanceAdmin, RoleFinanceViewer, RoleSystem:
		return "role:" + role, nil
	}
	return "", ErrInvalidRole
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"role:finance_viewer", ObjectReport, ActionReportView},
		{"role:finance_viewer", ObjectReport, ActionReportExport},

		{"role:finance_admin", ObjectReport, ActionReportView},
		{"role:finance_admin", ObjectReport, ActionReportExport},
		{"role:finance_admin", ObjectReconciliation, ActionReconciliationRun},
		{"role:finance_admin", ObjectReconciliation, ActionReconciliationManual},
		{"role:finance_admin", ObjectPaymentIntent, ActionPaymentIntentApprove},

		{"role:system", ObjectReconciliation, ActionReconciliationRun},
		{"role:system", ObjectReport, ActionReportView},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	if _, err := enforcer.AddGroupingPolicy(ActorSystem, "role:system"); err != nil {
		return err
	}
	return nil
}
