package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/policy"
)

// RuleService manages a company's approval rule templates
type RuleService interface {
	List(ctx context.Context, actor policy.Actor) ([]*entity.ApprovalRule, error)
	Create(ctx context.Context, actor policy.Actor, req CreateRuleRequest) (*entity.ApprovalRule, error)
	Delete(ctx context.Context, actor policy.Actor, ruleID string) error
}

// CreateRuleRequest describes a new rule
type CreateRuleRequest struct {
	RuleType           entity.RuleType  `json:"rule_type"`
	Threshold          *decimal.Decimal `json:"threshold"`
	RequiredApproverID *string          `json:"required_approver_id"`
	SequenceOrder      int              `json:"sequence_order"`
}

type ruleServiceImpl struct {
	rules    port.RuleRepository
	profiles port.ProfileRepository
	logger   Logger
}

// NewRuleService creates a new RuleService
func NewRuleService(rules port.RuleRepository, profiles port.ProfileRepository, logger Logger) RuleService {
	return &ruleServiceImpl{rules: rules, profiles: profiles, logger: logger}
}

func (s *ruleServiceImpl) authorize(actor policy.Actor) error {
	if !actor.Authenticated() {
		return entity.ErrUnauthenticated
	}
	if !policy.CanManageRules(actor) {
		return fmt.Errorf("manage rules: %w", entity.ErrForbidden)
	}
	return nil
}

func (s *ruleServiceImpl) List(ctx context.Context, actor policy.Actor) ([]*entity.ApprovalRule, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	rules, err := s.rules.ListByCompany(ctx, actor.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

func (s *ruleServiceImpl) Create(ctx context.Context, actor policy.Actor, req CreateRuleRequest) (*entity.ApprovalRule, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}

	verr := entity.NewValidationError()
	if !req.RuleType.IsValid() {
		verr.Add("rule_type", "unknown rule type")
	}
	if req.SequenceOrder < 1 {
		verr.Add("sequence_order", "must be at least 1")
	}
	switch {
	case req.RuleType == entity.RuleTypeThreshold && req.Threshold == nil:
		verr.Add("threshold", "is required for threshold rules")
	case req.Threshold != nil && req.RuleType != entity.RuleTypeThreshold:
		verr.Add("threshold", "only applies to threshold rules")
	case req.Threshold != nil && req.Threshold.IsNegative():
		verr.Add("threshold", "cannot be negative")
	}

	if req.RequiredApproverID != nil && *req.RequiredApproverID != "" {
		approver, err := s.profiles.GetByID(ctx, *req.RequiredApproverID)
		if err != nil {
			return nil, fmt.Errorf("failed to load approver: %w", err)
		}
		if approver == nil || approver.CompanyID != actor.CompanyID || !approver.Active {
			verr.Add("required_approver_id", "must be an active member of the company")
		}
	} else {
		req.RequiredApproverID = nil
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	rule := &entity.ApprovalRule{
		ID:                 uuid.NewString(),
		CompanyID:          actor.CompanyID,
		RuleType:           req.RuleType,
		Threshold:          req.Threshold,
		RequiredApproverID: req.RequiredApproverID,
		SequenceOrder:      req.SequenceOrder,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		s.logger.Error("Failed to create rule", "error", err, "company_id", actor.CompanyID)
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	s.logger.Info("Approval rule created", "rule_id", rule.ID, "rule_type", string(rule.RuleType), "company_id", rule.CompanyID)
	return rule, nil
}

func (s *ruleServiceImpl) Delete(ctx context.Context, actor policy.Actor, ruleID string) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	deleted, err := s.rules.Delete(ctx, actor.CompanyID, ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if !deleted {
		return fmt.Errorf("rule %s: %w", ruleID, entity.ErrNotFound)
	}
	s.logger.Info("Approval rule deleted", "rule_id", ruleID, "company_id", actor.CompanyID)
	return nil
}
