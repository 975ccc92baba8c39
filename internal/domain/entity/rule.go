package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleType selects when a rule applies and how its tier combines
type RuleType string

const (
	RuleTypeSequential  RuleType = "sequential"
	RuleTypeThreshold   RuleType = "threshold"
	RuleTypeParallelAll RuleType = "parallel_all"
	RuleTypeParallelAny RuleType = "parallel_any"
)

// IsValid reports whether t is a known rule type
func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeSequential, RuleTypeThreshold, RuleTypeParallelAll, RuleTypeParallelAny:
		return true
	}
	return false
}

// TierMode returns the combination mode of approvals created from this rule type
func (t RuleType) TierMode() TierMode {
	if t == RuleTypeParallelAny {
		return TierModeAny
	}
	return TierModeAll
}

// ApprovalRule is a company template used to materialize approvals when an expense is created
type ApprovalRule struct {
	ID                 string           `json:"id"`
	CompanyID          string           `json:"company_id"`
	RuleType           RuleType         `json:"rule_type"`
	Threshold          *decimal.Decimal `json:"threshold,omitempty"`
	RequiredApproverID *string          `json:"required_approver_id,omitempty"`
	SequenceOrder      int              `json:"sequence_order"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Matches reports whether the rule applies to an expense of the given amount.
// Threshold rules apply strictly above the threshold; other rule types always apply.
func (r *ApprovalRule) Matches(amount decimal.Decimal) bool {
	if r.RuleType != RuleTypeThreshold {
		return true
	}
	if r.Threshold == nil {
		return false
	}
	return amount.GreaterThan(*r.Threshold)
}
