package models

import "github.com/shopspring/decimal"

// Tier is the quality/price class of a generation unit. It determines both
// the credit cost and which worker endpoint services the unit.
type Tier string

const (
	TierLite Tier = "lite"
	TierCore Tier = "core"
	TierPro  Tier = "pro"
)

// tierSpec is the single source of truth for per-tier cost and routing.
// Debit, refund, and dispatch all go through this table so the three call
// sites cannot drift apart.
type tierSpec struct {
	cost decimal.Decimal
	path string
}

var tierSpecs = map[Tier]tierSpec{
	TierLite: {cost: decimal.RequireFromString("0.1"), path: "/v1/generate/lite"},
	TierCore: {cost: decimal.NewFromInt(1), path: "/v1/generate/core"},
	TierPro:  {cost: decimal.NewFromInt(2), path: "/v1/generate/pro"},
}

func (t Tier) IsValid() bool {
	_, ok := tierSpecs[t]
	return ok
}

// Cost returns the per-unit credit cost. Unknown tiers price as pro, the
// most expensive class, so a bad value can never undercharge.
func (t Tier) Cost() decimal.Decimal {
	spec, ok := tierSpecs[t]
	if !ok {
		return tierSpecs[TierPro].cost
	}
	return spec.cost
}

// EndpointPath returns the worker endpoint path for this tier. Unknown
// tiers route to the pro endpoint, mirroring Cost.
func (t Tier) EndpointPath() string {
	spec, ok := tierSpecs[t]
	if !ok {
		return tierSpecs[TierPro].path
	}
	return spec.path
}

func (t Tier) String() string { return string(t) }
