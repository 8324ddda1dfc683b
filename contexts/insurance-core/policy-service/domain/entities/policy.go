package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PolicyStatus string

const (
	PolicyStatusReceived  PolicyStatus = "RECEIVED"
	PolicyStatusValidated PolicyStatus = "VALIDATED"
	PolicyStatusPending   PolicyStatus = "PENDING"
	PolicyStatusApproved  PolicyStatus = "APPROVED"
	PolicyStatusRejected  PolicyStatus = "REJECTED"
	PolicyStatusCancelled PolicyStatus = "CANCELLED"
)

// allowedTransitions is the only source of truth for the lifecycle graph.
// Terminal statuses have no outgoing edges.
var allowedTransitions = map[PolicyStatus][]PolicyStatus{
	PolicyStatusReceived:  {PolicyStatusValidated, PolicyStatusCancelled},
	PolicyStatusValidated: {PolicyStatusPending, PolicyStatusRejected, PolicyStatusCancelled},
	PolicyStatusPending:   {PolicyStatusApproved, PolicyStatusRejected, PolicyStatusCancelled},
}

func (s PolicyStatus) CanTransitionTo(next PolicyStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s PolicyStatus) IsFinal() bool {
	return s == PolicyStatusApproved || s == PolicyStatusRejected || s == PolicyStatusCancelled
}

type StatusHistory struct {
	Status    PolicyStatus
	Timestamp time.Time
}

// Policy is an immutable snapshot of one policy request. Transitions never
// mutate in place: With* helpers return a fresh copy and the previous value
// stays valid for callers still holding it.
type Policy struct {
	PolicyID                  string
	CustomerID                string
	ProductID                 string
	Category                  string
	SalesChannel              string
	PaymentMethod             string
	Status                    PolicyStatus
	CreatedAt                 time.Time
	FinishedAt                *time.Time
	Coverages                 map[string]decimal.Decimal
	Assistances               []string
	TotalMonthlyPremiumAmount decimal.Decimal
	InsuredAmount             decimal.Decimal
	History                   []StatusHistory
}

func (p Policy) ValidateCreate() bool {
	return strings.TrimSpace(p.CustomerID) != "" &&
		strings.TrimSpace(p.ProductID) != "" &&
		strings.TrimSpace(p.Category) != "" &&
		strings.TrimSpace(p.SalesChannel) != "" &&
		strings.TrimSpace(p.PaymentMethod) != "" &&
		p.TotalMonthlyPremiumAmount.IsPositive() &&
		p.InsuredAmount.IsPositive() &&
		len(p.Coverages) > 0 &&
		len(p.Assistances) > 0
}

func (p Policy) IsFinalStatus() bool {
	return p.Status.IsFinal()
}

// WithStatus returns a copy in the new status with a history entry appended.
// History is copied so the receiver's slice is never shared with the result.
func (p Policy) WithStatus(next PolicyStatus, at time.Time) Policy {
	history := make([]StatusHistory, 0, len(p.History)+1)
	history = append(history, p.History...)
	history = append(history, StatusHistory{Status: next, Timestamp: at})

	out := p
	out.Status = next
	out.History = history
	return out
}

// WithFinishedAt returns a finalized copy. Callers set this only when the
// policy has entered a terminal status.
func (p Policy) WithFinishedAt(at time.Time) Policy {
	out := p
	out.FinishedAt = &at
	return out
}
