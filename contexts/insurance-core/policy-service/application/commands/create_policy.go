package commands

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	application "meridian/contexts/insurance-core/policy-service/application"
	"meridian/contexts/insurance-core/policy-service/application/lifecycle"
	"meridian/contexts/insurance-core/policy-service/domain/entities"
	domainerrors "meridian/contexts/insurance-core/policy-service/domain/errors"
	"meridian/contexts/insurance-core/policy-service/domain/fraud"
	"meridian/contexts/insurance-core/policy-service/ports"
)

type CreatePolicyCommand struct {
	CustomerID                string
	ProductID                 string
	Category                  string
	SalesChannel              string
	PaymentMethod             string
	TotalMonthlyPremiumAmount decimal.Decimal
	InsuredAmount             decimal.Decimal
	Coverages                 map[string]decimal.Decimal
	Assistances               []string
}

// CreatePolicyUseCase is the intake path: persist the RECEIVED policy,
// publish the created event, call the fraud classifier synchronously, and
// hand the verdict to the lifecycle coordinator. A classifier failure
// propagates to the caller; no retry happens here.
type CreatePolicyUseCase struct {
	Repository ports.PolicyRepository
	Fraud      ports.FraudGateway
	Lifecycle  *lifecycle.Coordinator
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc CreatePolicyUseCase) Execute(ctx context.Context, cmd CreatePolicyCommand) (entities.Policy, error) {
	logger := application.ResolveLogger(uc.Logger)

	policyID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Policy{}, err
	}
	now := uc.Clock.Now().UTC()
	policy := entities.Policy{
		PolicyID:                  policyID,
		CustomerID:                strings.TrimSpace(cmd.CustomerID),
		ProductID:                 strings.TrimSpace(cmd.ProductID),
		Category:                  strings.TrimSpace(cmd.Category),
		SalesChannel:              strings.TrimSpace(cmd.SalesChannel),
		PaymentMethod:             strings.TrimSpace(cmd.PaymentMethod),
		Status:                    entities.PolicyStatusReceived,
		CreatedAt:                 now,
		Coverages:                 cmd.Coverages,
		Assistances:               cmd.Assistances,
		TotalMonthlyPremiumAmount: cmd.TotalMonthlyPremiumAmount,
		InsuredAmount:             cmd.InsuredAmount,
		History: []entities.StatusHistory{
			{Status: entities.PolicyStatusReceived, Timestamp: now},
		},
	}
	if !policy.ValidateCreate() {
		return entities.Policy{}, domainerrors.ErrInvalidPolicyInput
	}

	if err := uc.Repository.SavePolicy(ctx, policy); err != nil {
		return entities.Policy{}, err
	}
	if err := uc.Lifecycle.PublishCreated(ctx, policy); err != nil {
		return entities.Policy{}, err
	}
	logger.Info("policy request received",
		"event", "policy_request_received",
		"module", "insurance-core/policy-service",
		"layer", "application",
		"policy_id", policy.PolicyID,
		"customer_id", policy.CustomerID,
	)

	analysis, err := uc.Fraud.Analyze(ctx, policy.PolicyID, policy.CustomerID)
	if err != nil {
		return entities.Policy{}, err
	}
	classification := fraud.ClassificationFrom(analysis.Classification)
	logger.Info("fraud analysis completed",
		"event", "policy_fraud_analyzed",
		"module", "insurance-core/policy-service",
		"layer", "application",
		"policy_id", policy.PolicyID,
		"classification", string(classification),
	)

	if err := uc.Lifecycle.OnFraudResult(ctx, policy.PolicyID, classification, policy.Category, policy.InsuredAmount); err != nil {
		return entities.Policy{}, err
	}
	return uc.Lifecycle.Reload(ctx, policy.PolicyID)
}
