package commands

import (
	"context"
	"log/slog"
	"strings"

	application "meridian/contexts/insurance-core/policy-service/application"
	"meridian/contexts/insurance-core/policy-service/application/lifecycle"
	"meridian/contexts/insurance-core/policy-service/domain/entities"
	domainerrors "meridian/contexts/insurance-core/policy-service/domain/errors"
)

const cancelReasonCustomerRequest = "BY_CUSTOMER_REQUEST"

// CancelPolicyUseCase cancels a policy on customer request. Cancelling an
// already-final policy surfaces ErrCancelConflict from the coordinator.
type CancelPolicyUseCase struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
}

func (uc CancelPolicyUseCase) Execute(ctx context.Context, policyID string) (entities.Policy, error) {
	logger := application.ResolveLogger(uc.Logger)
	policyID = strings.TrimSpace(policyID)
	if policyID == "" {
		return entities.Policy{}, domainerrors.ErrPolicyNotFound
	}

	cancelled, err := uc.Lifecycle.Cancel(ctx, policyID, cancelReasonCustomerRequest)
	if err != nil {
		return entities.Policy{}, err
	}
	logger.Info("policy cancelled",
		"event", "policy_cancelled",
		"module", "insurance-core/policy-service",
		"layer", "application",
		"policy_id", cancelled.PolicyID,
		"status", string(cancelled.Status),
	)
	return cancelled, nil
}
