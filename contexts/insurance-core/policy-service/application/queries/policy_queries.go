package queries

import (
	"context"
	"strings"

	"meridian/contexts/insurance-core/policy-service/domain/entities"
	domainerrors "meridian/contexts/insurance-core/policy-service/domain/errors"
	"meridian/contexts/insurance-core/policy-service/ports"
)

type QueryUseCase struct {
	Repository ports.PolicyRepository
}

func (uc QueryUseCase) GetPolicy(ctx context.Context, policyID string) (entities.Policy, error) {
	policyID = strings.TrimSpace(policyID)
	if policyID == "" {
		return entities.Policy{}, domainerrors.ErrPolicyNotFound
	}
	return uc.Repository.GetPolicy(ctx, policyID)
}

func (uc QueryUseCase) ListPoliciesByCustomer(ctx context.Context, customerID string) ([]entities.Policy, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domainerrors.ErrInvalidPolicyInput
	}
	return uc.Repository.ListPoliciesByCustomer(ctx, customerID)
}
