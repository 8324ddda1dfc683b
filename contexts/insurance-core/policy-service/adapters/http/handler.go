package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"meridian/contexts/insurance-core/policy-service/application/commands"
	"meridian/contexts/insurance-core/policy-service/application/queries"
	"meridian/contexts/insurance-core/policy-service/domain/entities"
	httptransport "meridian/contexts/insurance-core/policy-service/transport/http"
)

type Handler struct {
	CreatePolicy commands.CreatePolicyUseCase
	CancelPolicy commands.CancelPolicyUseCase
	Queries      queries.QueryUseCase
	Logger       *slog.Logger
}

func (h Handler) CreatePolicyHandler(
	ctx context.Context,
	req httptransport.CreatePolicyRequest,
) (httptransport.CreatePolicyResponse, error) {
	policy, err := h.CreatePolicy.Execute(ctx, commands.CreatePolicyCommand{
		CustomerID:                req.CustomerID,
		ProductID:                 req.ProductID,
		Category:                  req.Category,
		SalesChannel:              req.SalesChannel,
		PaymentMethod:             req.PaymentMethod,
		TotalMonthlyPremiumAmount: req.TotalMonthlyPremiumAmount,
		InsuredAmount:             req.InsuredAmount,
		Coverages:                 req.Coverages,
		Assistances:               req.Assistances,
	})
	if err != nil {
		return httptransport.CreatePolicyResponse{}, err
	}
	return httptransport.CreatePolicyResponse{Policy: mapPolicy(policy)}, nil
}

func (h Handler) GetPolicyHandler(ctx context.Context, policyID string) (httptransport.GetPolicyResponse, error) {
	policy, err := h.Queries.GetPolicy(ctx, policyID)
	if err != nil {
		return httptransport.GetPolicyResponse{}, err
	}
	return httptransport.GetPolicyResponse{Policy: mapPolicy(policy)}, nil
}

func (h Handler) ListPoliciesHandler(ctx context.Context, customerID string) (httptransport.ListPoliciesResponse, error) {
	policies, err := h.Queries.ListPoliciesByCustomer(ctx, customerID)
	if err != nil {
		return httptransport.ListPoliciesResponse{}, err
	}
	out := make([]httptransport.PolicyDTO, 0, len(policies))
	for _, policy := range policies {
		out = append(out, mapPolicy(policy))
	}
	return httptransport.ListPoliciesResponse{Policies: out}, nil
}

func (h Handler) CancelPolicyHandler(ctx context.Context, policyID string) (httptransport.CancelPolicyResponse, error) {
	policy, err := h.CancelPolicy.Execute(ctx, policyID)
	if err != nil {
		return httptransport.CancelPolicyResponse{}, err
	}
	return httptransport.CancelPolicyResponse{Policy: mapPolicy(policy)}, nil
}

func mapPolicy(policy entities.Policy) httptransport.PolicyDTO {
	history := make([]httptransport.StatusHistoryDTO, 0, len(policy.History))
	for _, entry := range policy.History {
		history = append(history, httptransport.StatusHistoryDTO{
			Status:    string(entry.Status),
			Timestamp: entry.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	dto := httptransport.PolicyDTO{
		PolicyID:                  policy.PolicyID,
		CustomerID:                policy.CustomerID,
		ProductID:                 policy.ProductID,
		Category:                  policy.Category,
		SalesChannel:              policy.SalesChannel,
		PaymentMethod:             policy.PaymentMethod,
		Status:                    string(policy.Status),
		CreatedAt:                 policy.CreatedAt.UTC().Format(time.RFC3339),
		TotalMonthlyPremiumAmount: policy.TotalMonthlyPremiumAmount,
		InsuredAmount:             policy.InsuredAmount,
		Coverages:                 policy.Coverages,
		Assistances:               policy.Assistances,
		History:                   history,
	}
	if policy.FinishedAt != nil {
		dto.FinishedAt = policy.FinishedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
