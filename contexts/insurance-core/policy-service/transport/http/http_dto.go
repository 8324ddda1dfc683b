package http

import "github.com/shopspring/decimal"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreatePolicyRequest struct {
	CustomerID                string                     `json:"customer_id"`
	ProductID                 string                     `json:"product_id"`
	Category                  string                     `json:"category"`
	SalesChannel              string                     `json:"salesChannel"`
	PaymentMethod             string                     `json:"paymentMethod"`
	TotalMonthlyPremiumAmount decimal.Decimal            `json:"total_monthly_premium_amount"`
	InsuredAmount             decimal.Decimal            `json:"insured_amount"`
	Coverages                 map[string]decimal.Decimal `json:"coverages"`
	Assistances               []string                   `json:"assistances"`
}

type StatusHistoryDTO struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type PolicyDTO struct {
	PolicyID                  string                     `json:"id"`
	CustomerID                string                     `json:"customer_id"`
	ProductID                 string                     `json:"product_id"`
	Category                  string                     `json:"category"`
	SalesChannel              string                     `json:"salesChannel"`
	PaymentMethod             string                     `json:"paymentMethod"`
	Status                    string                     `json:"status"`
	CreatedAt                 string                     `json:"createdAt"`
	FinishedAt                string                     `json:"finishedAt,omitempty"`
	TotalMonthlyPremiumAmount decimal.Decimal            `json:"total_monthly_premium_amount"`
	InsuredAmount             decimal.Decimal            `json:"insured_amount"`
	Coverages                 map[string]decimal.Decimal `json:"coverages"`
	Assistances               []string                   `json:"assistances"`
	History                   []StatusHistoryDTO         `json:"history"`
}

type CreatePolicyResponse struct {
	Policy PolicyDTO `json:"policy"`
}

type GetPolicyResponse struct {
	Policy PolicyDTO `json:"policy"`
}

type ListPoliciesResponse struct {
	Policies []PolicyDTO `json:"policies"`
}

type CancelPolicyResponse struct {
	Policy PolicyDTO `json:"policy"`
}
