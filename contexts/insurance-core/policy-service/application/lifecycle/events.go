package lifecycle

import "time"

const (
	TopicPolicyCreated       = "policy.request.created"
	TopicPolicyStatusChanged = "policy.status.changed"
)

type PolicyCreatedPayload struct {
	PolicyID      string    `json:"policy_id"`
	CustomerID    string    `json:"customer_id"`
	ProductID     string    `json:"product_id"`
	Status        string    `json:"status"`
	OccurredAtUTC time.Time `json:"occurred_at_utc"`
}

type PolicyStatusChangedPayload struct {
	PolicyID      string    `json:"policy_id"`
	CustomerID    string    `json:"customer_id"`
	ProductID     string    `json:"product_id"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason"`
	OccurredAtUTC time.Time `json:"occurred_at_utc"`
}
