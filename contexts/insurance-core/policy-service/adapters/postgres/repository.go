package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meridian/contexts/insurance-core/policy-service/domain/entities"
	domainerrors "meridian/contexts/insurance-core/policy-service/domain/errors"
	"meridian/internal/shared/outbox"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) SavePolicy(ctx context.Context, policy entities.Policy) error {
	row, err := policyModelFromEntity(policy)
	if err != nil {
		return r.logError("policy_repo_encode_failed", err,
			"policy_id", policy.PolicyID,
		)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":      row.Status,
			"finished_at": row.FinishedAt,
			"history":     row.History,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("policy_repo_save_failed", create.Error,
			"policy_id", policy.PolicyID,
			"customer_id", policy.CustomerID,
		)
	}
	return nil
}

func (r *Repository) GetPolicy(ctx context.Context, policyID string) (entities.Policy, error) {
	var row policyModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(policyID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Policy{}, domainerrors.ErrPolicyNotFound
		}
		return entities.Policy{}, r.logError("policy_repo_get_failed", err,
			"policy_id", policyID,
		)
	}
	return row.toEntity()
}

func (r *Repository) ListPoliciesByCustomer(ctx context.Context, customerID string) ([]entities.Policy, error) {
	var rows []policyModel
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", strings.TrimSpace(customerID)).
		Order("created_at asc").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("policy_repo_list_failed", err,
			"customer_id", customerID,
		)
	}
	out := make([]entities.Policy, 0, len(rows))
	for _, row := range rows {
		policy, err := row.toEntity()
		if err != nil {
			return nil, r.logError("policy_repo_decode_failed", err,
				"policy_id", row.ID,
			)
		}
		out = append(out, policy)
	}
	return out, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, msg outbox.Message) error {
	row := outboxModel{
		ID:         msg.ID,
		EventType:  msg.EventType,
		Payload:    msg.Payload,
		Status:     msg.Status,
		RetryCount: msg.RetryCount,
		CreatedAt:  msg.CreatedAt,
	}
	if row.Status == "" {
		row.Status = outbox.StatusPending
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("policy_repo_outbox_append_failed", err,
			"outbox_id", msg.ID,
			"event_type", msg.EventType,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]outbox.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at asc").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("policy_repo_outbox_list_failed", err)
	}
	out := make([]outbox.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, outbox.Message{
			ID:         row.ID,
			EventType:  row.EventType,
			Payload:    row.Payload,
			Status:     row.Status,
			RetryCount: row.RetryCount,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, at time.Time) error {
	update := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("id = ?", outboxID).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": at,
		})
	if update.Error != nil {
		return r.logError("policy_repo_outbox_mark_failed", update.Error,
			"outbox_id", outboxID,
		)
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "insurance-core/policy-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("policy repository operation failed", fields...)
	return err
}

type policyModel struct {
	ID                        string          `gorm:"column:id;primaryKey"`
	CustomerID                string          `gorm:"column:customer_id"`
	ProductID                 string          `gorm:"column:product_id"`
	Category                  string          `gorm:"column:category"`
	SalesChannel              string          `gorm:"column:sales_channel"`
	PaymentMethod             string          `gorm:"column:payment_method"`
	Status                    string          `gorm:"column:status"`
	CreatedAt                 time.Time       `gorm:"column:created_at"`
	FinishedAt                *time.Time      `gorm:"column:finished_at"`
	Coverages                 []byte          `gorm:"column:coverages;type:jsonb"`
	Assistances               []byte          `gorm:"column:assistances;type:jsonb"`
	TotalMonthlyPremiumAmount decimal.Decimal `gorm:"column:total_monthly_premium_amount;type:numeric(14,2)"`
	InsuredAmount             decimal.Decimal `gorm:"column:insured_amount;type:numeric(14,2)"`
	History                   []byte          `gorm:"column:history;type:jsonb"`
}

func (policyModel) TableName() string {
	return "policies"
}

type historyRow struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func policyModelFromEntity(policy entities.Policy) (policyModel, error) {
	coverages, err := json.Marshal(policy.Coverages)
	if err != nil {
		return policyModel{}, err
	}
	assistances, err := json.Marshal(policy.Assistances)
	if err != nil {
		return policyModel{}, err
	}
	history := make([]historyRow, 0, len(policy.History))
	for _, entry := range policy.History {
		history = append(history, historyRow{
			Status:    string(entry.Status),
			Timestamp: entry.Timestamp,
		})
	}
	historyRaw, err := json.Marshal(history)
	if err != nil {
		return policyModel{}, err
	}
	return policyModel{
		ID:                        policy.PolicyID,
		CustomerID:                policy.CustomerID,
		ProductID:                 policy.ProductID,
		Category:                  policy.Category,
		SalesChannel:              policy.SalesChannel,
		PaymentMethod:             policy.PaymentMethod,
		Status:                    string(policy.Status),
		CreatedAt:                 policy.CreatedAt,
		FinishedAt:                policy.FinishedAt,
		Coverages:                 coverages,
		Assistances:               assistances,
		TotalMonthlyPremiumAmount: policy.TotalMonthlyPremiumAmount,
		InsuredAmount:             policy.InsuredAmount,
		History:                   historyRaw,
	}, nil
}

func (m policyModel) toEntity() (entities.Policy, error) {
	var coverages map[string]decimal.Decimal
	if len(m.Coverages) > 0 {
		if err := json.Unmarshal(m.Coverages, &coverages); err != nil {
			return entities.Policy{}, err
		}
	}
	var assistances []string
	if len(m.Assistances) > 0 {
		if err := json.Unmarshal(m.Assistances, &assistances); err != nil {
			return entities.Policy{}, err
		}
	}
	var rows []historyRow
	if len(m.History) > 0 {
		if err := json.Unmarshal(m.History, &rows); err != nil {
			return entities.Policy{}, err
		}
	}
	history := make([]entities.StatusHistory, 0, len(rows))
	for _, row := range rows {
		history = append(history, entities.StatusHistory{
			Status:    entities.PolicyStatus(row.Status),
			Timestamp: row.Timestamp,
		})
	}
	return entities.Policy{
		PolicyID:                  m.ID,
		CustomerID:                m.CustomerID,
		ProductID:                 m.ProductID,
		Category:                  m.Category,
		SalesChannel:              m.SalesChannel,
		PaymentMethod:             m.PaymentMethod,
		Status:                    entities.PolicyStatus(m.Status),
		CreatedAt:                 m.CreatedAt,
		FinishedAt:                m.FinishedAt,
		Coverages:                 coverages,
		Assistances:               assistances,
		TotalMonthlyPremiumAmount: m.TotalMonthlyPremiumAmount,
		InsuredAmount:             m.InsuredAmount,
		History:                   history,
	}, nil
}

type outboxModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	EventType   string     `gorm:"column:event_type"`
	Payload     []byte     `gorm:"column:payload;type:jsonb"`
	Status      string     `gorm:"column:status"`
	RetryCount  int        `gorm:"column:retry_count"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "policy_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
