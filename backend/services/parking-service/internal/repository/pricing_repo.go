package repository

import (
	"context"

	"smartpark/backend/services/parking-service/internal/models"
)

// LatestPricingRule returns the rule with the greatest effective_from that is already in
// effect. ErrNotFound means no rule applies yet.
func (q *pgQueries) LatestPricingRule(ctx context.Context) (*models.PricingRule, error) {
	const query = `
		SELECT rule_id, rate_per_hour, effective_from
		FROM pricing_rules
		WHERE effective_from <= NOW()
		ORDER BY effective_from DESC, rule_id DESC
		LIMIT 1
	`
	var r models.PricingRule
	if err := q.db.QueryRowContext(ctx, query).Scan(&r.ID, &r.RatePerHour, &r.EffectiveFrom); err != nil {
		return nil, classify(err)
	}
	return &r, nil
}

func (q *pgQueries) CreatePricingRule(ctx context.Context, rule *models.PricingRule) error {
	const query = `
		INSERT INTO pricing_rules (rate_per_hour, effective_from)
		VALUES ($1, $2)
		RETURNING rule_id
	`
	return classify(q.db.QueryRowContext(ctx, query, rule.RatePerHour, rule.EffectiveFrom).Scan(&rule.ID))
}
