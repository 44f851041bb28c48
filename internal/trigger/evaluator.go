// Package trigger evaluates per-tenant playbook threshold configurations
// against account state and reports which accounts should fire a playbook.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
	"github.com/openpulse/vitals/internal/service"
)

// Result is the outcome of evaluating one playbook across an account scope.
// Accounts holds every evaluated account; only those with matches trigger.
type Result struct {
	Playbook  model.PlaybookType
	TenantID  string
	Accounts  []model.AccountTriggerResult
	Triggered bool
}

// TriggeredAccounts returns only the accounts that matched at least one
// condition.
func (r *Result) TriggeredAccounts() []model.AccountTriggerResult {
	var out []model.AccountTriggerResult
	for _, a := range r.Accounts {
		if a.Triggered() {
			out = append(out, a)
		}
	}
	return out
}

// Evaluator checks playbook trigger conditions. It never launches playbooks
// itself; it only returns the decision and the evidence list.
type Evaluator struct {
	storage service.Storage
	scorer  service.ProxyScorer
	now     func() time.Time
}

// NewEvaluator creates a trigger evaluator. The proxy scorer supplies
// point-in-time scores for accounts without a pre-computed one.
func NewEvaluator(storage service.Storage, scorer service.ProxyScorer) *Evaluator {
	return &Evaluator{
		storage: storage,
		scorer:  scorer,
		now:     time.Now,
	}
}

// Evaluate runs the playbook's condition set against the given accounts, or
// against every account of the tenant when accountIDs is empty. Conditions
// are OR-combined per account, and all matched conditions are reported for
// explainability. The configuration's last-evaluated timestamp is always
// stamped; last-triggered and the trigger count advance only when at least
// one account matched.
func (e *Evaluator) Evaluate(ctx context.Context, playbook model.PlaybookType, tenantID string, accountIDs []string) (*Result, error) {
	if !model.ValidPlaybookType(playbook) {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownPlaybookType, playbook)
	}

	cfg, err := e.loadConfig(ctx, tenantID, playbook)
	if err != nil {
		return nil, err
	}

	result := &Result{Playbook: playbook, TenantID: tenantID}

	if cfg.Enabled {
		accounts, err := e.accountsInScope(ctx, tenantID, accountIDs)
		if err != nil {
			return nil, err
		}

		for _, account := range accounts {
			evaluated, err := e.evaluateAccount(ctx, cfg, &account)
			if err != nil {
				return nil, err
			}
			result.Accounts = append(result.Accounts, *evaluated)
			if evaluated.Triggered() {
				result.Triggered = true
			}
		}
	} else {
		slog.Debug("Playbook disabled for tenant, skipping account evaluation",
			"tenant_id", tenantID,
			"playbook", playbook)
	}

	if err := e.storage.MarkTriggerEvaluated(ctx, tenantID, playbook, e.now().UTC(), result.Triggered); err != nil {
		return nil, fmt.Errorf("failed to record evaluation: %w", err)
	}

	return result, nil
}

// loadConfig fetches the tenant's trigger configuration, seeding a default
// one when none exists so evaluation degrades gracefully instead of failing.
func (e *Evaluator) loadConfig(ctx context.Context, tenantID string, playbook model.PlaybookType) (*model.TriggerConfig, error) {
	cfg, err := e.storage.GetTriggerConfig(ctx, tenantID, playbook)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to load trigger config: %w", err)
	}

	common.LogWarn("No trigger config for tenant, using defaults", common.Fields{
		"tenant_id": tenantID,
		"playbook":  playbook,
	})

	cfg = &model.TriggerConfig{
		TenantID: tenantID,
		Playbook: playbook,
		Enabled:  true,
	}
	if err := e.storage.SaveTriggerConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to seed trigger config: %w", err)
	}
	return cfg, nil
}

func (e *Evaluator) accountsInScope(ctx context.Context, tenantID string, accountIDs []string) ([]model.Account, error) {
	if len(accountIDs) == 0 {
		accounts, err := e.storage.GetAccountsByTenant(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to load tenant accounts: %w", err)
		}
		return accounts, nil
	}

	accounts := make([]model.Account, 0, len(accountIDs))
	for _, id := range accountIDs {
		account, err := e.storage.GetAccount(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load account %q: %w", id, err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, nil
}

func (e *Evaluator) evaluateAccount(ctx context.Context, cfg *model.TriggerConfig, account *model.Account) (*model.AccountTriggerResult, error) {
	result := &model.AccountTriggerResult{AccountID: account.ID}

	switch cfg.Playbook {
	case model.PlaybookRetentionRisk:
		if err := e.evaluateRetentionRisk(ctx, cfg, account, result); err != nil {
			return nil, err
		}
	case model.PlaybookAdoption:
		if err := e.evaluateAdoption(ctx, cfg, account, result); err != nil {
			return nil, err
		}
	case model.PlaybookSupportEscalation:
		if err := e.evaluateSupportEscalation(ctx, cfg, account, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Default thresholds applied when a tenant's configuration omits a value.
const (
	defaultHealthScoreThreshold   = 60.0
	defaultChurnRiskThreshold     = 0.7
	defaultAdoptionScoreThreshold = 50.0
	defaultActiveUserFloor        = 5.0
	defaultDAUMAUThreshold        = 0.2
	defaultFeatureBreadthMin      = 3.0
	defaultSupportScoreThreshold  = 50.0
	defaultCriticalIndicatorCount = 2.0
)

func (e *Evaluator) evaluateRetentionRisk(ctx context.Context, cfg *model.TriggerConfig, account *model.Account, result *model.AccountTriggerResult) error {
	floor := cfg.Threshold("health_score_threshold", defaultHealthScoreThreshold)
	score, err := e.overallScore(ctx, account)
	if err != nil {
		return err
	}
	if score != nil && *score < floor {
		result.Matches = append(result.Matches, model.TriggerMatch{
			Condition: "health score below threshold",
			Detail:    fmt.Sprintf("score %.1f < %.1f", *score, floor),
		})
	}

	if account.Status == model.AccountAtRisk {
		result.Matches = append(result.Matches, model.TriggerMatch{
			Condition: "account status at risk",
			Detail:    fmt.Sprintf("status %s", account.Status),
		})
	}

	churnFloor := cfg.Threshold("churn_risk_threshold", defaultChurnRiskThreshold)
	if account.ChurnRisk != nil && *account.ChurnRisk > churnFloor {
		result.Matches = append(result.Matches, model.TriggerMatch{
			Condition: "churn risk above threshold",
			Detail:    fmt.Sprintf("risk %.2f > %.2f", *account.ChurnRisk, churnFloor),
		})
	}

	return nil
}

// overallScore prefers the account's stored health score and falls back to a
// point-in-time proxy calculation for accounts that were never scored. Nil
// means no score could be determined and score conditions do not apply.
func (e *Evaluator) overallScore(ctx context.Context, account *model.Account) (*float64, error) {
	if account.HealthScore != nil {
		score := *account.HealthScore
		return &score, nil
	}
	if e.scorer == nil {
		return nil, nil
	}

	report, err := e.scorer(ctx, account.TenantID, account.ID)
	if err != nil {
		return nil, fmt.Errorf("proxy scoring failed: %w", err)
	}
	if report == nil || report.InsufficientData {
		return nil, nil
	}
	overall := report.Overall
	return &overall, nil
}

func (e *Evaluator) evaluateAdoption(ctx context.Context, cfg *model.TriggerConfig, account *model.Account, result *model.AccountTriggerResult) error {
	adoptionScore, indicatorCount, err := e.categoryScore(ctx, account, model.CategoryAdoption)
	if err != nil {
		return err
	}

	floor := cfg.Threshold("adoption_score_threshold", defaultAdoptionScoreThreshold)
	if adoptionScore != nil && *adoptionScore < floor {
		result.Matches = append(result.Matches, model.TriggerMatch{
			Condition: "adoption score below threshold",
			Detail:    fmt.Sprintf("score %.1f < %.1f", *adoptionScore, floor),
		})
	}

	userFloor := cfg.Threshold("active_user_floor", defaultActiveUserFloor)
	if float64(account.ActiveUsers) < userFloor {
		result.Matches = append(result.Matches, model.TriggerMatch{
			Condition: "active users below floor",
			Detail:    fmt.Sprintf("%d active users < %.0f", account.ActiveUsers, userFloor),
		})
	}

	ratioFloor := cfg.Threshold("dau_mau_threshold", defaultDAUMAUThreshold)
	if account.DAUMAURatio < ratioFloor {
		result.Matches = append(result.Matches, model.TriggerMatch{
			Condition: "daily to monthly active ratio below threshold",
			Detail:    fmt.Sprintf("ratio %.2f < %.2f", account.DAUMAURatio, ratioFloor),
		})
	}

	// Feature-usage breadth only applies when the tenant opted in.
	if cfg.Threshold("feature_breadth_enabled", 0) != 0 {
		breadthMin := cfg.Threshold("feature_breadth_min", defaultFeatureBreadthMin)
		if float64(indicatorCount) < breadthMin {
			result.Matches = append(result.Matches, model.TriggerMatch{
				Condition: "feature usage breadth below minimum",
				Detail:    fmt.Sprintf("%d adoption indicators < %.0f", indicatorCount, breadthMin),
			})
		}
	}

	return nil
}

func (e *Evaluator) evaluateSupportEscalation(ctx context.Context, cfg *model.TriggerConfig, account *model.Account, result *model.AccountTriggerResult) error {
	supportScore, _, err := e.categoryScore(ctx, account, model.CategorySupport)
	if err != nil {
		return err
	}

	floor := cfg.Threshold("support_score_threshold", defaultSupportScoreThreshold)
	if supportScore != nil && *supportScore < floor {
		result.Matches = append(result.Matches, model.TriggerMatch{
			Condition: "support score below threshold",
			Detail:    fmt.Sprintf("score %.1f < %.1f", *supportScore, floor),
		})
	}

	criticalMin := cfg.Threshold("critical_indicator_count", defaultCriticalIndicatorCount)
	criticalCount, err := e.criticalSupportIndicators(ctx, account)
	if err != nil {
		return err
	}
	if float64(criticalCount) >= criticalMin {
		result.Matches = append(result.Matches, model.TriggerMatch{
			Condition: "critical support indicators at or above count",
			Detail:    fmt.Sprintf("%d critical indicators >= %.0f", criticalCount, criticalMin),
		})
	}

	return nil
}

// categoryScore computes the account's score for one category through the
// proxy scorer, along with the number of readings in that category.
func (e *Evaluator) categoryScore(ctx context.Context, account *model.Account, category model.IndicatorCategory) (*float64, int, error) {
	indicators, err := e.storage.GetIndicatorsByAccount(ctx, account.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load indicators: %w", err)
	}

	count := 0
	for _, ind := range indicators {
		if ind.Category == category {
			count++
		}
	}

	if e.scorer == nil {
		return nil, count, nil
	}

	report, err := e.scorer(ctx, account.TenantID, account.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("proxy scoring failed: %w", err)
	}
	if report == nil {
		return nil, count, nil
	}

	if cs, ok := report.Categories[category]; ok && cs.Defined {
		score := cs.Score
		return &score, count, nil
	}
	return nil, count, nil
}

// criticalSupportIndicators counts support readings carrying critical impact.
func (e *Evaluator) criticalSupportIndicators(ctx context.Context, account *model.Account) (int, error) {
	indicators, err := e.storage.GetIndicatorsByAccount(ctx, account.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load indicators: %w", err)
	}

	count := 0
	for _, ind := range indicators {
		if ind.Category == model.CategorySupport && ind.Impact == model.ImpactCritical {
			count++
		}
	}
	return count, nil
}
