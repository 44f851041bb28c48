package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/openpulse/vitals/internal/cli"
	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/engine"
	"github.com/openpulse/vitals/internal/model"
)

func triggersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triggers",
		Short: "Evaluate and configure playbook triggers",
	}

	cmd.AddCommand(triggersEvalCmd())
	cmd.AddCommand(triggersSetCmd())

	return cmd
}

func triggersEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <playbook-type>",
		Short: "Evaluate a playbook's trigger conditions",
		Long: `Evaluate one playbook's threshold conditions (retention_risk, adoption,
support_escalation) against a tenant's accounts. Conditions are OR-combined
and every matched condition is reported.`,
		Args: cobra.ExactArgs(1),
		RunE: runTriggersEval,
	}

	cmd.Flags().String("tenant", "", "tenant to evaluate (required)")
	cmd.Flags().StringSlice("accounts", nil, "restrict evaluation to these account IDs")
	cmd.Flags().Bool("rescore", false, "recompute account health before evaluating")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runTriggersEval(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tenantID, _ := cmd.Flags().GetString("tenant")
	accountIDs, _ := cmd.Flags().GetStringSlice("accounts")
	rescore, _ := cmd.Flags().GetBool("rescore")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	eng := engine.New(store)

	if rescore {
		accounts, err := store.GetAccountsByTenant(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to load tenant accounts: %w", err)
		}

		bar := progressbar.NewOptions(len(accounts),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan][bold]Rescoring accounts...[reset]"),
		)
		for _, account := range accounts {
			if _, err := eng.ComputeAccountHealth(ctx, account.ID); err != nil {
				return fmt.Errorf("failed to rescore account %q: %w", account.ID, err)
			}
			_ = bar.Add(1)
		}
		fmt.Fprintln(os.Stderr)
	}

	result, err := eng.EvaluateTrigger(ctx, model.PlaybookType(args[0]), tenantID, accountIDs)
	if err != nil {
		return err
	}

	triggered := result.TriggeredAccounts()
	if len(triggered) == 0 {
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s: no accounts triggered (%d evaluated)",
			result.Playbook, len(result.Accounts))))
		return nil
	}

	fmt.Println(cli.FormatWarning(fmt.Sprintf("%s: %d of %d accounts triggered",
		result.Playbook, len(triggered), len(result.Accounts))))

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Account", "Condition", "Detail"})

	var data [][]string
	for _, account := range triggered {
		for i, match := range account.Matches {
			id := account.AccountID
			if i > 0 {
				id = ""
			}
			data = append(data, []string{id, match.Condition, match.Detail})
		}
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func triggersSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <playbook-type>",
		Short: "Configure a playbook's thresholds for a tenant",
		Args:  cobra.ExactArgs(1),
		RunE:  runTriggersSet,
	}

	cmd.Flags().String("tenant", "", "tenant to configure (required)")
	cmd.Flags().Bool("enabled", true, "whether the playbook trigger is active")
	cmd.Flags().StringToString("threshold", nil, "named threshold values, e.g. --threshold health_score_threshold=60")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runTriggersSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tenantID, _ := cmd.Flags().GetString("tenant")
	enabled, _ := cmd.Flags().GetBool("enabled")
	raw, _ := cmd.Flags().GetStringToString("threshold")

	thresholds := make(map[string]float64, len(raw))
	for name, value := range raw {
		var v float64
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%g", &v); err != nil {
			return fmt.Errorf("%w: threshold %s=%q is not numeric", common.ErrInvalidConfig, name, value)
		}
		thresholds[name] = v
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	cfg := &model.TriggerConfig{
		TenantID:   tenantID,
		Playbook:   model.PlaybookType(args[0]),
		Enabled:    enabled,
		Thresholds: thresholds,
	}
	if err := store.SaveTriggerConfig(ctx, cfg); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("trigger config saved for %s/%s", tenantID, args[0])))
	return nil
}
