package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/openpulse/vitals/internal/cli"
	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/engine"
	"github.com/openpulse/vitals/internal/model"
)

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score [account-id]",
		Short: "Compute account health scores",
		Long: `Classify an account's indicator readings against reference ranges and
roll them up into category and overall health scores.

With an account ID, prints the full per-category report. With --tenant,
scores every account of the tenant and prints a summary table.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScore,
	}

	cmd.Flags().String("tenant", "", "score all accounts of this tenant")

	return cmd
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tenantID, _ := cmd.Flags().GetString("tenant")

	if len(args) == 0 && tenantID == "" {
		return fmt.Errorf("%w: provide an account ID or --tenant", common.ErrMissingConfig)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	eng := engine.New(store)

	if len(args) == 1 {
		return scoreOne(ctx, eng, args[0])
	}
	return scoreTenant(ctx, store, eng, tenantID)
}

func scoreOne(ctx context.Context, eng *engine.HealthEngine, accountID string) error {
	report, err := eng.ComputeAccountHealth(ctx, accountID)
	if err != nil {
		return err
	}

	fmt.Println(cli.TitleStyle.Render(cli.PulseIcon + " Account Health: " + accountID))

	if report.InsufficientData {
		fmt.Println(cli.FormatWarning("insufficient data: no indicator parsed successfully"))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Category", "Score", "Indicators", "Excluded"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	categories := make([]model.IndicatorCategory, 0, len(report.Categories))
	for cat := range report.Categories {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	var data [][]string
	for _, cat := range categories {
		cs := report.Categories[cat]
		score := "-"
		if cs.Defined {
			score = fmt.Sprintf("%.1f", cs.Score)
		}
		data = append(data, []string{
			string(cat),
			score,
			fmt.Sprintf("%d", cs.Contributing),
			fmt.Sprintf("%d", cs.Unparsed),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	overall := cli.ScoreStyle(report.Overall).Render(fmt.Sprintf("%.1f", report.Overall))
	fmt.Println(cli.BoldStyle.Render("Overall: ") + overall)
	return nil
}

func scoreTenant(ctx context.Context, store accountLister, eng *engine.HealthEngine, tenantID string) error {
	accounts, err := store.GetAccountsByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant accounts: %w", err)
	}
	if len(accounts) == 0 {
		fmt.Println(cli.FormatInfo("no accounts for tenant " + tenantID))
		return nil
	}

	bar := progressbar.NewOptions(len(accounts),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Scoring accounts...[reset]"),
	)

	type scored struct {
		account model.Account
		report  *model.HealthReport
	}
	results := make([]scored, 0, len(accounts))
	for _, account := range accounts {
		report, err := eng.ComputeAccountHealth(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("failed to score account %q: %w", account.ID, err)
		}
		results = append(results, scored{account: account, report: report})
		_ = bar.Add(1)
	}
	fmt.Fprintln(os.Stderr)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Account", "Name", "Score", "Status"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, r := range results {
		score := "insufficient data"
		if !r.report.InsufficientData {
			score = cli.ScoreStyle(r.report.Overall).Render(fmt.Sprintf("%.1f", r.report.Overall))
		}
		data = append(data, []string{
			r.account.ID,
			r.account.Name,
			score,
			string(r.account.Status),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// accountLister is the slice of storage the bulk score path needs.
type accountLister interface {
	GetAccountsByTenant(ctx context.Context, tenantID string) ([]model.Account, error)
}
