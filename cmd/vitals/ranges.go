package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/openpulse/vitals/internal/cli"
	"github.com/openpulse/vitals/internal/model"
)

func rangesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ranges",
		Short: "Inspect and override indicator reference ranges",
	}

	cmd.AddCommand(rangesListCmd())
	cmd.AddCommand(rangesSetCmd())

	return cmd
}

func rangesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List effective reference ranges",
		Long: `List the effective reference range per indicator: system defaults
overlaid with the tenant's overrides when --tenant is given.`,
		RunE: runRangesList,
	}

	cmd.Flags().String("tenant", "", "show the effective ranges for this tenant")

	return cmd
}

func runRangesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	tenantID, _ := cmd.Flags().GetString("tenant")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ranges, err := store.GetReferenceRanges(ctx, tenantID)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Indicator", "Unit", "Polarity", "Critical", "At Risk", "Healthy", "Source", "Version"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, r := range ranges {
		source := "system"
		if r.TenantID != "" {
			source = r.TenantID
		}
		data = append(data, []string{
			r.Indicator,
			string(r.Unit),
			string(r.Polarity),
			formatBand(r.Critical),
			formatBand(r.AtRisk),
			formatBand(r.Healthy),
			source,
			fmt.Sprintf("%d", r.Version),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func formatBand(b model.Band) string {
	return fmt.Sprintf("%g..%g", b.Min, b.Max)
}

func rangesSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <indicator>",
		Short: "Create or replace a reference range",
		Long: `Create or replace a reference range. Without --tenant the system
default row is written; with --tenant the range becomes a tenant override.`,
		Args: cobra.ExactArgs(1),
		RunE: runRangesSet,
	}

	cmd.Flags().String("tenant", "", "tenant the override applies to (empty for system default)")
	cmd.Flags().String("unit", "", "unit family (percent, currency, days, hours, count)")
	cmd.Flags().String("polarity", string(model.HigherIsBetter), "higher_is_better or lower_is_better")
	cmd.Flags().Float64Slice("critical", nil, "critical band as min,max")
	cmd.Flags().Float64Slice("at-risk", nil, "at-risk band as min,max")
	cmd.Flags().Float64Slice("healthy", nil, "healthy band as min,max")

	return cmd
}

func runRangesSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tenantID, _ := cmd.Flags().GetString("tenant")
	unit, _ := cmd.Flags().GetString("unit")
	polarity, _ := cmd.Flags().GetString("polarity")

	critical, err := bandFlag(cmd, "critical")
	if err != nil {
		return err
	}
	atRisk, err := bandFlag(cmd, "at-risk")
	if err != nil {
		return err
	}
	healthy, err := bandFlag(cmd, "healthy")
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	r := &model.ReferenceRange{
		TenantID:  tenantID,
		Indicator: args[0],
		Unit:      model.Unit(unit),
		Polarity:  model.Polarity(polarity),
		Critical:  critical,
		AtRisk:    atRisk,
		Healthy:   healthy,
	}
	if err := store.SaveReferenceRange(ctx, r); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("reference range saved for %q", args[0])))
	return nil
}

func bandFlag(cmd *cobra.Command, name string) (model.Band, error) {
	values, _ := cmd.Flags().GetFloat64Slice(name)
	if len(values) != 2 {
		return model.Band{}, fmt.Errorf("--%s requires exactly two values: min,max", name)
	}
	return model.Band{Min: values[0], Max: values[1]}, nil
}
