package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/openpulse/vitals/internal/cli"
	"github.com/openpulse/vitals/internal/engine"
	"github.com/openpulse/vitals/internal/model"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create and inspect account snapshots",
	}

	cmd.AddCommand(snapshotCreateCmd())
	cmd.AddCommand(snapshotListCmd())

	return cmd
}

func snapshotCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <account-id>",
		Short: "Capture the account's current scored state",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnapshotCreate,
	}

	cmd.Flags().String("reason", string(model.TriggerManual), "trigger reason (manual, scheduled, event, rag_auto, post_upload, post_health_calc)")
	cmd.Flags().Bool("force", false, "bypass the minimum-interval policy")

	return cmd
}

func runSnapshotCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reason, _ := cmd.Flags().GetString("reason")
	force, _ := cmd.Flags().GetBool("force")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	eng := engine.New(store)
	result, err := eng.CreateSnapshot(ctx, args[0], model.SnapshotTrigger(reason), force)
	if err != nil {
		return err
	}

	if result.Skipped {
		fmt.Println(cli.FormatInfo("snapshot skipped: " + result.SkipReason))
		return nil
	}

	snap := result.Snapshot
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("snapshot #%d created for %s", snap.Sequence, snap.AccountID)))
	if snap.OverallScore != nil {
		score := cli.ScoreStyle(*snap.OverallScore).Render(fmt.Sprintf("%.1f", *snap.OverallScore))
		fmt.Printf("  score %s  trend %s\n", score, cli.TrendIcon(snap.Trend)+" "+string(snap.Trend))
	}
	if snap.SignificantChange {
		fmt.Println(cli.FormatWarning("significant change since previous snapshot"))
	}
	return nil
}

func snapshotListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <account-id>",
		Short: "List recent snapshots for an account",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnapshotList,
	}

	cmd.Flags().Int("limit", 10, "maximum number of snapshots to show")

	return cmd
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	snapshots, err := store.GetRecentSnapshots(ctx, args[0], limit)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Println(cli.FormatInfo("no snapshots for account " + args[0]))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Seq", "Created", "Trigger", "Score", "Delta", "Trend", "Revenue", "Significant"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, snap := range snapshots {
		score, delta := "-", "-"
		if snap.OverallScore != nil {
			score = fmt.Sprintf("%.1f", *snap.OverallScore)
		}
		if snap.ScoreDelta != nil {
			delta = fmt.Sprintf("%+.1f", *snap.ScoreDelta)
		}
		significant := ""
		if snap.SignificantChange {
			significant = cli.WarningIcon
		}
		data = append(data, []string{
			fmt.Sprintf("%d", snap.Sequence),
			snap.CreatedAt.Format("2006-01-02 15:04"),
			string(snap.Trigger),
			score,
			delta,
			cli.TrendIcon(snap.Trend),
			fmt.Sprintf("%.0f", snap.Revenue),
			significant,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
