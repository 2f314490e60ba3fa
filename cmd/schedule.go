package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/mautops/schedule-gin/internal/config"
	"github.com/mautops/schedule-gin/internal/container"
	"github.com/mautops/schedule-gin/internal/scheduling"
	"github.com/mautops/schedule-gin/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect project schedules",
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the schedule of a project",
	Long: `Print every task of a project with its planned dates and status,
followed by the dependencies between them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, _ := cmd.Flags().GetString("org")
		projectID, _ := cmd.Flags().GetString("project")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger := logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.WarnLevel)

		ctr, err := container.NewContainer(cfg, logger, false)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		schedule, err := ctr.Scheduling().GetProjectSchedule(ctx, service.Scope{
			OrganizationID: orgID,
			ProjectID:      projectID,
		})
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(schedule)
		}
		return printSchedule(cmd.OutOrStdout(), schedule)
	},
}

// printSchedule 以表格输出项目排程
func printSchedule(w io.Writer, schedule *service.ProjectSchedule) error {
	fmt.Fprintf(w, "%s %s\n\n", bold("Project"), schedule.ProjectID)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTART\tEND\tDAYS\tPROGRESS\tSTATUS")
	for _, t := range schedule.Tasks {
		name := t.Name
		if t.DatesPinned {
			name += " *"
		}
		days := "-"
		if t.DurationDays != nil {
			days = fmt.Sprintf("%d", *t.DurationDays)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d%%\t%s\n",
			t.ID, name, showDate(t.PlannedStartDate), showDate(t.PlannedEndDate),
			days, t.ProgressPercent, statusLabel(t.Status))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(schedule.Dependencies) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%s\n", bold("Dependencies"))
	for _, d := range schedule.Dependencies {
		lag := ""
		if d.LagDays != 0 {
			lag = fmt.Sprintf(" lag %+d", d.LagDays)
		}
		fmt.Fprintf(w, "  %s -> %s %s%s\n", d.PredecessorTaskID, d.SuccessorTaskID, dim(d.Type), lag)
	}
	return nil
}

func showDate(d *service.Date) string {
	if d == nil {
		return "-"
	}
	return d.Format(scheduling.DateLayout)
}

// statusLabel 状态着色,放在最后一列避免影响对齐
func statusLabel(status string) string {
	switch scheduling.Status(status) {
	case scheduling.StatusCompleted:
		return green(status)
	case scheduling.StatusInProgress:
		return cyan(status)
	case scheduling.StatusPaused:
		return yellow(status)
	default:
		return dim(status)
	}
}

func init() {
	scheduleShowCmd.Flags().String("org", "", "Organization ID")
	scheduleShowCmd.Flags().String("project", "", "Project ID")
	scheduleShowCmd.Flags().Bool("json", false, "Print the schedule as JSON")
	_ = scheduleShowCmd.MarkFlagRequired("org")
	_ = scheduleShowCmd.MarkFlagRequired("project")

	scheduleCmd.AddCommand(scheduleShowCmd)
	rootCmd.AddCommand(scheduleCmd)
}
