package handlers

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/fabriclab/fabtest/internal/report"
	"github.com/fabriclab/fabtest/internal/workload"
)

var (
	summaryTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#f9fafb"))

	summarySectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#3b82f6"))

	summaryDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6b7280"))

	summaryGreenStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#22c55e"))

	summaryRedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ef4444"))
)

// printRunSummary renders the final run summary to stdout.
func printRunSummary(run *report.TestRun, results []workload.Result, dir string) {
	fmt.Println()
	fmt.Println(summaryTitleStyle.Render(fmt.Sprintf("  fabtest: %s", run.Scenario)))
	fmt.Println()

	outcome := summaryGreenStyle.Render(string(run.Outcome))
	if run.Outcome != report.OutcomeSuccess {
		outcome = summaryRedStyle.Render(string(run.Outcome))
	}
	fmt.Printf("  %s %s\n", summarySectionStyle.Render("Outcome:"), outcome)

	if len(run.Stages) > 0 {
		fmt.Println()
		fmt.Println(summarySectionStyle.Render("  Stages"))
		for _, stage := range run.Stages {
			status := summaryGreenStyle.Render(string(stage.Status))
			if stage.Status == report.StageFailed {
				status = summaryRedStyle.Render(string(stage.Status))
			}
			fmt.Printf("    %-20s %s\n", stage.Name, status)
		}
	}

	if len(results) > 0 {
		fmt.Println()
		printWorkloadResults(results)
	}

	cleanup := fmt.Sprintf("complete, %d object(s) removed", run.CleanupRemoved)
	if !run.CleanupComplete {
		cleanup = summaryRedStyle.Render("incomplete")
	}
	fmt.Println()
	fmt.Printf("  %s %s\n", summarySectionStyle.Render("Cleanup:"), cleanup)

	for _, warning := range run.Warnings {
		fmt.Printf("  %s\n", summaryDimStyle.Render("warning: "+warning))
	}

	if dir != "" {
		fmt.Println()
		fmt.Printf("  %s\n", summaryDimStyle.Render("Artifacts: "+dir))
	}
	fmt.Println()
}

// printWorkloadResults renders per-job bandwidth and IOPS lines.
func printWorkloadResults(results []workload.Result) {
	fmt.Println(summarySectionStyle.Render("  Workload"))
	for _, r := range results {
		fmt.Printf("    %-12s read %7.1f MB/s %9.0f IOPS   write %7.1f MB/s %9.0f IOPS\n",
			r.Job,
			r.Read.BandwidthMBs(), r.Read.IOPS,
			r.Write.BandwidthMBs(), r.Write.IOPS)
	}
}
