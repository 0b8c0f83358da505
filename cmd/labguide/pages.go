package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"labguide/internal/tutorial"
)

var checkCmd = &cobra.Command{
	Use:   "check [page]",
	Short: "Validate a page's tasks and record progress",
	Long: `Walks the page's declared tasks in order, runs their checks
against the workbench service, and persists the completion record.
Without an argument the first page of the tutorial is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

var doneCmd = &cobra.Command{
	Use:   "done <page> <task>",
	Short: "Confirm a manual task as completed",
	Args:  cobra.ExactArgs(2),
	RunE:  runDone,
}

var resetCmd = &cobra.Command{
	Use:   "reset [page]",
	Short: "Clear recorded progress for one page, or the whole tutorial",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReset,
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Dump the persisted progress state",
	Args:  cobra.NoArgs,
	RunE:  runState,
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the projects the workbench service reports",
	Args:  cobra.NoArgs,
	RunE:  runProjects,
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	page := a.sb.HomePage()
	if len(args) == 1 {
		page = args[0]
	}
	if page == "" {
		return fmt.Errorf("no page to check")
	}

	ctx, stop := signalContext()
	defer stop()

	a.audit.Event("check_page", zap.String("page", page))
	report, err := a.engine.Evaluate(ctx, page)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render(report.Bundle.Title))
	fmt.Printf("%s\n\n", mutedStyle.Render(fmt.Sprintf("%d of %d tasks complete", report.Completed, report.Total)))

	for _, task := range report.Tasks {
		printTask(page, report, task)
	}

	if report.Done() {
		if msg := report.Bundle.ClosingMsg; msg != "" {
			fmt.Println(doneStyle.Render(msg))
		}
		if _, next := a.sb.PrevAndNext(page); next != "" {
			fmt.Println(mutedStyle.Render("Next: labguide check " + next))
		}
	}
	return nil
}

func printTask(page string, report *tutorial.PageReport, task tutorial.TaskStatus) {
	switch {
	case task.Passed:
		fmt.Printf("%s %s\n", doneStyle.Render("✓"), task.Spec.Name)
		if task.Response != "" {
			fmt.Printf("  %s\n", doneStyle.Render(task.Response))
		}
	case task.Manual:
		fmt.Printf("%s %s\n", pendingStyle.Render("…"), task.Spec.Name)
		fmt.Printf("  %s\n", task.Spec.Msg)
		if msg := report.Bundle.Message("waiting_msg"); msg != "waiting_msg" {
			fmt.Printf("  %s\n", pendingStyle.Render(msg))
		}
		fmt.Printf("  %s\n", mutedStyle.Render(fmt.Sprintf("When finished: labguide done %s %q", page, task.Spec.Name)))
	default:
		fmt.Printf("%s %s\n", failStyle.Render("✗"), task.Spec.Name)
		fmt.Printf("  %s\n", task.Spec.Msg)
		if task.Message != "" {
			fmt.Printf("  %s\n", failStyle.Render(task.Message))
		}
	}
	fmt.Println()
}

func runDone(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	page, task := args[0], args[1]
	a.audit.Event("confirm_task",
		zap.String("page", page),
		zap.String("task", task))
	if err := a.engine.MarkDone(page, task); err != nil {
		return err
	}
	fmt.Printf("Confirmed %q on %s.\n", task, page)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	pages := a.sb.FlattenedPages()
	if len(args) == 1 {
		pages = []string{args[0]}
	}

	for _, page := range pages {
		a.audit.Event("reset_page", zap.String("page", page))
		if err := a.engine.ResetPage(page); err != nil {
			return err
		}
	}
	fmt.Printf("Reset progress for %d page(s).\n", len(pages))
	return nil
}

func runState(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// MarshalIndent sorts map keys, so the dump is stable.
	out, err := json.MarshalIndent(a.store.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runProjects(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	refs, err := a.client.ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		fmt.Println("No projects found.")
		return nil
	}
	for _, ref := range refs {
		fmt.Printf("%s  %s\n", sectionStyle.Render(ref.Name), mutedStyle.Render(ref.Path))
	}
	return nil
}
