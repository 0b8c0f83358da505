package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchNav bool

var navCmd = &cobra.Command{
	Use:   "nav",
	Short: "Show the tutorial navigation with per-page progress",
	RunE:  runNav,
}

func init() {
	navCmd.Flags().BoolVarP(&watchNav, "watch", "w", false, "re-render when the state file changes")
}

func runNav(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Print(renderNav(a))

	if !watchNav {
		return nil
	}
	if a.file == nil {
		return fmt.Errorf("--watch requires the file state backend")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticks, err := a.file.Watch(ctx)
	if err != nil {
		return err
	}
	logger.Info("watching state file", zap.String("path", cfg.State.Path))

	for range ticks {
		if err := a.store.Load(); err != nil {
			logger.Warn("reload state", zap.Error(err))
			continue
		}
		fmt.Print("\n" + renderNav(a))
	}
	return nil
}

func renderNav(a *app) string {
	var b strings.Builder

	if a.sb.Header != "" {
		b.WriteString(headerStyle.Render(a.sb.Header) + "\n\n")
	}

	for _, menu := range a.sb.Navbar {
		if menu.Hidden() {
			continue
		}
		b.WriteString(sectionStyle.Render(menu.Label) + "\n")
		for _, item := range menu.Children {
			p := a.sb.Progress(item, a.store)
			label := item.RenderedLabel(p)
			switch {
			case !item.ShowProgress:
				b.WriteString("  " + label + "\n")
			case p.Done():
				b.WriteString("  " + doneStyle.Render(label) + "\n")
			case p.Started():
				b.WriteString("  " + pendingStyle.Render(label) + "\n")
			default:
				b.WriteString("  " + mutedStyle.Render(label) + "\n")
			}
		}
		b.WriteString("\n")
	}

	links := a.sb.Links
	if links.Documentation != "" {
		b.WriteString(mutedStyle.Render("Docs: "+links.Documentation) + "\n")
	}
	if links.GetHelp != "" {
		b.WriteString(mutedStyle.Render("Help: "+links.GetHelp) + "\n")
	}
	return b.String()
}
