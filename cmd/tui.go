package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jobsync/internal/server"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/desertthunder/jobsync/internal/ui"
)

// defaultTUILog is used when log.file is not configured.
const defaultTUILog = "./tmp/jobsync-tui.log"

// TUI launches the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	path := r.config.Log.File
	if path == "" {
		path = defaultTUILog
	}
	fileLogger, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
	r.SetLogger(fileLogger)

	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	c.Health.Start(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if addr := r.config.Metrics.Addr; addr != "" {
		go func() {
			if err := server.Serve(ctx, addr, server.NewStatusRouter(c, r.logger), r.logger, nil); err != nil {
				r.logger.Error("status server stopped", "error", err)
			}
		}()
	}

	model := ui.NewModel(ctx, c)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// Serve resumes the current job and serves /status and /metrics until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Metrics.Addr
	}
	if addr == "" {
		return fmt.Errorf("%w: --addr or metrics.addr", shared.ErrMissingArgument)
	}

	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	c.Health.Start(ctx)

	if jobID := c.Resume(ctx); jobID != "" {
		r.logger.Info("following job", "job_id", jobID)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-c.Session.Notifications():
				r.logger.Info(n.Message, "kind", n.Kind, "job_id", n.JobID)
			}
		}
	}()

	return server.Serve(ctx, addr, server.NewStatusRouter(c, r.logger), r.logger, nil)
}
