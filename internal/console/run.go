package console

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"agentdesk/internal/event"
	"agentdesk/internal/model"
	"agentdesk/internal/service"
)

type Options struct {
	PollInterval time.Duration
	Actor        model.Actor
}

// Run blocks until the operator quits. desk must publish on bus. A deletion
// still pending on quit is restored by desk.Close, never sent to the platform.
func Run(ctx context.Context, desk *service.DeskService, bus event.Bus, opts Options) error {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	desk.StartPolling(pollCtx, opts.PollInterval)

	p := tea.NewProgram(NewModel(desk, events, opts.Actor), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()

	cancel()
	desk.Close()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}
