package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/tops"
	"github.com/aretw0/tops/internal/logging"
	"github.com/aretw0/tops/internal/presentation/tui"
	"github.com/aretw0/tops/pkg/adapters/memory"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/statechart"
)

// Key bindings of the chart loop besides the digits and the reveal key.
const (
	keyQuit      = 'q'
	keyInterrupt = 0x03
	keyEOT       = 0x04
)

// ChartOptions configures an interactive chart session.
type ChartOptions struct {
	// SessionID persists the session in the engine's store when set.
	SessionID string
	// Fresh discards the persisted session before starting.
	Fresh bool
	// Keys delivers the key presses. A closed channel ends the session.
	Keys  <-chan rune
	Out   io.Writer
	Plain bool
	// Quiet suppresses system messages.
	Quiet  bool
	Logger *slog.Logger
}

// RunChart renders the chart and drives it from the keyboard until the user
// quits, the keys run out or ctx is cancelled. It returns the last snapshot.
func RunChart(ctx context.Context, eng *tops.Engine, opts ChartOptions) (*domain.Snapshot, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	out := tui.NewOutput(opts.Out, opts.Plain)
	doc := memory.NewDocumentFor(eng.Chart().Declarations())
	view := tui.NewChartView(out, eng.Chart(), doc)

	machineOpts := []statechart.Option{statechart.WithNavigator(view)}
	if opts.SessionID != "" {
		machineOpts = append(machineOpts, statechart.WithSessionID(opts.SessionID))
	}
	m, err := eng.Start(ctx, doc, machineOpts...)
	if err != nil {
		return nil, err
	}
	if err := resume(ctx, eng, m, opts, logger); err != nil {
		return nil, err
	}

	view.Render(m.ActiveTriggers())
	for {
		select {
		case <-ctx.Done():
			return m.Snapshot(), ctx.Err()
		case k, ok := <-opts.Keys:
			if !ok || k == keyQuit || k == keyInterrupt || k == keyEOT {
				return m.Snapshot(), nil
			}
			changed, err := handleKey(ctx, m, k)
			if err != nil {
				logger.Warn("key not handled", "key", string(k), "err", err)
				out.Println(out.Color("! "+err.Error(), "#ef4444"))
				continue
			}
			if !changed {
				continue
			}
			if err := persist(ctx, eng, m, opts.SessionID); err != nil {
				return m.Snapshot(), err
			}
			view.Render(m.ActiveTriggers())
		}
	}
}

// handleKey applies one key press and reports whether the machine moved.
// Digits fire the active triggers in the order they are listed.
func handleKey(ctx context.Context, m *statechart.Machine, k rune) (bool, error) {
	if k == statechart.RevealKey {
		_, err := m.Reveal(ctx, k)
		return false, err
	}
	if k < '1' || k > '9' {
		return false, nil
	}
	triggers := m.ActiveTriggers()
	i := int(k - '1')
	if i >= len(triggers) {
		return false, fmt.Errorf("%w: no trigger at [%c]", statechart.ErrNoSuchTrigger, k)
	}
	before := m.Snapshot().Transitions
	if err := m.SetState(ctx, triggers[i].Target); err != nil {
		return false, err
	}
	return m.Snapshot().Transitions != before, nil
}

func resume(ctx context.Context, eng *tops.Engine, m *statechart.Machine, opts ChartOptions, logger *slog.Logger) error {
	if opts.SessionID == "" {
		return nil
	}
	sessions := eng.Sessions()
	if opts.Fresh {
		if err := sessions.Delete(ctx, opts.SessionID); err != nil {
			return fmt.Errorf("failed to reset session: %w", err)
		}
	}

	snap, err := sessions.Load(ctx, opts.SessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		logger.Info("Session Created", "session_id", opts.SessionID)
		if !opts.Quiet {
			printSystemMessage(opts.Out, "Session '%s' active.", opts.SessionID)
		}
		return persist(ctx, eng, m, opts.SessionID)
	case err != nil:
		return err
	}

	if err := m.Restore(ctx, snap); err != nil {
		// The chart changed under the session: start over at the root.
		logger.Warn("Session discarded", "session_id", opts.SessionID, "err", err)
		return persist(ctx, eng, m, opts.SessionID)
	}
	logger.Info("Session Resumed", "session_id", opts.SessionID, "state", m.Current())
	if !opts.Quiet {
		printSystemMessage(opts.Out, "Resuming at '%s' state...", m.Current())
	}
	return nil
}

func persist(ctx context.Context, eng *tops.Engine, m *statechart.Machine, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := eng.Sessions().Save(ctx, sessionID, m.Snapshot()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
