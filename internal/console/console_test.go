package console

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"agentdesk/internal/event"
	"agentdesk/internal/model"
	"agentdesk/internal/service"
	"agentdesk/internal/undo"
)

type stubPlatform struct {
	mu        sync.Mutex
	records   map[string][]model.Record
	deleteErr error
	deleted   []string
}

func (p *stubPlatform) List(_ context.Context, resource string) ([]model.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Record(nil), p.records[resource]...), nil
}

func (p *stubPlatform) Delete(_ context.Context, resource string, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleteErr != nil {
		return p.deleteErr
	}
	p.deleted = append(p.deleted, id)
	var kept []model.Record
	for _, r := range p.records[resource] {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	p.records[resource] = kept
	return nil
}

type consoleHarness struct {
	model     Model
	platform  *stubPlatform
	scheduler *undo.ManualScheduler
	events    <-chan event.Event
	desk      *service.DeskService
}

func newConsoleHarness(t *testing.T) *consoleHarness {
	t.Helper()

	platform := &stubPlatform{records: map[string][]model.Record{
		"agents":  {{ID: "b2", Name: "Bella"}, {ID: "a1", Name: "Agent Smith"}},
		"escorts": {{ID: "e1", Name: "Elena"}},
	}}
	scheduler := &undo.ManualScheduler{}
	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	t.Cleanup(unsubscribe)

	desk, err := service.NewDeskService(platform, service.DeskOptions{
		Resources: []string{"agents", "escorts"},
		Window:    20,
		Collation: language.English,
		Scheduler: scheduler,
		Bus:       bus,
	})
	require.NoError(t, err)
	t.Cleanup(desk.Close)
	require.NoError(t, desk.RefreshAll(context.Background()))

	return &consoleHarness{
		model:     NewModel(desk, events, model.Actor{Username: "console"}),
		platform:  platform,
		scheduler: scheduler,
		events:    events,
		desk:      desk,
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds msg and runs the returned command once, the way the runtime would.
func (h *consoleHarness) press(t *testing.T, msg tea.Msg) {
	t.Helper()

	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	if cmd == nil {
		return
	}
	if done, ok := cmd().(actionDoneMsg); ok {
		next, _ = h.model.Update(done)
		h.model = next.(Model)
	}
}

func (h *consoleHarness) pumpEvents() {
	for {
		select {
		case e := <-h.events:
			next, _ := h.model.Update(eventMsg(e))
			h.model = next.(Model)
		default:
			return
		}
	}
}

func TestConsoleShowsSortedList(t *testing.T) {
	h := newConsoleHarness(t)

	view := h.model.View()
	require.Contains(t, view, "Agent Smith")
	require.Contains(t, view, "Bella")
	require.Less(t, strings.Index(view, "Agent Smith"), strings.Index(view, "Bella"))

	h.press(t, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, "escorts", h.model.resource())
	require.Contains(t, h.model.View(), "Elena")
}

func TestConsoleDeclineChangesNothing(t *testing.T) {
	h := newConsoleHarness(t)

	h.press(t, keyRunes("d"))
	require.NotNil(t, h.model.confirm)
	require.Contains(t, h.model.View(), "Delete Agent Smith? You will have 20 seconds to undo.")

	h.press(t, keyRunes("n"))
	require.Nil(t, h.model.confirm)
	_, err := h.desk.ActiveDeletion("agents")
	require.ErrorIs(t, err, model.ErrNoActiveTicket)
	require.Len(t, h.model.list.Items(), 2)
}

func TestConsoleDeleteCountdownAndUndo(t *testing.T) {
	h := newConsoleHarness(t)

	h.press(t, keyRunes("d"))
	h.press(t, keyRunes("y"))
	h.pumpEvents()

	require.Len(t, h.model.list.Items(), 1)
	require.Contains(t, h.model.View(), "Deleting Agent Smith in 20s")

	h.scheduler.TickN(5)
	h.pumpEvents()
	require.Contains(t, h.model.View(), "Deleting Agent Smith in 15s")

	// a second delete while one is pending is refused
	h.press(t, keyRunes("d"))
	h.press(t, keyRunes("y"))
	require.Contains(t, h.model.View(), "already pending")

	h.press(t, keyRunes("u"))
	h.pumpEvents()

	view := h.model.View()
	require.NotContains(t, view, "Deleting Agent Smith")
	require.Contains(t, view, "Agent Smith restored")
	require.Len(t, h.model.list.Items(), 2)
	require.Empty(t, h.platform.deleted)
}

func TestConsoleDeleteNow(t *testing.T) {
	h := newConsoleHarness(t)

	// nothing pending: D does nothing
	h.press(t, keyRunes("D"))
	require.Empty(t, h.platform.deleted)

	h.press(t, keyRunes("d"))
	h.press(t, keyRunes("y"))
	h.press(t, keyRunes("D"))
	h.pumpEvents()

	require.Equal(t, []string{"a1"}, h.platform.deleted)
	require.Contains(t, h.model.View(), "Agent Smith deleted")
	require.Len(t, h.model.list.Items(), 1)
}

func TestConsoleSurfacesPlatformFailureOnce(t *testing.T) {
	h := newConsoleHarness(t)
	h.platform.deleteErr = errors.New("network error")

	h.press(t, keyRunes("d"))
	h.press(t, keyRunes("y"))
	h.scheduler.TickN(20)
	h.pumpEvents()

	view := h.model.View()
	require.Contains(t, view, "Could not delete Agent Smith: network error")
	require.NotContains(t, view, "Deleting Agent Smith")
	require.Len(t, h.model.list.Items(), 2)
}
