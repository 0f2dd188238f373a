// Package console is the terminal front end of the desk: one tab per list,
// a y/n prompt before deleting, and a countdown badge with undo while the
// deletion is pending.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agentdesk/internal/event"
	"agentdesk/internal/model"
	"agentdesk/internal/service"
	"agentdesk/internal/undo"
)

type recordItem struct {
	record model.Record
}

func (i recordItem) Title() string       { return i.record.Name }
func (i recordItem) Description() string { return i.record.ID }
func (i recordItem) FilterValue() string { return i.record.Name }

type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(recordItem)
	if !ok {
		return
	}
	name := it.record.Name
	if name == "" {
		name = it.record.ID
	}
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
		name = selectedStyle.Render(name)
	}
	fmt.Fprintf(w, "%s%s %s\n", prefix, name, mutedStyle.Render(it.record.ID))
}

// eventMsg carries one desk event into the update loop.
type eventMsg event.Event

// actionDoneMsg reports the outcome of a command run off the update loop.
type actionDoneMsg struct {
	action string
	err    error
}

type confirmState struct {
	resource string
	recordID string
	prompt   string
}

type keyMap struct {
	Delete    key.Binding
	Undo      key.Binding
	DeleteNow key.Binding
	Refresh   key.Binding
	NextList  key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Delete:    key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "delete")),
	Undo:      key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo")),
	DeleteNow: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete now")),
	Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	NextList:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next list")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model is the bubbletea model of the console.
type Model struct {
	desk      *service.DeskService
	events    <-chan event.Event
	actor     model.Actor
	resources []string
	current   int

	list    list.Model
	confirm *confirmState
	// last countdown notice per list while a deletion is pending
	pending map[string]undo.Notice
	busy    string
	flash   string
	flashOK bool
	width   int
	height  int
}

func NewModel(desk *service.DeskService, events <-chan event.Event, actor model.Actor) Model {
	l := list.New(nil, itemDelegate{}, 76, 16)
	l.SetShowTitle(false)
	l.SetShowHelp(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetStatusBarItemName("record", "records")
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.FilterInput.Prompt = "/ "
	extra := func() []key.Binding {
		return []key.Binding{keys.Delete, keys.Undo, keys.DeleteNow, keys.Refresh, keys.NextList}
	}
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	m := Model{
		desk:      desk,
		events:    events,
		actor:     actor,
		resources: desk.Lists(),
		list:      l,
		pending:   map[string]undo.Notice{},
		width:     80,
		height:    24,
	}
	m.reload()
	return m
}

func (m Model) resource() string {
	return m.resources[m.current]
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(events <-chan event.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case eventMsg:
		m.applyEvent(event.Event(msg))
		return m, waitForEvent(m.events)

	case actionDoneMsg:
		if m.busy == msg.action {
			m.busy = ""
		}
		if msg.err != nil {
			m.setFlash(describeError(msg.err), false)
		}
		m.reload()
		return m, nil

	case tea.KeyMsg:
		if m.confirm != nil {
			return m.updateConfirm(msg)
		}
		// keys go to the filter input while the operator types
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.NextList):
			m.current = (m.current + 1) % len(m.resources)
			m.list.ResetFilter()
			m.list.Select(0)
			m.reload()
			return m, nil
		case key.Matches(msg, keys.Delete):
			return m.startDelete()
		case key.Matches(msg, keys.Undo):
			return m, m.run("undo", func(desk *service.DeskService, resource string) error {
				_, err := desk.Undo(resource)
				return err
			})
		case key.Matches(msg, keys.DeleteNow):
			if _, ok := m.pending[m.resource()]; !ok {
				return m, nil
			}
			m.busy = "finalize"
			return m, m.run("finalize", func(desk *service.DeskService, resource string) error {
				_, err := desk.FinalizeNow(context.Background(), resource)
				return err
			})
		case key.Matches(msg, keys.Refresh):
			m.busy = "refresh"
			return m, m.run("refresh", func(desk *service.DeskService, resource string) error {
				return desk.Refresh(context.Background(), resource)
			})
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) startDelete() (tea.Model, tea.Cmd) {
	item, ok := m.list.SelectedItem().(recordItem)
	if !ok {
		return m, nil
	}
	prompt, err := m.desk.Prompt(m.resource(), item.record.ID)
	if err != nil {
		m.setFlash(describeError(err), false)
		return m, nil
	}
	m.flash = ""
	m.confirm = &confirmState{resource: m.resource(), recordID: item.record.ID, prompt: prompt}
	return m, nil
}

// updateConfirm handles the modal; anything but y declines.
func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.confirm
	m.confirm = nil
	if msg.String() != "y" && msg.String() != "Y" {
		return m, nil
	}

	actor := m.actor
	return m, func() tea.Msg {
		_, _, err := m.desk.RequestDelete(context.Background(), state.resource, state.recordID, undo.Confirmed, actor)
		return actionDoneMsg{action: "delete", err: err}
	}
}

func (m Model) run(action string, fn func(desk *service.DeskService, resource string) error) tea.Cmd {
	desk, resource := m.desk, m.resource()
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn(desk, resource)}
	}
}

func (m *Model) applyEvent(e event.Event) {
	if e.Type == event.TypeListUpdated {
		if e.Resource == m.resource() {
			m.reload()
		}
		return
	}

	n, ok := e.Payload.(undo.Notice)
	if !ok {
		return
	}
	switch n.Type {
	case undo.NoticeCountdown:
		m.pending[n.Resource] = n
	case undo.NoticeRestored:
		delete(m.pending, n.Resource)
		if n.Message != "" {
			m.setFlash(fmt.Sprintf("%s restored: %s", n.RecordName, n.Message), true)
		} else {
			m.setFlash(fmt.Sprintf("%s restored", n.RecordName), true)
		}
	case undo.NoticeError:
		delete(m.pending, n.Resource)
		m.setFlash(n.Message, false)
	case undo.NoticeDeleted:
		delete(m.pending, n.Resource)
		m.setFlash(fmt.Sprintf("%s deleted", n.RecordName), true)
	}
}

func (m *Model) reload() {
	data, err := m.desk.Records(m.resource())
	if err != nil {
		m.setFlash(describeError(err), false)
		return
	}
	items := make([]list.Item, 0, len(data.Items))
	for _, r := range data.Items {
		items = append(items, recordItem{record: r})
	}
	m.list.SetItems(items)
	if data.Pending == nil {
		delete(m.pending, m.resource())
	} else if _, ok := m.pending[m.resource()]; !ok {
		m.pending[m.resource()] = undo.Notice{
			Type:       undo.NoticeCountdown,
			Resource:   data.Pending.Resource,
			TicketID:   data.Pending.ID,
			RecordID:   data.Pending.Record.ID,
			RecordName: data.Pending.Record.Name,
			Countdown:  data.Pending.CountdownSeconds,
		}
	}
}

func (m *Model) setFlash(message string, ok bool) {
	m.flash = message
	m.flashOK = ok
}

func (m Model) View() string {
	var b strings.Builder

	tabs := make([]string, 0, len(m.resources))
	for i, resource := range m.resources {
		style := tabStyle
		if i == m.current {
			style = activeTab
		}
		tabs = append(tabs, style.Render(resource))
	}
	b.WriteString(titleStyle.Render("agentdesk") + "  " + lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n")

	if n, ok := m.pending[m.resource()]; ok {
		badge := badgeStyle.Render(fmt.Sprintf("Deleting %s in %ds", n.RecordName, n.Countdown))
		b.WriteString(badge + "  " + helpStyle.Render("u undo · D delete now"))
		b.WriteString("\n")
	}
	if m.busy == "finalize" {
		b.WriteString(mutedStyle.Render("Deleting on the platform...") + "\n")
	}
	if m.flash != "" {
		if m.flashOK {
			b.WriteString(successStyle.Render(m.flash) + "\n")
		} else {
			b.WriteString(errorStyle.Render(m.flash) + "\n")
		}
	}

	b.WriteString(m.list.View())

	if m.confirm != nil {
		b.WriteString("\n")
		b.WriteString(modalStyle.Render(m.confirm.prompt + "\n\n" + helpStyle.Render("y confirm · any other key cancels")))
	}

	return panelStyle.Render(b.String())
}

func describeError(err error) string {
	switch {
	case errors.Is(err, model.ErrTicketActive):
		return "A deletion is already pending on this list. Undo it or wait for it to finish."
	case errors.Is(err, model.ErrRecordNotFound):
		return "That record is no longer on the list."
	case errors.Is(err, model.ErrPlatformUnavailable):
		return "Platform unavailable: " + err.Error()
	default:
		return err.Error()
	}
}
