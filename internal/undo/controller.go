// Package undo implements the reversible delete of a roster record: the record
// disappears at once, the operator gets a countdown to take it back, and the
// platform delete only happens once the countdown runs out or the operator
// skips it.
package undo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentdesk/internal/logger"
	"agentdesk/internal/model"
	"agentdesk/internal/roster"
)

const (
	DefaultWindow        = 20
	DefaultTick          = time.Second
	DefaultRemoteTimeout = 15 * time.Second
	journalTimeout       = 5 * time.Second
)

// Remote performs the irreversible deletion.
type Remote interface {
	Delete(ctx context.Context, resource string, id string) error
}

// Loader re-fetches the authoritative list after a successful deletion.
type Loader interface {
	List(ctx context.Context, resource string) ([]model.Record, error)
}

// Journal records tickets and their outcome. Failures never block the workflow.
type Journal interface {
	Open(ctx context.Context, entry model.DeletionEntry) error
	Resolve(ctx context.Context, ticketID string, phase model.Phase, errText string, at time.Time) error
}

type Options struct {
	Resource      string
	Window        int
	Tick          time.Duration
	RemoteTimeout time.Duration
	Scheduler     Scheduler
	Remote        Remote
	Loader        Loader
	Journal       Journal
	Notifier      Notifier
	Logger        *slog.Logger
	Now           func() time.Time
}

type ticket struct {
	id          string
	record      model.Record
	countdown   int
	phase       model.Phase
	cancel      Cancel
	actor       model.Actor
	requestedAt time.Time
}

func (t *ticket) view(resource string) model.Ticket {
	return model.Ticket{
		ID:               t.id,
		Resource:         resource,
		Record:           t.record,
		CountdownSeconds: t.countdown,
		Phase:            t.phase,
		RequestedBy:      t.actor,
		RequestedAt:      t.requestedAt,
	}
}

// Controller owns the single undo slot of one list.
//
// Notices and journal writes are queued under mu in the order the state
// changed and delivered one at a time by flush, outside mu.
type Controller struct {
	opts  Options
	store *roster.Store
	log   *slog.Logger

	mu     sync.Mutex
	active *ticket
	closed bool
	outbox []func()

	flushMu  sync.Mutex
	inflight sync.WaitGroup
}

func NewController(store *roster.Store, opts Options) (*Controller, error) {
	if store == nil {
		return nil, errors.New("undo: roster store is required")
	}
	if opts.Remote == nil {
		return nil, errors.New("undo: remote is required")
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = DefaultRemoteTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TickerScheduler{}
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(Notice) {})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}

	return &Controller{
		opts:  opts,
		store: store,
		log:   base.With(logger.ComponentKey, "undo", "resource", opts.Resource),
	}, nil
}

// RequestDelete asks confirmer for consent and, if given, hides the record
// and starts the countdown. Declining returns confirmed=false and changes nothing.
func (c *Controller) RequestDelete(ctx context.Context, id string, confirmer Confirmer, actor model.Actor) (model.Ticket, bool, error) {
	record, err := c.precheck(id)
	if err != nil {
		return model.Ticket{}, false, err
	}

	if confirmer == nil {
		confirmer = Declined
	}
	if !confirmer.Confirm(ctx, c.Prompt(record)) {
		c.log.Debug("deletion declined", "record_id", id)
		return model.Ticket{}, false, nil
	}

	c.mu.Lock()
	if err := c.preconditionsLocked(id); err != nil {
		c.mu.Unlock()
		return model.Ticket{}, false, err
	}
	// the list may have been refreshed while the prompt was open
	if current, ok := c.store.Find(id); ok {
		record = current
	}

	t := &ticket{
		id:          uuid.NewString(),
		record:      record,
		phase:       model.PhaseConfirmed,
		actor:       actor,
		requestedAt: c.opts.Now().UTC(),
	}
	c.store.Dispatch(roster.DeleteRequested{ID: record.ID})
	t.phase = model.PhasePending
	t.countdown = c.opts.Window
	c.active = t
	view := t.view(c.opts.Resource)
	c.journalOpenLocked(view)
	c.notifyLocked(c.notice(t, NoticeCountdown, ""))
	t.cancel = c.opts.Scheduler.Every(c.opts.Tick, func() { c.tick(t) })
	c.mu.Unlock()

	c.flush()
	c.log.Info("deletion pending", "ticket_id", t.id, "record_id", record.ID, "countdown", view.CountdownSeconds, "actor", actor.Username)

	return view, true, nil
}

// Prompt is the confirmation text for record.
func (c *Controller) Prompt(record model.Record) string {
	return fmt.Sprintf("Delete %s? You will have %d seconds to undo.", displayName(record), c.opts.Window)
}

// Undo restores the pending record. It reports false when nothing was pending.
func (c *Controller) Undo() bool {
	c.mu.Lock()
	t := c.active
	if t == nil || t.phase != model.PhasePending {
		c.mu.Unlock()
		return false
	}
	t.cancel()
	t.phase = model.PhaseUndone
	c.active = nil
	c.store.Dispatch(roster.DeleteUndone{Record: t.record})
	c.journalResolveLocked(t.id, model.PhaseUndone, "")
	c.notifyLocked(c.notice(t, NoticeRestored, ""))
	c.mu.Unlock()

	c.flush()
	c.log.Info("deletion undone", "ticket_id", t.id, "record_id", t.record.ID, "countdown", t.countdown)
	return true
}

// FinalizeNow skips the remaining countdown and deletes on the platform.
// It blocks until the platform answered. applied is false when nothing was
// pending; err is the platform's refusal, after which the record is back in
// the list. Cancelling ctx does not abort the platform call.
func (c *Controller) FinalizeNow(ctx context.Context) (applied bool, err error) {
	c.mu.Lock()
	t := c.active
	if t == nil || t.phase != model.PhasePending {
		c.mu.Unlock()
		return false, nil
	}
	t.cancel()
	t.phase = model.PhaseFinalizing
	c.inflight.Add(1)
	c.mu.Unlock()

	c.log.Info("deletion finalizing early", "ticket_id", t.id, "record_id", t.record.ID, "countdown", t.countdown)
	return true, c.finalize(ctx, t)
}

// Active returns the ticket occupying the undo slot, if any.
func (c *Controller) Active() (model.Ticket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return model.Ticket{}, false
	}
	return c.active.view(c.opts.Resource), true
}

// Close stops the countdown. A record still pending is restored, never
// deleted. A platform call already in flight is waited for.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.inflight.Wait()
		return
	}
	c.closed = true
	t := c.active
	if t != nil && t.phase == model.PhasePending {
		t.cancel()
		t.phase = model.PhaseUndone
		c.active = nil
		c.store.Dispatch(roster.DeleteUndone{Record: t.record})
		c.journalResolveLocked(t.id, model.PhaseUndone, "closed")
		c.notifyLocked(c.notice(t, NoticeRestored, "desk closed before the deletion ran"))
		c.log.Info("pending deletion restored on close", "ticket_id", t.id, "record_id", t.record.ID)
	}
	c.mu.Unlock()

	c.flush()
	c.inflight.Wait()
}

func (c *Controller) tick(t *ticket) {
	c.mu.Lock()
	if c.active != t || t.phase != model.PhasePending {
		c.mu.Unlock()
		return
	}

	t.countdown--
	if t.countdown > 0 {
		c.notifyLocked(c.notice(t, NoticeCountdown, ""))
		c.mu.Unlock()
		c.flush()
		return
	}

	t.countdown = 0
	t.cancel()
	t.phase = model.PhaseFinalizing
	c.inflight.Add(1)
	c.mu.Unlock()

	c.log.Info("undo window elapsed", "ticket_id", t.id, "record_id", t.record.ID)
	_ = c.finalize(context.Background(), t)
}

// finalize runs with t in PhaseFinalizing, its timer already cancelled and
// inflight already incremented. It returns the platform error, if any.
func (c *Controller) finalize(ctx context.Context, t *ticket) error {
	defer c.inflight.Done()

	remoteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.RemoteTimeout)
	err := c.opts.Remote.Delete(remoteCtx, c.opts.Resource, t.record.ID)
	cancel()
	if errors.Is(err, model.ErrAlreadyGone) {
		c.log.Info("record already gone on the platform", "ticket_id", t.id, "record_id", t.record.ID)
		err = nil
	}

	c.mu.Lock()
	if c.active == t {
		c.active = nil
	}
	if err == nil {
		t.phase = model.PhaseFinalized
		c.store.Dispatch(roster.DeleteFinalized{ID: t.record.ID})
		c.journalResolveLocked(t.id, model.PhaseFinalized, "")
		c.notifyLocked(c.notice(t, NoticeDeleted, ""))
	} else {
		t.phase = model.PhaseFinalizationFailed
		c.store.Dispatch(roster.DeleteFailed{Record: t.record, Err: err})
		c.journalResolveLocked(t.id, model.PhaseFinalizationFailed, err.Error())
		c.notifyLocked(c.notice(t, NoticeRestored, ""))
		c.notifyLocked(c.notice(t, NoticeError, fmt.Sprintf("Could not delete %s: %s", displayName(t.record), err.Error())))
	}
	c.mu.Unlock()
	c.flush()

	if err != nil {
		c.log.Warn("deletion failed, record restored", "ticket_id", t.id, "record_id", t.record.ID, logger.Err(err))
		return err
	}
	c.log.Info("deletion finalized", "ticket_id", t.id, "record_id", t.record.ID)

	c.refresh()
	return nil
}

// refresh failures leave a stale list until the next poll; the deletion stands.
func (c *Controller) refresh() {
	if c.opts.Loader == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.RemoteTimeout)
	defer cancel()

	records, err := c.opts.Loader.List(ctx, c.opts.Resource)
	if err != nil {
		c.log.Warn("list refresh after deletion failed", logger.Err(err))
		return
	}
	c.store.Dispatch(roster.ListLoaded{Records: records})
}

func (c *Controller) precheck(id string) (model.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.preconditionsLocked(id); err != nil {
		return model.Record{}, err
	}
	record, _ := c.store.Find(id)
	return record, nil
}

func (c *Controller) preconditionsLocked(id string) error {
	if c.closed {
		return model.ErrDeskClosed
	}
	if c.active != nil {
		return model.ErrTicketActive
	}
	if _, ok := c.store.Find(id); !ok {
		return fmt.Errorf("%w: %s", model.ErrRecordNotFound, id)
	}
	return nil
}

func (c *Controller) notice(t *ticket, typ NoticeType, message string) Notice {
	return Notice{
		Type:       typ,
		Resource:   c.opts.Resource,
		TicketID:   t.id,
		RecordID:   t.record.ID,
		RecordName: t.record.Name,
		Countdown:  t.countdown,
		Message:    message,
		At:         c.opts.Now().UTC(),
	}
}

// flush delivers queued effects in FIFO order. Callers must not hold mu.
// When flush returns, everything queued before the call has been delivered,
// by this goroutine or by the one that held flushMu before it.
func (c *Controller) flush() {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	for {
		c.mu.Lock()
		if len(c.outbox) == 0 {
			c.outbox = nil
			c.mu.Unlock()
			return
		}
		next := c.outbox[0]
		c.outbox[0] = nil
		c.outbox = c.outbox[1:]
		c.mu.Unlock()

		next()
	}
}

func (c *Controller) notifyLocked(n Notice) {
	c.outbox = append(c.outbox, func() { c.opts.Notifier.Notify(n) })
}

func (c *Controller) journalOpenLocked(view model.Ticket) {
	if c.opts.Journal == nil {
		return
	}
	entry := model.DeletionEntry{
		TicketID:    view.ID,
		Resource:    view.Resource,
		RecordID:    view.Record.ID,
		RecordName:  view.Record.Name,
		Snapshot:    view.Record,
		Phase:       view.Phase,
		RequestedBy: view.RequestedBy,
		RequestedAt: view.RequestedAt,
	}
	c.outbox = append(c.outbox, func() {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		defer cancel()
		if err := c.opts.Journal.Open(ctx, entry); err != nil {
			c.log.Warn("journal open failed", "ticket_id", entry.TicketID, logger.Err(err))
		}
	})
}

func (c *Controller) journalResolveLocked(ticketID string, phase model.Phase, errText string) {
	if c.opts.Journal == nil {
		return
	}
	at := c.opts.Now().UTC()
	c.outbox = append(c.outbox, func() {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		defer cancel()
		if err := c.opts.Journal.Resolve(ctx, ticketID, phase, errText, at); err != nil {
			c.log.Warn("journal resolve failed", "ticket_id", ticketID, "phase", phase, logger.Err(err))
		}
	})
}

func displayName(record model.Record) string {
	if record.Name != "" {
		return record.Name
	}
	return record.ID
}
