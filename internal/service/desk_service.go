package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/text/language"

	"agentdesk/internal/event"
	"agentdesk/internal/logger"
	"agentdesk/internal/model"
	"agentdesk/internal/roster"
	"agentdesk/internal/undo"
)

// Platform is the slice of the platform API the desk needs.
type Platform interface {
	List(ctx context.Context, resource string) ([]model.Record, error)
	Delete(ctx context.Context, resource string, id string) error
}

type DeskOptions struct {
	Resources     []string
	Window        int
	Tick          time.Duration
	RemoteTimeout time.Duration
	Collation     language.Tag
	Scheduler     undo.Scheduler
	Journal       undo.Journal
	Bus           event.Bus
	Logger        *slog.Logger
}

type deskList struct {
	store      *roster.Store
	controller *undo.Controller
}

// DeskService holds one roster and one undo controller per managed list.
type DeskService struct {
	platform  Platform
	bus       event.Bus
	log       *slog.Logger
	resources []string
	lists     map[string]*deskList

	pollOnce sync.Once
	wg       sync.WaitGroup
}

func NewDeskService(platform Platform, opts DeskOptions) (*DeskService, error) {
	if platform == nil {
		return nil, errors.New("desk: platform client is required")
	}
	if len(opts.Resources) == 0 {
		return nil, errors.New("desk: at least one list is required")
	}
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}

	s := &DeskService{
		platform: platform,
		bus:      opts.Bus,
		log:      base.With(logger.ComponentKey, "desk"),
		lists:    make(map[string]*deskList, len(opts.Resources)),
	}

	order := roster.NameOrder(opts.Collation)
	for _, resource := range opts.Resources {
		if _, dup := s.lists[resource]; dup {
			return nil, fmt.Errorf("desk: list %q configured twice", resource)
		}

		store := roster.NewStore(order)
		controller, err := undo.NewController(store, undo.Options{
			Resource:      resource,
			Window:        opts.Window,
			Tick:          opts.Tick,
			RemoteTimeout: opts.RemoteTimeout,
			Scheduler:     opts.Scheduler,
			Remote:        platform,
			Loader:        platform,
			Journal:       opts.Journal,
			Notifier:      undo.NotifierFunc(s.publishNotice),
			Logger:        base,
		})
		if err != nil {
			return nil, fmt.Errorf("desk: %s controller: %w", resource, err)
		}

		resource := resource
		store.Subscribe(func(action roster.ActionType, state roster.State) {
			s.publishListUpdate(resource, action, state)
		})

		s.lists[resource] = &deskList{store: store, controller: controller}
		s.resources = append(s.resources, resource)
	}

	return s, nil
}

func (s *DeskService) Lists() []string {
	out := make([]string, len(s.resources))
	copy(out, s.resources)
	return out
}

// Records returns the visible list and the deletion pending on it, if any.
func (s *DeskService) Records(resource string) (model.RecordsData, error) {
	list, err := s.list(resource)
	if err != nil {
		return model.RecordsData{}, err
	}

	data := model.RecordsData{Items: list.store.Records()}
	if ticket, ok := list.controller.Active(); ok {
		data.Pending = &ticket
	}
	return data, nil
}

func (s *DeskService) Refresh(ctx context.Context, resource string) error {
	list, err := s.list(resource)
	if err != nil {
		return err
	}

	records, err := s.platform.List(ctx, resource)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", resource, err)
	}
	list.store.Dispatch(roster.ListLoaded{Records: records})
	return nil
}

// RefreshAll refreshes every list and joins the failures.
func (s *DeskService) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, resource := range s.resources {
		if err := s.Refresh(ctx, resource); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StartPolling refreshes every list now and then once per interval until ctx
// is done. Failures are logged and the previous list stays visible. Only the
// first call starts a poller; a non-positive interval only does the initial load.
func (s *DeskService) StartPolling(ctx context.Context, interval time.Duration) {
	s.pollOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.poll(ctx, interval)
		}()
	})
}

func (s *DeskService) poll(ctx context.Context, interval time.Duration) {
	s.refreshLogged(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshLogged(ctx)
		}
	}
}

func (s *DeskService) refreshLogged(ctx context.Context) {
	for _, resource := range s.resources {
		if err := s.Refresh(ctx, resource); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("list refresh failed", "resource", resource, logger.Err(err))
		}
	}
}

// Prompt is the confirmation message for deleting id, without starting anything.
func (s *DeskService) Prompt(resource string, id string) (string, error) {
	list, err := s.list(resource)
	if err != nil {
		return "", err
	}
	record, ok := list.store.Find(id)
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", model.ErrRecordNotFound, resource, id)
	}
	return list.controller.Prompt(record), nil
}

func (s *DeskService) RequestDelete(ctx context.Context, resource string, id string, confirmer undo.Confirmer, actor model.Actor) (model.Ticket, bool, error) {
	list, err := s.list(resource)
	if err != nil {
		return model.Ticket{}, false, err
	}
	return list.controller.RequestDelete(ctx, id, confirmer, actor)
}

func (s *DeskService) Undo(resource string) (bool, error) {
	list, err := s.list(resource)
	if err != nil {
		return false, err
	}
	return list.controller.Undo(), nil
}

// FinalizeNow blocks until the platform delete has resolved. A refusal
// matches model.ErrDeleteFailed and wraps the platform error.
func (s *DeskService) FinalizeNow(ctx context.Context, resource string) (bool, error) {
	list, err := s.list(resource)
	if err != nil {
		return false, err
	}
	applied, err := list.controller.FinalizeNow(ctx)
	if err != nil {
		return applied, fmt.Errorf("%w: %w", model.ErrDeleteFailed, err)
	}
	return applied, nil
}

func (s *DeskService) ActiveDeletion(resource string) (model.Ticket, error) {
	list, err := s.list(resource)
	if err != nil {
		return model.Ticket{}, err
	}
	ticket, ok := list.controller.Active()
	if !ok {
		return model.Ticket{}, fmt.Errorf("%w on %s", model.ErrNoActiveTicket, resource)
	}
	return ticket, nil
}

// Close restores pending records and waits for the poller to stop. The
// caller cancels the polling context first.
func (s *DeskService) Close() {
	for _, resource := range s.resources {
		s.lists[resource].controller.Close()
	}
	s.wg.Wait()
}

func (s *DeskService) list(resource string) (*deskList, error) {
	list, ok := s.lists[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownList, resource)
	}
	return list, nil
}

func (s *DeskService) publishNotice(n undo.Notice) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{
		Type:     noticeEventType(n.Type),
		Resource: n.Resource,
		Payload:  n,
	})
}

// ListUpdate is the payload of list.updated events.
type ListUpdate struct {
	Action  roster.ActionType `json:"action"`
	Version uint64            `json:"version"`
	Count   int               `json:"count"`
}

func (s *DeskService) publishListUpdate(resource string, action roster.ActionType, state roster.State) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{
		Type:     event.TypeListUpdated,
		Resource: resource,
		Payload:  ListUpdate{Action: action, Version: state.Version, Count: len(state.Records)},
	})
}

func noticeEventType(t undo.NoticeType) event.Type {
	switch t {
	case undo.NoticeRestored:
		return event.TypeDeletionRestored
	case undo.NoticeError:
		return event.TypeDeletionError
	case undo.NoticeDeleted:
		return event.TypeDeletionDeleted
	default:
		return event.TypeDeletionCountdown
	}
}
