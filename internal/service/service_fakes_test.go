package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/classify"
	"github.com/fincaops/incident-service/internal/domain"
	"github.com/fincaops/incident-service/internal/events"
	"github.com/fincaops/incident-service/internal/locking"
	"github.com/fincaops/incident-service/internal/observability"
	"github.com/fincaops/incident-service/internal/repository"
	"github.com/fincaops/incident-service/pkg/util"
)

// fakeReporterRepo is an in-memory ReporterRepository honoring the unique
// (channel, handle) index.
type fakeReporterRepo struct {
	mu        sync.Mutex
	byID      map[string]domain.Reporter
	conflicts int
}

func newFakeReporterRepo() *fakeReporterRepo {
	return &fakeReporterRepo{byID: make(map[string]domain.Reporter)}
}

func (r *fakeReporterRepo) Create(_ context.Context, reporter *domain.Reporter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Channel == reporter.Channel && existing.Handle == reporter.Handle {
			r.conflicts++
			return util.NewConflict("reporter already exists", nil)
		}
	}
	reporter.ID = uuid.NewString()
	reporter.CreatedAt = time.Now()
	reporter.UpdatedAt = reporter.CreatedAt
	r.byID[reporter.ID] = *reporter
	return nil
}

func (r *fakeReporterRepo) Update(_ context.Context, reporter *domain.Reporter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[reporter.ID]; !ok {
		return util.NewNotFound("reporter", nil)
	}
	reporter.UpdatedAt = time.Now()
	r.byID[reporter.ID] = *reporter
	return nil
}

func (r *fakeReporterRepo) GetByID(_ context.Context, id string) (*domain.Reporter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reporter, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &reporter, nil
}

func (r *fakeReporterRepo) GetByHandle(_ context.Context, channel domain.Channel, handle string) (*domain.Reporter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reporter := range r.byID {
		if reporter.Channel == channel && reporter.Handle == handle {
			out := reporter
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// fakeTicketRepo is an in-memory TicketRepository with a unique code index.
type fakeTicketRepo struct {
	mu   sync.Mutex
	byID map[string]domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{byID: make(map[string]domain.Ticket)}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Code == ticket.Code {
			return util.NewConflict("ticket code already exists", nil)
		}
	}
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.byID[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[ticket.ID]; !ok {
		return util.NewNotFound("ticket", nil)
	}
	ticket.UpdatedAt = time.Now()
	r.byID[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *fakeTicketRepo) GetByCode(_ context.Context, code string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.byID {
		if ticket.Code == code {
			out := ticket
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListOpenByReporter(_ context.Context, reporterID string, activitySince time.Time) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.byID {
		if ticket.ReporterID != reporterID || ticket.Status.IsTerminal() {
			continue
		}
		if ticket.LastActivityAt.Before(activitySince) {
			continue
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.byID {
		if filter.ReporterID != nil && ticket.ReporterID != *filter.ReporterID {
			continue
		}
		if len(filter.Statuses) > 0 {
			if !containsStatus(filter.Statuses, ticket.Status) {
				continue
			}
		} else if ticket.Status.IsTerminal() {
			continue
		}
		if len(filter.Urgencies) > 0 && !containsUrgency(filter.Urgencies, ticket.Urgency) {
			continue
		}
		if filter.ActivitySince != nil && ticket.LastActivityAt.Before(*filter.ActivitySince) {
			continue
		}
		if filter.CreatedBefore != nil && !ticket.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func containsStatus(set []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsUrgency(set []domain.Urgency, u domain.Urgency) bool {
	for _, candidate := range set {
		if candidate == u {
			return true
		}
	}
	return false
}

// fakeEventRepo appends audit events in memory.
type fakeEventRepo struct {
	mu     sync.Mutex
	events []domain.TicketEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{}
}

func (r *fakeEventRepo) Create(_ context.Context, event *domain.TicketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uuid.NewString()
	event.CreatedAt = time.Now()
	r.events = append(r.events, *event)
	return nil
}

func (r *fakeEventRepo) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketEvent
	for _, event := range r.events {
		if event.TicketID == ticketID {
			out = append(out, event)
		}
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeEventRepo) byType(t domain.TicketEventType) []domain.TicketEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketEvent
	for _, event := range r.events {
		if event.Type == t {
			out = append(out, event)
		}
	}
	return out
}

// scriptedClassifier returns canned judgements and counts invocations.
type scriptedClassifier struct {
	mu       sync.Mutex
	calls    int
	classify func(text, priorContext string) (*classify.Classification, error)
}

func (c *scriptedClassifier) Classify(_ context.Context, text, priorContext string) (*classify.Classification, error) {
	c.mu.Lock()
	c.calls++
	fn := c.classify
	c.mu.Unlock()
	return fn(text, priorContext)
}

func (c *scriptedClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// eventRecorder captures published domain events.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) subscribeAll(d events.Dispatcher) {
	all := []events.EventType{
		events.EventTicketCreated, events.EventTicketStatusChanged,
		events.EventTicketNeedsInfo, events.EventTicketContinued,
		events.EventTicketEscalated, events.EventTicketResolved,
		events.EventFollowUpCreated, events.EventStatusReport,
	}
	for _, t := range all {
		d.Subscribe(t, func(_ context.Context, e events.Event) error {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
			return nil
		})
	}
}

func (r *eventRecorder) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// testEnv wires the full service stack over the in-memory fakes.
type testEnv struct {
	reporterRepo *fakeReporterRepo
	ticketRepo   *fakeTicketRepo
	eventRepo    *fakeEventRepo
	dispatcher   events.Dispatcher
	recorder     *eventRecorder
	reporters    *ReporterService
	tickets      *TicketService
	resolver     *ResolverService
	intake       *IntakeService
	classifier   *scriptedClassifier
}

func newTestEnv(classifierFn func(text, priorContext string) (*classify.Classification, error)) *testEnv {
	logger := zap.NewNop()
	env := &testEnv{
		reporterRepo: newFakeReporterRepo(),
		ticketRepo:   newFakeTicketRepo(),
		eventRepo:    newFakeEventRepo(),
		dispatcher:   events.NewInMemoryDispatcher(nil),
		recorder:     &eventRecorder{},
	}
	env.recorder.subscribeAll(env.dispatcher)
	if classifierFn == nil {
		keyword := classify.NewKeywordClassifier()
		classifierFn = func(text, priorContext string) (*classify.Classification, error) {
			return keyword.Classify(context.Background(), text, priorContext)
		}
	}
	env.classifier = &scriptedClassifier{classify: classifierFn}

	locker := locking.NewMemoryLocker()
	env.reporters = NewReporterService(env.reporterRepo, logger)
	env.tickets = NewTicketService(TicketDependencies{
		TicketRepo:    env.ticketRepo,
		EventRepo:     env.eventRepo,
		ReporterRepo:  env.reporterRepo,
		Locker:        locker,
		Dispatcher:    env.dispatcher,
		Logger:        logger,
		EscalationSLA: time.Hour,
	})
	env.resolver = NewResolverService(env.ticketRepo, env.classifier, 2*time.Hour, logger)
	env.intake = NewIntakeService(IntakeDependencies{
		Reporters:  env.reporters,
		Resolver:   env.resolver,
		Tickets:    env.tickets,
		Classifier: env.classifier,
		Locker:     locker,
		Dispatcher: env.dispatcher,
		Metrics:    observability.NewMetrics(),
		Logger:     logger,
	})
	return env
}

func (e *testEnv) newReporter(t *testing.T, channel domain.Channel, handle string) *domain.Reporter {
	t.Helper()
	reporter, err := e.reporters.Resolve(context.Background(), channel, handle)
	if err != nil {
		t.Fatalf("resolve reporter: %v", err)
	}
	return reporter
}

func (e *testEnv) ticketCount() int {
	e.ticketRepo.mu.Lock()
	defer e.ticketRepo.mu.Unlock()
	return len(e.ticketRepo.byID)
}

func classifyFields(address, unit string) classify.ExtractedFields {
	return classify.ExtractedFields{Address: address, Unit: unit}
}

func sameJudgement(same bool) func(text, priorContext string) (*classify.Classification, error) {
	return func(text, priorContext string) (*classify.Classification, error) {
		result := &classify.Classification{
			Intent:   classify.IntentNewIncident,
			Category: domain.CategoryWater,
			Urgency:  domain.UrgencyHigh,
			Summary:  classify.Summarize(text),
		}
		if priorContext != "" {
			verdict := same
			result.SameAsContext = &verdict
		}
		return result, nil
	}
}
