package service

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/classify"
	"github.com/fincaops/incident-service/internal/domain"
	"github.com/fincaops/incident-service/internal/events"
	"github.com/fincaops/incident-service/internal/locking"
	"github.com/fincaops/incident-service/internal/repository"
	"github.com/fincaops/incident-service/pkg/util"
)

// allowedTransitions is the full lifecycle table. ESCALATED is reachable
// from every non-terminal state and leaves only toward the stored prior
// state, so it is special-cased in isValidTransition.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew:               {domain.TicketStatusValidating},
	domain.TicketStatusNeedsInfo:         {domain.TicketStatusNew, domain.TicketStatusValidating},
	domain.TicketStatusValidating:        {domain.TicketStatusDispatched},
	domain.TicketStatusDispatched:        {domain.TicketStatusScheduled},
	domain.TicketStatusScheduled:         {domain.TicketStatusInProgress},
	domain.TicketStatusInProgress:        {domain.TicketStatusNeedsConfirmation},
	domain.TicketStatusNeedsConfirmation: {domain.TicketStatusWaitingInvoice, domain.TicketStatusInProgress},
	domain.TicketStatusWaitingInvoice:    {domain.TicketStatusClosed},
	domain.TicketStatusClosed:            {},
}

// defaultProviders maps categories to the provider notified on dispatch.
var defaultProviders = map[domain.Category]string{
	domain.CategoryWater:       "Fontanería de guardia",
	domain.CategoryElevator:    "Mantenimiento de ascensores",
	domain.CategoryElectricity: "Electricista de guardia",
	domain.CategoryGarageDoor:  "Automatismos y puertas",
	domain.CategoryCleaning:    "Servicio de limpieza",
	domain.CategorySecurity:    "Empresa de seguridad",
}

// TicketService owns ticket state: every mutation of a ticket's lifecycle
// goes through here, serialized per ticket, with one TicketEvent appended
// and at most one domain event published per committed change.
type TicketService struct {
	tickets       repository.TicketRepository
	ticketEvents  repository.TicketEventRepository
	reporters     repository.ReporterRepository
	locker        locking.Locker
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	escalationSLA time.Duration
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	EventRepo     repository.TicketEventRepository
	ReporterRepo  repository.ReporterRepository
	Locker        locking.Locker
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	EscalationSLA time.Duration
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Reporter         *domain.Reporter
	Channel          domain.Channel
	Category         domain.Category
	Urgency          domain.Urgency
	Summary          string
	Description      string
	Address          string
	Unit             string
	NeedsReview      bool
	ReviewReason     string
	FollowUpOfID     *string
	ClassifierBacked bool
	ReceivedAt       time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:       deps.TicketRepo,
		ticketEvents:  deps.EventRepo,
		reporters:     deps.ReporterRepo,
		locker:        deps.Locker,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		escalationSLA: deps.EscalationSLA,
	}
}

// Create persists a new ticket. Initial state is NEW when summary, category
// and both location fields are present, NEEDS_INFO otherwise. A complete,
// classifier-backed ticket advances straight to VALIDATING.
func (s *TicketService) Create(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	if input.Reporter == nil {
		return nil, util.NewValidationError("reporter required", nil)
	}

	now := input.ReceivedAt
	if now.IsZero() {
		now = time.Now()
	}

	ticket := &domain.Ticket{
		ReporterID:     input.Reporter.ID,
		Channel:        input.Channel,
		Category:       input.Category,
		Urgency:        input.Urgency,
		Summary:        strings.TrimSpace(input.Summary),
		Description:    strings.TrimSpace(input.Description),
		Address:        strings.TrimSpace(input.Address),
		Unit:           strings.TrimSpace(input.Unit),
		Status:         domain.TicketStatusNew,
		FollowUpOfID:   input.FollowUpOfID,
		NeedsReview:    input.NeedsReview,
		LastActivityAt: now,
	}
	if ticket.Urgency == "" {
		ticket.Urgency = domain.UrgencyMedium
	}
	if !classify.IsValidUnit(ticket.Unit) {
		ticket.Unit = ""
	}
	if !ticket.IsComplete() {
		ticket.Status = domain.TicketStatusNeedsInfo
	}

	if err := s.createWithFreshCode(ctx, ticket); err != nil {
		return nil, err
	}

	created := ticket.Status
	auditEvent := &domain.TicketEvent{
		TicketID:    ticket.ID,
		Type:        domain.EventTypeTicketCreated,
		ToStatus:    &created,
		Trigger:     "intake",
		Description: "Ticket " + ticket.Code + " created",
		Payload: map[string]any{
			"category": string(ticket.Category),
			"urgency":  string(ticket.Urgency),
			"channel":  string(ticket.Channel),
		},
		Actor: "SYSTEM",
	}
	if err := s.ticketEvents.Create(ctx, auditEvent); err != nil {
		return nil, util.NewStorageError(err)
	}
	if input.NeedsReview && input.ReviewReason != "" {
		s.appendReviewEvent(ctx, ticket, input.ReviewReason)
	}

	eventType := events.EventTicketCreated
	var payload any = events.TicketCreatedPayload{
		Category: ticket.Category,
		Urgency:  ticket.Urgency,
		Summary:  ticket.Summary,
	}
	if ticket.Status == domain.TicketStatusNeedsInfo {
		eventType = events.EventTicketNeedsInfo
		payload = events.TicketCreatedPayload{
			Category:      ticket.Category,
			Urgency:       ticket.Urgency,
			Summary:       ticket.Summary,
			MissingFields: ticket.MissingFields(),
		}
	}
	s.publishEvent(ctx, ticket, eventType, auditEvent.ID, payload)

	s.logger.Info("ticket created",
		zap.String("ticket_code", ticket.Code),
		zap.String("status", string(ticket.Status)),
		zap.String("category", string(ticket.Category)))

	// category and urgency confirmed by classification: validation starts
	if ticket.Status == domain.TicketStatusNew && input.ClassifierBacked {
		advanced, err := s.Transition(ctx, ticket.ID, domain.TicketStatusValidating, "classification_confirmed", "SYSTEM")
		if err != nil {
			s.logger.Warn("auto-validate failed", zap.String("ticket_code", ticket.Code), zap.Error(err))
			return ticket, nil
		}
		return advanced, nil
	}
	return ticket, nil
}

// Transition moves a ticket to a new state, enforcing the lifecycle table.
// The mutation and its audit event commit inside the per-ticket lock; the
// domain event publishes after release so subscribers never block the lock.
func (s *TicketService) Transition(ctx context.Context, ticketID string, to domain.TicketStatus, trigger, actor string) (*domain.Ticket, error) {
	release, err := s.locker.Acquire(ctx, "ticket:"+ticketID)
	if err != nil {
		return nil, util.NewStorageError(err)
	}

	ticket, auditEvent, err := s.transitionLocked(ctx, ticketID, to, trigger, actor)
	release()
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, ticket, eventTypeFor(to), auditEvent.ID, events.StatusChangedPayload{
		OldStatus: *auditEvent.FromStatus,
		NewStatus: to,
		Trigger:   trigger,
	})
	return ticket, nil
}

func (s *TicketService) transitionLocked(ctx context.Context, ticketID string, to domain.TicketStatus, trigger, actor string) (*domain.Ticket, *domain.TicketEvent, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, util.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, nil, util.NewStorageError(err)
	}

	from := ticket.Status
	if !s.isValidTransition(ticket, to) {
		return nil, nil, util.NewInvalidTransition(string(from), string(to))
	}
	// Missing location fields keep a ticket in NEEDS_INFO until ApplyInfo
	// fills them; escalation is the only exit allowed while incomplete.
	if !ticket.IsComplete() {
		blocked := to == domain.TicketStatusValidating ||
			(from == domain.TicketStatusNeedsInfo && to != domain.TicketStatusEscalated)
		if blocked {
			return nil, nil, util.NewValidationError("ticket incomplete", map[string]any{
				"missing": ticket.MissingFields(),
			})
		}
	}

	now := time.Now()
	switch to {
	case domain.TicketStatusEscalated:
		prior := from
		ticket.EscalatedFrom = &prior
	case domain.TicketStatusClosed:
		ticket.ClosedAt = &now
	default:
		if from == domain.TicketStatusEscalated {
			ticket.EscalatedFrom = nil
		}
	}
	if to == domain.TicketStatusDispatched && ticket.AssignedProvider == nil {
		if provider, ok := defaultProviders[ticket.Category]; ok {
			ticket.AssignedProvider = &provider
		}
	}
	ticket.Status = to
	ticket.LastActivityAt = now

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, nil, util.NewStorageError(err)
	}

	eventType := domain.EventTypeStatusChanged
	switch to {
	case domain.TicketStatusEscalated:
		eventType = domain.EventTypeEscalated
	default:
		if from == domain.TicketStatusEscalated {
			eventType = domain.EventTypeResumed
		}
	}
	auditEvent := &domain.TicketEvent{
		TicketID:    ticket.ID,
		Type:        eventType,
		FromStatus:  &from,
		ToStatus:    &to,
		Trigger:     trigger,
		Description: "Status changed from " + string(from) + " to " + string(to),
		Actor:       actor,
	}
	if provider := ticket.AssignedProvider; provider != nil && to == domain.TicketStatusDispatched {
		auditEvent.Payload = map[string]any{"provider": *provider}
	}
	if err := s.ticketEvents.Create(ctx, auditEvent); err != nil {
		return nil, nil, util.NewStorageError(err)
	}

	s.logger.Info("ticket transitioned",
		zap.String("ticket_code", ticket.Code),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("trigger", trigger))
	return ticket, auditEvent, nil
}

func (s *TicketService) isValidTransition(ticket *domain.Ticket, to domain.TicketStatus) bool {
	from := ticket.Status
	if from == to {
		return false
	}
	if from == domain.TicketStatusEscalated {
		// only the stored prior state resumes the normal flow
		return ticket.EscalatedFrom != nil && to == *ticket.EscalatedFrom
	}
	if to == domain.TicketStatusEscalated {
		return !from.IsTerminal()
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Escalate moves any non-terminal ticket to ESCALATED, remembering the
// prior state for Resume.
func (s *TicketService) Escalate(ctx context.Context, ticketID, trigger, actor string) (*domain.Ticket, error) {
	return s.Transition(ctx, ticketID, domain.TicketStatusEscalated, trigger, actor)
}

// Resume returns an escalated ticket to the state it escalated from.
func (s *TicketService) Resume(ctx context.Context, ticketID, actor string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if isNotFound(err) {
			return nil, util.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, util.NewStorageError(err)
	}
	if ticket.Status != domain.TicketStatusEscalated || ticket.EscalatedFrom == nil {
		return nil, util.NewInvalidTransition(string(ticket.Status), "resume")
	}
	return s.Transition(ctx, ticketID, *ticket.EscalatedFrom, "escalation_handled", actor)
}

// ApplyInfo merges newly supplied fields into an open ticket and recomputes
// completeness. A NEEDS_INFO ticket that becomes complete advances to
// VALIDATING when classifier-backed, NEW otherwise.
func (s *TicketService) ApplyInfo(ctx context.Context, ticketID, text string, fields classify.ExtractedFields, classifierBacked bool, actor string) (*domain.Ticket, error) {
	release, err := s.locker.Acquire(ctx, "ticket:"+ticketID)
	if err != nil {
		return nil, util.NewStorageError(err)
	}

	ticket, auditEvent, err := s.applyInfoLocked(ctx, ticketID, text, fields, actor)
	release()
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, ticket, events.EventTicketContinued, auditEvent.ID, events.ContinuedPayload{
		TextPreview: textPreview(text, 120),
	})

	if ticket.Status == domain.TicketStatusNeedsInfo && ticket.IsComplete() {
		next := domain.TicketStatusNew
		if classifierBacked {
			next = domain.TicketStatusValidating
		}
		return s.Transition(ctx, ticket.ID, next, "info_complete", actor)
	}
	return ticket, nil
}

func (s *TicketService) applyInfoLocked(ctx context.Context, ticketID, text string, fields classify.ExtractedFields, actor string) (*domain.Ticket, *domain.TicketEvent, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, util.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, nil, util.NewStorageError(err)
	}
	if ticket.Status.IsTerminal() {
		return nil, nil, util.NewInvalidTransition(string(ticket.Status), "append")
	}

	if fields.Address != "" && ticket.Address == "" {
		ticket.Address = fields.Address
	}
	if fields.Unit != "" && ticket.Unit == "" && classify.IsValidUnit(fields.Unit) {
		ticket.Unit = fields.Unit
	}
	if text != "" {
		if ticket.Description == "" {
			ticket.Description = text
		} else {
			ticket.Description += "\n\n" + text
		}
	}
	ticket.LastActivityAt = time.Now()

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, nil, util.NewStorageError(err)
	}

	auditEvent := &domain.TicketEvent{
		TicketID:    ticket.ID,
		Type:        domain.EventTypeInfoApplied,
		Trigger:     "continuation",
		Description: "Additional information received: " + textPreview(text, 200),
		Actor:       actor,
	}
	if err := s.ticketEvents.Create(ctx, auditEvent); err != nil {
		return nil, nil, util.NewStorageError(err)
	}
	return ticket, auditEvent, nil
}

// CreateFollowUp opens a linked ticket for a problem recurring after
// closure. CLOSED is terminal: the original record is never mutated.
func (s *TicketService) CreateFollowUp(ctx context.Context, original *domain.Ticket, reporter *domain.Reporter, text string, receivedAt time.Time) (*domain.Ticket, error) {
	if !original.Status.IsTerminal() {
		return nil, util.NewConflict("follow-up requires a closed ticket", map[string]any{
			"code": original.Code,
		})
	}

	followUp, err := s.Create(ctx, TicketCreateInput{
		Reporter:     reporter,
		Channel:      reporter.Channel,
		Category:     original.Category,
		Urgency:      original.Urgency,
		Summary:      classify.Summarize(text),
		Description:  text,
		Address:      original.Address,
		Unit:         original.Unit,
		FollowUpOfID: &original.ID,
		ReceivedAt:   receivedAt,
	})
	if err != nil {
		return nil, err
	}

	auditEvent := &domain.TicketEvent{
		TicketID:    original.ID,
		Type:        domain.EventTypeFollowUpCreated,
		Trigger:     "reporter_reply_after_close",
		Description: "Follow-up ticket " + followUp.Code + " created",
		Payload:     map[string]any{"follow_up_code": followUp.Code},
		Actor:       "SYSTEM",
	}
	if err := s.ticketEvents.Create(ctx, auditEvent); err != nil {
		return nil, util.NewStorageError(err)
	}
	s.publishEvent(ctx, followUp, events.EventFollowUpCreated, auditEvent.ID, events.FollowUpCreatedPayload{
		OriginalCode: original.Code,
		FollowUpCode: followUp.Code,
	})
	return followUp, nil
}

// CheckEscalations escalates URGENT tickets still waiting for dispatch past
// the SLA. Called periodically by the escalation sweeper.
func (s *TicketService) CheckEscalations(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.escalationSLA)
	candidates, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses: []domain.TicketStatus{
			domain.TicketStatusNew,
			domain.TicketStatusNeedsInfo,
			domain.TicketStatusValidating,
		},
		Urgencies:     []domain.Urgency{domain.UrgencyUrgent},
		CreatedBefore: &cutoff,
		Limit:         100,
	})
	if err != nil {
		return 0, util.NewStorageError(err)
	}

	escalated := 0
	for _, candidate := range candidates {
		if _, err := s.Escalate(ctx, candidate.ID, "sla_breach", "SYSTEM"); err != nil {
			s.logger.Warn("sla escalation failed",
				zap.String("ticket_code", candidate.Code), zap.Error(err))
			continue
		}
		escalated++
	}
	return escalated, nil
}

// ListOpen returns the reporter's non-terminal tickets with activity since
// the given time, most recent first.
func (s *TicketService) ListOpen(ctx context.Context, reporterID string, since time.Time) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListOpenByReporter(ctx, reporterID, since)
	if err != nil {
		return nil, util.NewStorageError(err)
	}
	return tickets, nil
}

// GetByCode fetches one ticket by its public code.
func (s *TicketService) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByCode(ctx, code)
	if err != nil {
		if isNotFound(err) {
			return nil, util.NewNotFound("ticket", map[string]any{"code": code})
		}
		return nil, util.NewStorageError(err)
	}
	return ticket, nil
}

// ListEvents returns the audit trail for a ticket code.
func (s *TicketService) ListEvents(ctx context.Context, code string, limit, offset int) ([]domain.TicketEvent, error) {
	ticket, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	entries, err := s.ticketEvents.ListByTicket(ctx, ticket.ID, limit, offset)
	if err != nil {
		return nil, util.NewStorageError(err)
	}
	return entries, nil
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateTicketCode returns a candidate code INC-XXXXXX. Uniqueness is
// enforced by the store; collisions retry with a fresh draw.
func generateTicketCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return "INC-" + string(buf)
}

func (s *TicketService) createWithFreshCode(ctx context.Context, ticket *domain.Ticket) error {
	for attempt := 0; attempt < 5; attempt++ {
		ticket.Code = generateTicketCode()
		err := s.tickets.Create(ctx, ticket)
		if err == nil {
			return nil
		}
		if util.IsCode(err, "CONFLICT") {
			continue
		}
		return util.NewStorageError(err)
	}
	return util.NewStorageError(util.NewConflict("could not allocate ticket code", nil))
}

func (s *TicketService) appendReviewEvent(ctx context.Context, ticket *domain.Ticket, reason string) {
	auditEvent := &domain.TicketEvent{
		TicketID:    ticket.ID,
		Type:        domain.EventTypeReviewFlagged,
		Trigger:     "resolver_fail_open",
		Description: reason,
		Actor:       "SYSTEM",
	}
	if err := s.ticketEvents.Create(ctx, auditEvent); err != nil {
		s.logger.Warn("review event append failed",
			zap.String("ticket_code", ticket.Code), zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, ticket *domain.Ticket, eventType events.EventType, auditEventID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	handle := ""
	if reporter, err := s.reporters.GetByID(ctx, ticket.ReporterID); err == nil {
		handle = reporter.Handle
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:           auditEventID,
		Type:         eventType,
		TicketID:     ticket.ID,
		TicketCode:   ticket.Code,
		AuditEventID: auditEventID,
		Channel:      ticket.Channel,
		Handle:       handle,
		Timestamp:    time.Now(),
		Payload:      payload,
	})
}

func eventTypeFor(to domain.TicketStatus) events.EventType {
	switch to {
	case domain.TicketStatusClosed:
		return events.EventTicketResolved
	case domain.TicketStatusEscalated:
		return events.EventTicketEscalated
	default:
		return events.EventTicketStatusChanged
	}
}

func textPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
