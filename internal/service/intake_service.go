package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/classify"
	"github.com/fincaops/incident-service/internal/domain"
	"github.com/fincaops/incident-service/internal/events"
	"github.com/fincaops/incident-service/internal/locking"
	"github.com/fincaops/incident-service/internal/observability"
	"github.com/fincaops/incident-service/pkg/util"
)

// IntakeResult reports what one inbound message did.
type IntakeResult struct {
	Outcome observability.IntakeOutcome
	Ticket  *domain.Ticket
}

// IntakeService runs the pipeline for one inbound item: resolve the
// reporter, decide continuation versus new ticket, and apply the decision.
// The decision and its commit are serialized per reporter so concurrent
// messages from the same person cannot both create a ticket.
type IntakeService struct {
	reporters  *ReporterService
	resolver   *ResolverService
	tickets    *TicketService
	classifier classify.Classifier
	locker     locking.Locker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// IntakeDependencies bundles collaborators for the intake pipeline.
type IntakeDependencies struct {
	Reporters  *ReporterService
	Resolver   *ResolverService
	Tickets    *TicketService
	Classifier classify.Classifier
	Locker     locking.Locker
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	return &IntakeService{
		reporters:  deps.Reporters,
		resolver:   deps.Resolver,
		tickets:    deps.Tickets,
		classifier: deps.Classifier,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Process handles one canonical inbound message end to end. Each item fails
// independently; an error here never affects other inbound traffic.
func (s *IntakeService) Process(ctx context.Context, msg domain.InboundMessage) (*IntakeResult, error) {
	result, err := s.process(ctx, msg)
	if err != nil {
		s.metrics.RecordIntake(string(msg.Channel), observability.OutcomeFailed)
		return nil, err
	}
	s.metrics.RecordIntake(string(msg.Channel), result.Outcome)
	return result, nil
}

func (s *IntakeService) process(ctx context.Context, msg domain.InboundMessage) (*IntakeResult, error) {
	if msg.Text == "" && msg.ExplicitTicketCode == "" {
		return nil, util.NewValidationError("message text required", nil)
	}

	reporter, err := s.reporters.Resolve(ctx, msg.Channel, msg.Handle)
	if err != nil {
		return nil, err
	}

	// classifier call happens before the lock; it is read-only and idempotent
	prior := s.resolver.Preclassify(ctx, reporter, msg)

	if prior.Err == nil && prior.Result != nil && prior.Result.Intent == classify.IntentCheckStatus {
		return s.reportStatus(ctx, reporter, msg)
	}

	release, err := s.locker.Acquire(ctx, "reporter:"+reporter.ID)
	if err != nil {
		return nil, util.NewStorageError(err)
	}
	defer release()

	decision, err := s.resolver.Decide(ctx, reporter, msg, prior)
	if err != nil {
		return nil, err
	}

	switch decision.Action {
	case ActionContinue:
		return s.continueTicket(ctx, reporter, msg, decision)
	case ActionFollowUp:
		ticket, err := s.tickets.CreateFollowUp(ctx, decision.Ticket, reporter, msg.Text, msg.ReceivedAt)
		if err != nil {
			return nil, err
		}
		return &IntakeResult{Outcome: observability.OutcomeFollowUp, Ticket: ticket}, nil
	default:
		return s.createTicket(ctx, reporter, msg, decision)
	}
}

func (s *IntakeService) createTicket(ctx context.Context, reporter *domain.Reporter, msg domain.InboundMessage, decision *Decision) (*IntakeResult, error) {
	classification := decision.Classification
	classifierBacked := classification != nil
	if classification == nil {
		// fail-open path: keyword extraction keeps the ticket usable
		classification, _ = classify.NewKeywordClassifier().Classify(ctx, msg.Text, "")
	}

	s.applyProfile(ctx, reporter, msg, classification)

	address := classification.Extracted.Address
	if address == "" {
		address = reporter.Address
	}
	unit := classification.Extracted.Unit
	if unit == "" {
		unit = reporter.Unit
	}

	ticket, err := s.tickets.Create(ctx, TicketCreateInput{
		Reporter:         reporter,
		Channel:          msg.Channel,
		Category:         classification.Category,
		Urgency:          classification.Urgency,
		Summary:          classification.Summary,
		Description:      msg.Text,
		Address:          address,
		Unit:             unit,
		NeedsReview:      decision.NeedsReview,
		ReviewReason:     decision.Reason,
		ClassifierBacked: classifierBacked,
		ReceivedAt:       msg.ReceivedAt,
	})
	if err != nil {
		return nil, err
	}

	outcome := observability.OutcomeCreated
	if ticket.Status == domain.TicketStatusNeedsInfo {
		outcome = observability.OutcomeNeedsInfo
	}
	return &IntakeResult{Outcome: outcome, Ticket: ticket}, nil
}

func (s *IntakeService) continueTicket(ctx context.Context, reporter *domain.Reporter, msg domain.InboundMessage, decision *Decision) (*IntakeResult, error) {
	var fields classify.ExtractedFields
	classifierBacked := false
	if decision.Classification != nil {
		fields = decision.Classification.Extracted
		classifierBacked = true
		s.applyProfile(ctx, reporter, msg, decision.Classification)
	}

	ticket, err := s.tickets.ApplyInfo(ctx, decision.Ticket.ID, msg.Text, fields, classifierBacked, reporterActor(reporter))
	if err != nil {
		return nil, err
	}
	return &IntakeResult{Outcome: observability.OutcomeContinued, Ticket: ticket}, nil
}

// reportStatus answers a status query over the notification path instead of
// opening a ticket.
func (s *IntakeService) reportStatus(ctx context.Context, reporter *domain.Reporter, msg domain.InboundMessage) (*IntakeResult, error) {
	now := msg.ReceivedAt
	if now.IsZero() {
		now = time.Now()
	}
	open, err := s.tickets.ListOpen(ctx, reporter.ID, now.Add(-30*24*time.Hour))
	if err != nil {
		return nil, err
	}

	lines := make([]events.StatusReportLine, 0, len(open))
	for _, ticket := range open {
		lines = append(lines, events.StatusReportLine{
			Code:    ticket.Code,
			Summary: ticket.Summary,
			Status:  ticket.Status,
		})
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        "status-report:" + reporter.ID + ":" + now.Format(time.RFC3339Nano),
		Type:      events.EventStatusReport,
		Channel:   msg.Channel,
		Handle:    msg.Handle,
		Timestamp: now,
		Payload:   events.StatusReportPayload{Tickets: lines},
	})
	return &IntakeResult{Outcome: observability.OutcomeIgnored}, nil
}

func (s *IntakeService) applyProfile(ctx context.Context, reporter *domain.Reporter, msg domain.InboundMessage, classification *classify.Classification) {
	profile := domain.ReporterProfile{
		Name:    classification.Extracted.Name,
		Address: classification.Extracted.Address,
	}
	if profile.Name == "" {
		profile.Name = msg.DisplayName
	}
	if classify.IsValidUnit(classification.Extracted.Unit) {
		profile.Unit = classification.Extracted.Unit
	}
	updated, err := s.reporters.UpdateProfile(ctx, reporter.ID, profile)
	if err != nil {
		s.logger.Warn("profile update failed",
			zap.String("reporter_id", reporter.ID), zap.Error(err))
		return
	}
	*reporter = *updated
}

func reporterActor(reporter *domain.Reporter) string {
	if reporter.Name != "" {
		return reporter.Name
	}
	return reporter.Handle
}
