package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/classify"
	"github.com/fincaops/incident-service/internal/domain"
	"github.com/fincaops/incident-service/internal/repository"
	"github.com/fincaops/incident-service/pkg/util"
)

// ResolveAction is the resolver's verdict for one inbound message.
type ResolveAction string

const (
	ActionCreateNew ResolveAction = "CREATE_NEW"
	ActionContinue  ResolveAction = "CONTINUE"
	ActionFollowUp  ResolveAction = "FOLLOW_UP"
)

// Decision is the resolver output. Side-effect free: all mutation happens
// downstream in the ticket service.
type Decision struct {
	Action         ResolveAction
	Ticket         *domain.Ticket
	Classification *classify.Classification
	NeedsReview    bool
	Reason         string
}

// PriorClassification carries a classifier result obtained before the
// reporter lock was taken, tied to the candidate it was judged against.
type PriorClassification struct {
	CandidateID string
	Result      *classify.Classification
	Err         error
}

// ResolverService decides continuation versus new ticket. Reads only; the
// caller holds the per-reporter lock across Decide and the commit of
// whatever Decide returns.
type ResolverService struct {
	tickets    repository.TicketRepository
	classifier classify.Classifier
	window     time.Duration
	logger     *zap.Logger
}

// NewResolverService constructs the resolver with the continuation window.
func NewResolverService(tickets repository.TicketRepository, classifier classify.Classifier, window time.Duration, logger *zap.Logger) *ResolverService {
	if window <= 0 {
		window = 2 * time.Hour
	}
	return &ResolverService{
		tickets:    tickets,
		classifier: classifier,
		window:     window,
		logger:     logger,
	}
}

// Candidates returns the reporter's open tickets with activity inside the
// window, most recently active first.
func (s *ResolverService) Candidates(ctx context.Context, reporterID string, now time.Time) ([]domain.Ticket, error) {
	since := now.Add(-s.window)
	tickets, err := s.tickets.ListOpenByReporter(ctx, reporterID, since)
	if err != nil {
		return nil, util.NewStorageError(err)
	}
	return tickets, nil
}

// Preclassify runs the classifier against the reporter's most recent
// candidate before any lock is held. The gateway call is read-only and
// idempotent, so it is safe (and cheaper) outside the critical section.
func (s *ResolverService) Preclassify(ctx context.Context, reporter *domain.Reporter, msg domain.InboundMessage) *PriorClassification {
	now := msg.ReceivedAt
	if now.IsZero() {
		now = time.Now()
	}
	priorContext := ""
	candidateID := ""
	if candidates, err := s.Candidates(ctx, reporter.ID, now); err == nil && len(candidates) > 0 {
		priorContext = candidates[0].Summary
		candidateID = candidates[0].ID
	}
	result, err := s.classifier.Classify(ctx, msg.Text, priorContext)
	return &PriorClassification{CandidateID: candidateID, Result: result, Err: err}
}

// Decide implements the continuation algorithm:
//  1. an explicit valid code owned by the reporter routes directly to that
//     ticket, regardless of recency (follow-up when it is CLOSED);
//  2. no open candidate inside the window: new ticket;
//  3. an explicit new-incident phrase forces a new ticket even in-window;
//  4. otherwise the classifier judges same problem vs different problem
//     against the most recently active candidate;
//  5. classifier unavailable: fail open to a new ticket flagged for review.
func (s *ResolverService) Decide(ctx context.Context, reporter *domain.Reporter, msg domain.InboundMessage, prior *PriorClassification) (*Decision, error) {
	now := msg.ReceivedAt
	if now.IsZero() {
		now = time.Now()
	}

	if msg.ExplicitTicketCode != "" {
		decision, err := s.decideByCode(ctx, reporter, msg)
		if decision != nil || err != nil {
			return decision, err
		}
		// invalid or foreign code: fall through to normal resolution
	}

	candidates, err := s.Candidates(ctx, reporter.ID, now)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Decision{
			Action:         ActionCreateNew,
			Classification: resultOrNil(prior),
			Reason:         "no open ticket in window",
		}, nil
	}

	// most recently active candidate wins the tie-break
	candidate := candidates[0]

	if classify.ContainsNewIncidentPhrase(msg.Text) {
		return &Decision{
			Action:         ActionCreateNew,
			Classification: resultOrNil(prior),
			Reason:         "explicit new-incident phrase",
		}, nil
	}

	judgement := prior
	if judgement == nil || judgement.CandidateID != candidate.ID {
		// candidate set changed since the pre-lock read; judge again
		result, classifyErr := s.classifier.Classify(ctx, msg.Text, candidate.Summary)
		judgement = &PriorClassification{CandidateID: candidate.ID, Result: result, Err: classifyErr}
	}
	if judgement.Err != nil || judgement.Result == nil || judgement.Result.SameAsContext == nil {
		// never merge on ambiguity
		ambiguous := util.NewResolutionAmbiguous(judgement.Err)
		s.logger.Warn("continuation check ambiguous, failing open",
			zap.String("reporter_id", reporter.ID),
			zap.String("candidate_code", candidate.Code),
			zap.Error(ambiguous))
		return &Decision{
			Action:      ActionCreateNew,
			NeedsReview: true,
			Reason:      "classification gateway unavailable during continuation check",
		}, nil
	}

	if *judgement.Result.SameAsContext {
		return &Decision{
			Action:         ActionContinue,
			Ticket:         &candidate,
			Classification: judgement.Result,
			Reason:         "classified as same problem",
		}, nil
	}
	return &Decision{
		Action:         ActionCreateNew,
		Classification: judgement.Result,
		Reason:         "classified as different problem",
	}, nil
}

func (s *ResolverService) decideByCode(ctx context.Context, reporter *domain.Reporter, msg domain.InboundMessage) (*Decision, error) {
	ticket, err := s.tickets.GetByCode(ctx, msg.ExplicitTicketCode)
	if err != nil {
		if isNotFound(err) {
			s.logger.Info("referenced ticket code unknown",
				zap.String("code", msg.ExplicitTicketCode))
			return nil, nil
		}
		return nil, util.NewStorageError(err)
	}
	if ticket.ReporterID != reporter.ID {
		s.logger.Warn("referenced ticket owned by another reporter",
			zap.String("code", msg.ExplicitTicketCode),
			zap.String("reporter_id", reporter.ID))
		return nil, nil
	}
	if ticket.Status.IsTerminal() {
		return &Decision{
			Action: ActionFollowUp,
			Ticket: ticket,
			Reason: "explicit code references a closed ticket",
		}, nil
	}
	return &Decision{
		Action: ActionContinue,
		Ticket: ticket,
		Reason: "explicit ticket code",
	}, nil
}

func resultOrNil(prior *PriorClassification) *classify.Classification {
	if prior == nil || prior.Err != nil {
		return nil
	}
	return prior.Result
}
