package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincaops/incident-service/internal/classify"
	"github.com/fincaops/incident-service/internal/domain"
	"github.com/fincaops/incident-service/internal/events"
	"github.com/fincaops/incident-service/internal/observability"
)

func whatsappMessage(handle, text string) domain.InboundMessage {
	return domain.InboundMessage{
		Channel:    domain.ChannelWhatsApp,
		Handle:     handle,
		Text:       text,
		ReceivedAt: time.Now(),
	}
}

func TestIntakeLeakFollowedByStillLeakingContinuesOneTicket(t *testing.T) {
	env := newTestEnv(nil) // keyword classifier
	ctx := context.Background()

	first, err := env.intake.Process(ctx, whatsappMessage("+34622000001",
		"Hola, hay una fuga de agua en el baño de mi piso, Calle Mayor 5, piso 3B"))
	require.NoError(t, err)
	require.NotNil(t, first.Ticket)

	second, err := env.intake.Process(ctx, whatsappMessage("+34622000001", "sigue goteando"))
	require.NoError(t, err)

	assert.Equal(t, observability.OutcomeContinued, second.Outcome)
	assert.Equal(t, first.Ticket.ID, second.Ticket.ID)
	assert.Equal(t, 1, env.ticketCount())
	assert.Contains(t, second.Ticket.Description, "sigue goteando")
}

func TestIntakeDistinctProblemPhraseOpensSecondTicket(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	first, err := env.intake.Process(ctx, whatsappMessage("+34622000002",
		"Hay una fuga de agua en el baño"))
	require.NoError(t, err)

	second, err := env.intake.Process(ctx, whatsappMessage("+34622000002",
		"esto es un problema distinto, el ascensor no funciona"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Ticket.ID, second.Ticket.ID)
	assert.Equal(t, 2, env.ticketCount())
	assert.Equal(t, domain.CategoryElevator, second.Ticket.Category)
}

func TestIntakeConcurrentDuplicatesYieldOneTicket(t *testing.T) {
	env := newTestEnv(sameJudgement(true))
	ctx := context.Background()

	const concurrency = 8
	var wg sync.WaitGroup
	errs := make([]error, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.intake.Process(ctx, whatsappMessage("+34622000003",
				"fuga de agua en el garaje"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, env.ticketCount(),
		"concurrent identical reports must converge on a single ticket")
}

func TestIntakeStatusQueryDoesNotOpenTicket(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	_, err := env.intake.Process(ctx, whatsappMessage("+34622000004",
		"Hay una fuga de agua en el baño, Calle Mayor 5, piso 3B"))
	require.NoError(t, err)

	result, err := env.intake.Process(ctx, whatsappMessage("+34622000004",
		"¿cómo va mi incidencia? novedades"))
	require.NoError(t, err)

	assert.Equal(t, observability.OutcomeIgnored, result.Outcome)
	assert.Nil(t, result.Ticket)
	assert.Equal(t, 1, env.ticketCount())

	reports := env.recorder.ofType(events.EventStatusReport)
	require.Len(t, reports, 1)
	payload, ok := reports[0].Payload.(events.StatusReportPayload)
	require.True(t, ok)
	assert.Len(t, payload.Tickets, 1)
}

func TestIntakeClassifierOutageFailsOpenWithReviewFlag(t *testing.T) {
	env := newTestEnv(func(text, priorContext string) (*classify.Classification, error) {
		if priorContext != "" {
			return nil, errors.New("gateway unavailable")
		}
		return &classify.Classification{
			Intent:   classify.IntentNewIncident,
			Category: domain.CategoryWater,
			Urgency:  domain.UrgencyHigh,
			Summary:  classify.Summarize(text),
		}, nil
	})
	ctx := context.Background()

	_, err := env.intake.Process(ctx, whatsappMessage("+34622000005", "fuga de agua en el baño"))
	require.NoError(t, err)

	second, err := env.intake.Process(ctx, whatsappMessage("+34622000005", "sigue goteando"))
	require.NoError(t, err)

	// reports must never be dropped, and never silently merged
	assert.Equal(t, 2, env.ticketCount())
	require.NotNil(t, second.Ticket)
	assert.True(t, second.Ticket.NeedsReview)

	flagged := env.eventRepo.byType(domain.EventTypeReviewFlagged)
	require.Len(t, flagged, 1)
	assert.Equal(t, second.Ticket.ID, flagged[0].TicketID)
}

func TestIntakeExplicitCodeOnClosedTicketOpensFollowUp(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	first, err := env.intake.Process(ctx, whatsappMessage("+34622000006",
		"fuga de agua en el baño, Calle Mayor 5, piso 3B"))
	require.NoError(t, err)
	forceStatus(t, env, first.Ticket.ID, domain.TicketStatusClosed)

	msg := whatsappMessage("+34622000006", "el problema de "+first.Ticket.Code+" ha vuelto")
	msg.ExplicitTicketCode = first.Ticket.Code
	result, err := env.intake.Process(ctx, msg)
	require.NoError(t, err)

	assert.Equal(t, observability.OutcomeFollowUp, result.Outcome)
	require.NotNil(t, result.Ticket.FollowUpOfID)
	assert.Equal(t, first.Ticket.ID, *result.Ticket.FollowUpOfID)
	assert.Equal(t, 2, env.ticketCount())
}

func TestIntakeBuildsReporterProfileProgressively(t *testing.T) {
	env := newTestEnv(func(text, priorContext string) (*classify.Classification, error) {
		result := &classify.Classification{
			Intent:   classify.IntentNewIncident,
			Category: domain.CategoryWater,
			Urgency:  domain.UrgencyHigh,
			Summary:  classify.Summarize(text),
			Extracted: classify.ExtractedFields{
				Name:    "María García",
				Address: "Calle Mayor 5",
				Unit:    "3B",
			},
		}
		if priorContext != "" {
			same := true
			result.SameAsContext = &same
		}
		return result, nil
	})
	ctx := context.Background()

	result, err := env.intake.Process(ctx, whatsappMessage("+34622000007",
		"Soy María García, fuga de agua en Calle Mayor 5, piso 3B"))
	require.NoError(t, err)
	assert.Equal(t, observability.OutcomeCreated, result.Outcome)

	reporter, err := env.reporters.Resolve(ctx, domain.ChannelWhatsApp, "+34622000007")
	require.NoError(t, err)
	assert.Equal(t, "María García", reporter.Name)
	assert.Equal(t, "Calle Mayor 5", reporter.Address)
	assert.Equal(t, "3B", reporter.Unit)
}

func TestIntakeUsesReporterProfileForMissingLocation(t *testing.T) {
	env := newTestEnv(func(text, priorContext string) (*classify.Classification, error) {
		result := &classify.Classification{
			Intent:   classify.IntentNewIncident,
			Category: domain.CategoryElevator,
			Urgency:  domain.UrgencyHigh,
			Summary:  classify.Summarize(text),
		}
		if priorContext != "" {
			same := false
			result.SameAsContext = &same
		}
		return result, nil
	})
	ctx := context.Background()

	reporter := env.newReporter(t, domain.ChannelWhatsApp, "+34622000008")
	_, err := env.reporters.UpdateProfile(ctx, reporter.ID,
		domain.ReporterProfile{Address: "Calle Mayor 5", Unit: "3B"})
	require.NoError(t, err)

	result, err := env.intake.Process(ctx, whatsappMessage("+34622000008", "el ascensor no funciona"))
	require.NoError(t, err)

	// location known from earlier reports: no NEEDS_INFO round trip
	assert.Equal(t, "Calle Mayor 5", result.Ticket.Address)
	assert.Equal(t, "3B", result.Ticket.Unit)
	assert.NotEqual(t, domain.TicketStatusNeedsInfo, result.Ticket.Status)
}

func TestIntakeEmptyMessageRejected(t *testing.T) {
	env := newTestEnv(nil)
	_, err := env.intake.Process(context.Background(), whatsappMessage("+34622000009", ""))
	require.Error(t, err)
}

func TestIntakeEachChannelNotifiesOverOriginChannel(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	_, err := env.intake.Process(ctx, domain.InboundMessage{
		Channel:    domain.ChannelEmail,
		Handle:     "vecino@example.com",
		Text:       "Fuga de agua en el baño, Calle Mayor 5, piso 3B",
		ReceivedAt: time.Now(),
	})
	require.NoError(t, err)

	created := env.recorder.ofType(events.EventTicketNeedsInfo)
	require.Len(t, created, 1)
	assert.Equal(t, domain.ChannelEmail, created[0].Channel)
	assert.Equal(t, "vecino@example.com", created[0].Handle)
}
