package handlers

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/api/dto"
	"github.com/fincaops/incident-service/internal/channel"
	"github.com/fincaops/incident-service/internal/observability"
	"github.com/fincaops/incident-service/internal/service"
	"github.com/fincaops/incident-service/pkg/util"
)

// IntakeHandler exposes the three inbound channels.
type IntakeHandler struct {
	intake        *service.IntakeService
	webhookSecret string
	logger        *zap.Logger
}

func NewIntakeHandler(intake *service.IntakeService, webhookSecret string, logger *zap.Logger) *IntakeHandler {
	return &IntakeHandler{intake: intake, webhookSecret: webhookSecret, logger: logger}
}

// VerifyWebhookSecret rejects webhook calls without the shared secret.
// Requests pass when no secret is configured, which keeps local setups simple.
func (h *IntakeHandler) VerifyWebhookSecret(c *fiber.Ctx) error {
	if h.webhookSecret == "" {
		return c.Next()
	}
	got := c.Get("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
		return util.NewDomainError("UNAUTHORIZED", "invalid webhook secret", fiber.StatusUnauthorized, nil)
	}
	return c.Next()
}

// Messaging receives provider-forwarded conversational messages.
func (h *IntakeHandler) Messaging(c *fiber.Ctx) error {
	var req dto.MessagingInboundRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid messaging payload", map[string]any{"parse": err.Error()})
	}
	if strings.TrimSpace(req.From) == "" {
		return util.NewValidationError("sender is required", nil)
	}

	msg := channel.FromMessaging(channel.MessagingPayload{
		From:        req.From,
		ProfileName: req.ProfileName,
		Body:        req.Body,
		ReceivedAt:  time.Now(),
	})
	result, err := h.intake.Process(c.UserContext(), msg)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(intakeResponse(result))
}

// Email receives parsed inbound emails.
func (h *IntakeHandler) Email(c *fiber.Ctx) error {
	var req dto.EmailInboundRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid email payload", map[string]any{"parse": err.Error()})
	}
	if strings.TrimSpace(req.From) == "" {
		return util.NewValidationError("sender address is required", nil)
	}

	msg := channel.FromEmail(channel.EmailPayload{
		From:       req.From,
		FromName:   req.Name,
		Subject:    req.Subject,
		Body:       req.Body,
		ReceivedAt: time.Now(),
	})
	result, err := h.intake.Process(c.UserContext(), msg)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(intakeResponse(result))
}

// WebForm receives public incident form submissions.
func (h *IntakeHandler) WebForm(c *fiber.Ctx) error {
	var req dto.WebFormRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid form payload", map[string]any{"parse": err.Error()})
	}
	if strings.TrimSpace(req.Email) == "" {
		return util.NewValidationError("email is required", nil)
	}
	if strings.TrimSpace(req.Description) == "" {
		return util.NewValidationError("description is required", nil)
	}

	msg := channel.FromWebForm(channel.WebFormPayload{
		Email:       req.Email,
		Name:        req.Name,
		Description: req.Description,
		Address:     req.Address,
		Unit:        req.Unit,
		TicketCode:  req.TicketCode,
		ReceivedAt:  time.Now(),
	})
	result, err := h.intake.Process(c.UserContext(), msg)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if result.Outcome == observability.OutcomeCreated || result.Outcome == observability.OutcomeNeedsInfo || result.Outcome == observability.OutcomeFollowUp {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(intakeResponse(result))
}

func intakeResponse(result *service.IntakeResult) *dto.IntakeResponse {
	return &dto.IntakeResponse{
		Outcome: string(result.Outcome),
		Ticket:  dto.NewTicketResponse(result.Ticket),
	}
}
