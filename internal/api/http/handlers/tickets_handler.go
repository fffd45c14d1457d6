package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/api/dto"
	"github.com/fincaops/incident-service/internal/domain"
	"github.com/fincaops/incident-service/internal/service"
	"github.com/fincaops/incident-service/pkg/util"
)

// TicketsHandler exposes operator endpoints for ticket lifecycle management.
type TicketsHandler struct {
	tickets *service.TicketService
	logger  *zap.Logger
}

func NewTicketsHandler(tickets *service.TicketService, logger *zap.Logger) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, logger: logger}
}

// Get returns one ticket by its public code.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetByCode(c.UserContext(), ticketCodeParam(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// Events returns the audit trail of a ticket, oldest first.
func (h *TicketsHandler) Events(c *fiber.Ctx) error {
	limit := parseIntQuery(c, "limit", 100)
	offset := parseIntQuery(c, "offset", 0)
	events, err := h.tickets.ListEvents(c.UserContext(), ticketCodeParam(c), limit, offset)
	if err != nil {
		return err
	}
	out := make([]*dto.TicketEventResponse, 0, len(events))
	for i := range events {
		out = append(out, dto.NewTicketEventResponse(&events[i]))
	}
	return c.JSON(fiber.Map{"events": out})
}

// Transition applies an operator-driven status change.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid transition payload", map[string]any{"parse": err.Error()})
	}
	to := domain.TicketStatus(strings.ToUpper(strings.TrimSpace(req.To)))
	if !to.Valid() {
		return util.NewValidationError("unknown target status", map[string]any{"to": req.To})
	}

	ticket, err := h.tickets.GetByCode(c.UserContext(), ticketCodeParam(c))
	if err != nil {
		return err
	}
	updated, err := h.tickets.Transition(c.UserContext(), ticket.ID, to, req.Reason, actorOrDefault(req.Actor))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(updated))
}

// Escalate moves a ticket to ESCALATED, remembering where it came from.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return util.NewValidationError("invalid escalate payload", map[string]any{"parse": err.Error()})
	}
	ticket, err := h.tickets.GetByCode(c.UserContext(), ticketCodeParam(c))
	if err != nil {
		return err
	}
	updated, err := h.tickets.Escalate(c.UserContext(), ticket.ID, req.Reason, actorOrDefault(req.Actor))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(updated))
}

// Resume returns an escalated ticket to the state it was escalated from.
func (h *TicketsHandler) Resume(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return util.NewValidationError("invalid resume payload", map[string]any{"parse": err.Error()})
	}
	ticket, err := h.tickets.GetByCode(c.UserContext(), ticketCodeParam(c))
	if err != nil {
		return err
	}
	updated, err := h.tickets.Resume(c.UserContext(), ticket.ID, actorOrDefault(req.Actor))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(updated))
}

func ticketCodeParam(c *fiber.Ctx) string {
	return strings.ToUpper(strings.TrimSpace(c.Params("code")))
}

func actorOrDefault(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "operator"
	}
	return actor
}

func parseIntQuery(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
