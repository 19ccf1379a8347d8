package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/payment"
	"github.com/Domenick1991/airticketing/internal/service/ticket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type TicketHandler struct {
	service  ticket.TicketUseCase
	payments payment.Gateway
}

type createTicketRequest struct {
	FlightCode    string   `json:"flight_code"`
	PassengerName string   `json:"passenger_name"`
	Email         string   `json:"email"`
	SeatIDs       []string `json:"seat_ids"`
	PriceCents    int64    `json:"price_cents"`
}

type createTicketResponse struct {
	TicketID        int64  `json:"ticket_id"`
	TicketCode      string `json:"ticket_code"`
	PaymentIntent   string `json:"payment_intent"`
	PaymentDeadline string `json:"payment_deadline"`
}

type ticketResponse struct {
	TicketID        int64    `json:"ticket_id"`
	TicketCode      string   `json:"ticket_code"`
	FlightID        int64    `json:"flight_id"`
	SeatIDs         []string `json:"seat_ids"`
	Status          string   `json:"status"`
	PaymentStatus   string   `json:"payment_status"`
	PaymentDeadline string   `json:"payment_deadline"`
	CancelReason    string   `json:"cancel_reason,omitempty"`
}

func NewTicketHandler(service ticket.TicketUseCase, payments payment.Gateway) *TicketHandler {
	return &TicketHandler{service: service, payments: payments}
}

func (h *TicketHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:id", h.get)
	router.POST("/:id/confirm", h.confirm)
	router.POST("/:id/checkin", h.checkin)
	router.DELETE("/:id", h.cancel)
}

func (h *TicketHandler) create(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intentID, err := h.payments.CreateIntent(c.Request.Context(), req.PriceCents, req.FlightCode+"/"+strings.Join(req.SeatIDs, ","))
	if err != nil {
		writeError(c, err)
		return
	}

	created, err := h.service.CreateTicket(c.Request.Context(), ticket.CreateTicketInput{
		FlightCode:    req.FlightCode,
		PassengerName: req.PassengerName,
		Email:         req.Email,
		SeatIDs:       req.SeatIDs,
		PriceCents:    req.PriceCents,
		PaymentIntent: intentID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createTicketResponse{
		TicketID:        created.ID,
		TicketCode:      created.Code,
		PaymentIntent:   created.PaymentIntent,
		PaymentDeadline: created.PaymentDeadline.Format(time.RFC3339),
	})
}

func (h *TicketHandler) get(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	found, err := h.service.GetTicket(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTicketResponse(found))
}

// confirm settles the payment with the gateway first; the ledger is only
// flipped to paid after the gateway reports success.
func (h *TicketHandler) confirm(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	current, err := h.service.GetTicket(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.payments.Confirm(c.Request.Context(), current.PaymentIntent); err != nil {
		writeError(c, err)
		return
	}

	updated, err := h.service.ConfirmPayment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTicketResponse(updated))
}

func (h *TicketHandler) checkin(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	pass, err := h.service.Checkin(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"qr_payload": pass})
}

// cancel is the explicit refund path. A paid ticket is refunded through
// the gateway after the ledger commits the cancellation.
func (h *TicketHandler) cancel(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	current, err := h.service.GetTicket(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	wasPaid := current.PaymentStatus == domain.PaymentStatusPaid

	cancelled, err := h.service.CancelTicket(c.Request.Context(), id, "cancelled by passenger", domain.CancelCauseRefund)
	if err != nil {
		writeError(c, err)
		return
	}

	if wasPaid && cancelled.PaymentStatus == domain.PaymentStatusRefunded {
		if _, err := h.payments.Refund(c.Request.Context(), cancelled.PaymentIntent, cancelled.PriceCents); err != nil {
			logrus.WithError(err).WithField("ticket_code", cancelled.Code).Error("refund failed, needs manual follow-up")
		}
	}

	c.JSON(http.StatusOK, toTicketResponse(cancelled))
}

func ticketID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func toTicketResponse(t *domain.Ticket) ticketResponse {
	return ticketResponse{
		TicketID:        t.ID,
		TicketCode:      t.Code,
		FlightID:        t.FlightID,
		SeatIDs:         t.SeatIDs,
		Status:          string(t.Status),
		PaymentStatus:   string(t.PaymentStatus),
		PaymentDeadline: t.PaymentDeadline.Format(time.RFC3339),
		CancelReason:    t.CancelReason,
	}
}
