package api

import (
	"net/http"
	"strconv"

	"github.com/Domenick1991/airticketing/internal/service/flights"
	"github.com/Domenick1991/airticketing/internal/service/seatmap"
	"github.com/gin-gonic/gin"
)

type FlightHandler struct {
	service  flights.FlightUseCase
	seatMaps seatmap.SeatMapUseCase
}

func NewFlightHandler(service flights.FlightUseCase, seatMaps seatmap.SeatMapUseCase) *FlightHandler {
	return &FlightHandler{service: service, seatMaps: seatMaps}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.POST("/", h.create)
	router.GET("/:id", h.get)
	router.PUT("/:id", h.update)
	router.GET("/:id/seatmap", h.seatMap)
	router.POST("/:id/seats/book", h.bookSeats)
	router.POST("/:id/seats/release", h.releaseSeats)
}

func (h *FlightHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

func (h *FlightHandler) create(c *gin.Context) {
	var req flights.CreateFlightInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flight, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, flight)
}

func (h *FlightHandler) update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req flights.UpdateFlightInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flight, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

type seatsRequest struct {
	SeatIDs   []string `json:"seat_ids"`
	TicketRef string   `json:"ticket_ref"`
}

// bookSeats reserves seats directly, without a ticket. Used for holds
// placed by operations staff; regular bookings go through /tickets.
func (h *FlightHandler) bookSeats(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req seatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.seatMaps.BookSeats(c.Request.Context(), id, req.SeatIDs, req.TicketRef); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booked": req.SeatIDs})
}

func (h *FlightHandler) releaseSeats(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req seatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.seatMaps.ReleaseSeats(c.Request.Context(), id, req.SeatIDs); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": req.SeatIDs})
}

func (h *FlightHandler) seatMap(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	layout, err := h.seatMaps.GetLayout(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flight_id": layout.FlightID, "layout": layout.Layout})
}
