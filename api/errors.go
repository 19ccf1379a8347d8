package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/gin-gonic/gin"
)

// writeError maps the core error taxonomy onto HTTP. The code field lets
// clients tell a seat conflict from an exhausted flight and react
// accordingly (re-offer seats vs reduce passenger count).
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch {
	case domain.IsNotFound(err):
		status = http.StatusNotFound
		code = "not_found"
	case domain.IsConflict(err):
		status = http.StatusConflict
		code = "conflict"
	case errors.Is(err, domain.ErrInsufficientSeats):
		status = http.StatusConflict
		code = "insufficient_seats"
	case errors.Is(err, domain.ErrInvalidState):
		status = http.StatusUnprocessableEntity
		code = "invalid_state"
	case errors.Is(err, domain.ErrTransient):
		status = http.StatusServiceUnavailable
		code = "transient"
	}

	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
