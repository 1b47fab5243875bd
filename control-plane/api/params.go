package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// idParam reads a positive integer path parameter. On failure it writes a 400
// and returns false.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.String(http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// intQuery reads an optional non-negative integer query parameter.
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.String(http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badBody(c *gin.Context, err error) {
	c.String(http.StatusBadRequest, "invalid request body: "+err.Error())
}
