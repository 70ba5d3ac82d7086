package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"exprview/domain/core"
	"exprview/internal/errors"

	"github.com/gin-gonic/gin"
)

// writeError reports err with the status its code maps to
func writeError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		c.Error(err)
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  errors.GetCode(errors.FromDomain(err)),
	})
}

// bindJSON decodes the request body, reporting failures as invalid input
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, fmt.Errorf("%w: %v", core.ErrInvalidInput, err))
		return false
	}
	return true
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		writeError(c, fmt.Errorf("%w: %s must be an integer", core.ErrInvalidInput, name))
		return 0, false
	}
	return v, true
}

// intQuery reads an optional integer query parameter
func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(c, fmt.Errorf("%w: %s must be an integer", core.ErrInvalidInput, name))
		return 0, false
	}
	return v, true
}

// writeHTTPError is writeError for plain net/http handlers
func writeHTTPError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(errors.HTTPStatus(err))
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"code":  errors.GetCode(errors.FromDomain(err)),
	})
}
