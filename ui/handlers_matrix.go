package ui

import (
	"net/http"
	"strconv"

	"exprview/app"
	"exprview/domain/matrix"
	"exprview/ui/middleware"

	"github.com/gin-gonic/gin"
)

type rowsResponse struct {
	Offset int                    `json:"offset"`
	Total  int                    `json:"total"`
	Rows   []matrix.ExpressionRow `json:"rows"`
}

type selectProbesRequest struct {
	Probes []string `json:"probes"`
}

type addTestRequest struct {
	Kind   string `json:"kind" binding:"required"`
	GroupA int    `json:"group_a"`
	GroupB int    `json:"group_b"`
}

type downloadRequest struct {
	IndividualSamples bool `json:"individual_samples"`
}

func (s *Server) handleLoadMatrix(c *gin.Context) {
	var req app.LoadRequest
	if !bindJSON(c, &req) {
		return
	}
	info, err := s.service.LoadMatrix(c.Request.Context(), middleware.SessionID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleInfo(c *gin.Context) {
	info, err := s.service.Info(middleware.SessionID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// handleRows serves a window of the view. ?sort=<column> re-sorts first,
// ?asc=true sorts ascending; without sort the current order is kept.
func (s *Server) handleRows(c *gin.Context) {
	offset, ok := intQuery(c, "offset", 0)
	if !ok {
		return
	}
	length, ok := intQuery(c, "length", s.pageSize)
	if !ok {
		return
	}
	var key matrix.SortKey
	if raw := c.Query("sort"); raw != "" {
		column, ok := intQuery(c, "sort", 0)
		if !ok {
			return
		}
		key = matrix.MatrixColumn(column)
	}
	asc, _ := strconv.ParseBool(c.Query("asc"))

	id := middleware.SessionID(c)
	rows, total, err := s.service.MatrixRows(id, offset, length, key, asc)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rowsResponse{Offset: offset, Total: total, Rows: rows})
}

func (s *Server) handleSelectProbes(c *gin.Context) {
	var req selectProbesRequest
	if !bindJSON(c, &req) {
		return
	}
	info, err := s.service.SelectProbes(middleware.SessionID(c), req.Probes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleAddTest(c *gin.Context) {
	var req addTestRequest
	if !bindJSON(c, &req) {
		return
	}
	info, err := s.service.AddTwoGroupTest(middleware.SessionID(c), req.Kind, req.GroupA, req.GroupB)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleRemoveTests(c *gin.Context) {
	info, err := s.service.RemoveTwoGroupTests(middleware.SessionID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleSetFilter(c *gin.Context) {
	column, ok := intParam(c, "column")
	if !ok {
		return
	}
	var filter matrix.ColumnFilter
	if !bindJSON(c, &filter) {
		return
	}
	s.setFilter(c, column, &filter)
}

func (s *Server) handleClearFilter(c *gin.Context) {
	column, ok := intParam(c, "column")
	if !ok {
		return
	}
	s.setFilter(c, column, nil)
}

func (s *Server) setFilter(c *gin.Context, column int, filter *matrix.ColumnFilter) {
	info, err := s.service.SetColumnFilter(middleware.SessionID(c), column, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleColorScale(c *gin.Context) {
	column, ok := intParam(c, "column")
	if !ok {
		return
	}
	scale, err := s.service.ColorScale(middleware.SessionID(c), column)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"min": scale.Min, "max": scale.Max, "valid": scale.Valid})
}

func (s *Server) handleGroups(c *gin.Context) {
	groups, err := s.service.Groups(middleware.SessionID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (s *Server) handleMajors(c *gin.Context) {
	majors, err := s.service.Majors(middleware.SessionID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"majors": majors})
}

func (s *Server) handlePrepareDownload(c *gin.Context) {
	var req downloadRequest
	// an empty body means the default layout
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	d, err := s.service.PrepareDownload(c.Request.Context(), middleware.SessionID(c), req.IndividualSamples)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
