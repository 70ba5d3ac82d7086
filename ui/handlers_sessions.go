package ui

import (
	"net/http"
	"strings"

	"exprview/ui/middleware"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleSamples(c *gin.Context) {
	samples, err := s.service.Samples(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"samples": samples, "schema": s.service.Schema()})
}

// handleUnits aggregates samples into units, optionally for a comma
// separated list of majors
func (s *Server) handleUnits(c *gin.Context) {
	var majors []string
	if raw := c.Query("majors"); raw != "" {
		for _, m := range strings.Split(raw, ",") {
			if m = strings.TrimSpace(m); m != "" {
				majors = append(majors, m)
			}
		}
	}
	units, err := s.service.Units(c.Request.Context(), majors)
	if err != nil {
		writeError(c, err)
		return
	}
	type unitView struct {
		Major     string   `json:"major"`
		Medium    string   `json:"medium"`
		Minor     string   `json:"minor"`
		Label     string   `json:"label"`
		IsControl bool     `json:"is_control"`
		Treated   []string `json:"treated"`
		Control   []string `json:"control"`
	}
	out := make([]unitView, 0, len(units))
	for _, u := range units {
		v := unitView{
			Major:     u.Triple.Major,
			Medium:    u.Triple.Medium,
			Minor:     u.Triple.Minor,
			Treated:   make([]string, 0, len(u.Treated)),
			Control:   make([]string, 0, len(u.Control)),
			Label:     u.Triple.String(),
			IsControl: u.IsControl(),
		}
		for _, smp := range u.Treated {
			v.Treated = append(v.Treated, smp.ID)
		}
		for _, smp := range u.Control {
			v.Control = append(v.Control, smp.ID)
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"units": out})
}

func (s *Server) handleListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.service.Sessions()})
}

func (s *Server) handleOpenSession(c *gin.Context) {
	id := s.service.OpenSession()
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

func (s *Server) handleCloseSession(c *gin.Context) {
	if err := s.service.CloseSession(middleware.SessionID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSaveSession(c *gin.Context) {
	snap, err := s.service.Save(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": snap.SessionID, "version": snap.Version, "saved_at": snap.SavedAt})
}

func (s *Server) handleResumeSession(c *gin.Context) {
	info, err := s.service.Resume(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleListSnapshots(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}
	saved, err := s.service.SavedSessions(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": saved})
}

func (s *Server) handleForgetSession(c *gin.Context) {
	if err := s.service.ForgetSession(c.Request.Context(), middleware.SessionID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
