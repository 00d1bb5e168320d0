package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// actorView is one spawned actor in engine units and WGS84.
type actorView struct {
	Index     int     `json:"index"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Lon       float64 `json:"lon"`
	Lat       float64 `json:"lat"`
	Destroyed bool    `json:"destroyed"`
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok", "running": s.running()}
	if s.deps.Session != nil {
		body["session"] = s.deps.Session.ID
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleScore(c *gin.Context) {
	if s.deps.Scorer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session running"})
		return
	}
	c.JSON(http.StatusOK, s.deps.Scorer.Snapshot())
}

func (s *Server) handleActors(c *gin.Context) {
	var actors []actorView
	destroyed := 0
	if s.deps.Actors != nil {
		for i, p := range s.deps.Actors.Positions() {
			lon, lat, _ := s.deps.Georef.LonLat(p)
			v := actorView{Index: i, X: p.X, Y: p.Y, Z: p.Z, Lon: lon, Lat: lat, Destroyed: s.deps.Actors.IsDestroyed(i)}
			if v.Destroyed {
				destroyed++
			}
			actors = append(actors, v)
		}
	}
	if actors == nil {
		actors = []actorView{}
	}
	c.JSON(http.StatusOK, gin.H{
		"total":     len(actors),
		"destroyed": destroyed,
		"actors":    actors,
	})
}

func (s *Server) handleStop(c *gin.Context) {
	if s.deps.Scorer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session running"})
		return
	}
	if !s.running() {
		c.JSON(http.StatusConflict, gin.H{"error": "session already stopped"})
		return
	}
	s.deps.Scorer.Stop()
	s.logger.Info().Str("client_ip", c.ClientIP()).Msg("stop requested over API")
	c.JSON(http.StatusAccepted, gin.H{"status": "stopping"})
}

func (s *Server) running() bool {
	if s.deps.Scorer == nil {
		return false
	}
	select {
	case <-s.deps.Scorer.Done():
		return false
	default:
		return true
	}
}
