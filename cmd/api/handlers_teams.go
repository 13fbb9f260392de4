package main

import (
	"net/http"
	"strings"

	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type apiTeam struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LeaderID string `json:"leaderId"`
}

func (s *Server) listTeams(w http.ResponseWriter, r *http.Request) {
	rows, err := s.DB.Query(r.Context(), `
		SELECT id, name, COALESCE(leader_id::text, '') FROM teams ORDER BY name
	`)
	if err != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	defer rows.Close()
	teams := []apiTeam{}
	for rows.Next() {
		var t apiTeam
		if err := rows.Scan(&t.ID, &t.Name, &t.LeaderID); err != nil {
			httpx.Error(w, 500, "scan failed")
			return
		}
		teams = append(teams, t)
	}
	if rows.Err() != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"teams": teams})
}

type teamRequest struct {
	Name     string `json:"name"`
	LeaderID string `json:"leaderId"`
}

func (s *Server) createTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, 400, "invalid json")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpx.Error(w, 400, "name required")
		return
	}
	id := uuid.New().String()
	if _, err := s.DB.Exec(r.Context(), `
		INSERT INTO teams (id, name, leader_id, created_at) VALUES ($1,$2,$3,now())
	`, id, req.Name, nullIfEmpty(req.LeaderID)); err != nil {
		httpx.Error(w, 500, "insert failed")
		return
	}
	httpx.WriteJSON(w, 201, apiTeam{ID: id, Name: req.Name, LeaderID: req.LeaderID})
}

func (s *Server) updateTeam(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "team_id")
	var req teamRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, 400, "invalid json")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpx.Error(w, 400, "name required")
		return
	}
	tag, err := s.DB.Exec(r.Context(), `
		UPDATE teams SET name=$1, leader_id=$2 WHERE id=$3
	`, req.Name, nullIfEmpty(req.LeaderID), teamID)
	if err != nil {
		httpx.Error(w, 500, "update failed")
		return
	}
	if tag.RowsAffected() == 0 {
		httpx.Error(w, 404, "team not found")
		return
	}
	httpx.WriteJSON(w, 200, apiTeam{ID: teamID, Name: req.Name, LeaderID: req.LeaderID})
}

// deleteTeam removes a team and detaches its members and leads in the
// same transaction so nothing keeps pointing at a dead team.
func (s *Server) deleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "team_id")
	tx, err := s.DB.Begin(r.Context())
	if err != nil {
		httpx.Error(w, 500, "begin failed")
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()
	if _, err := tx.Exec(r.Context(), `UPDATE leads SET team_id=NULL, updated_at=now() WHERE team_id=$1`, teamID); err != nil {
		httpx.Error(w, 500, "update failed")
		return
	}
	if _, err := tx.Exec(r.Context(), `UPDATE users SET team_id=NULL WHERE team_id=$1`, teamID); err != nil {
		httpx.Error(w, 500, "update failed")
		return
	}
	tag, err := tx.Exec(r.Context(), `DELETE FROM teams WHERE id=$1`, teamID)
	if err != nil {
		httpx.Error(w, 500, "delete failed")
		return
	}
	if tag.RowsAffected() == 0 {
		httpx.Error(w, 404, "team not found")
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		httpx.Error(w, 500, "commit failed")
		return
	}
	httpx.WriteJSON(w, 200, map[string]string{"status": "deleted"})
}
