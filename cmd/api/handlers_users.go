package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/auth"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/httpx"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/policy"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type apiUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	TeamID string `json:"teamId"`
	Active bool   `json:"active"`
}

const userColumns = `id, name, phone, COALESCE(email,''), role, COALESCE(team_id::text,''), active`

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if principal.Role == policy.RoleTeamLeader {
		query += ` WHERE team_id::text=$1`
		args = append(args, principal.TeamID)
	}
	query += ` ORDER BY name`
	rows, err := s.DB.Query(r.Context(), query, args...)
	if err != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	defer rows.Close()
	users := []apiUser{}
	for rows.Next() {
		var u apiUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &u.Role, &u.TeamID, &u.Active); err != nil {
			httpx.Error(w, 500, "scan failed")
			return
		}
		users = append(users, u)
	}
	if rows.Err() != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"users": users})
}

type createUserRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TeamID   string `json:"teamId"`
	Password string `json:"password"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, 400, "invalid json")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = normalizePhone(req.Phone)
	if req.Name == "" || req.Phone == "" || req.Password == "" {
		httpx.Error(w, 400, "name, phone and password required")
		return
	}
	if !policy.IsRole(req.Role) {
		httpx.Error(w, 400, "unknown role "+req.Role)
		return
	}
	var exists bool
	if err := s.DB.QueryRow(r.Context(), `SELECT EXISTS (SELECT 1 FROM users WHERE phone=$1)`, req.Phone).Scan(&exists); err != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	if exists {
		httpx.Error(w, 409, "user with this phone number already exists")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpx.Error(w, 400, err.Error())
		return
	}
	id := uuid.New().String()
	if _, err := s.DB.Exec(r.Context(), `
		INSERT INTO users (id, name, phone, email, role, team_id, password_hash, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,true,now())
	`, id, req.Name, req.Phone, nullIfEmpty(req.Email), req.Role, nullIfEmpty(req.TeamID), hash); err != nil {
		httpx.Error(w, 500, "insert failed")
		return
	}
	httpx.WriteJSON(w, 201, apiUser{
		ID: id, Name: req.Name, Phone: req.Phone, Email: req.Email,
		Role: req.Role, TeamID: req.TeamID, Active: true,
	})
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	TeamID   *string `json:"teamId"`
	Active   *bool   `json:"active"`
	Password *string `json:"password"`
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	var req updateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, 400, "invalid json")
		return
	}
	setCols := []string{}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if req.Name != nil {
		setCols = append(setCols, "name="+arg(strings.TrimSpace(*req.Name)))
	}
	if req.Email != nil {
		setCols = append(setCols, "email="+arg(nullIfEmpty(*req.Email)))
	}
	if req.Role != nil {
		if !policy.IsRole(*req.Role) {
			httpx.Error(w, 400, "unknown role "+*req.Role)
			return
		}
		setCols = append(setCols, "role="+arg(*req.Role))
	}
	if req.TeamID != nil {
		setCols = append(setCols, "team_id="+arg(nullIfEmpty(*req.TeamID)))
	}
	if req.Active != nil {
		setCols = append(setCols, "active="+arg(*req.Active))
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			httpx.Error(w, 400, err.Error())
			return
		}
		setCols = append(setCols, "password_hash="+arg(hash))
	}
	if len(setCols) == 0 {
		httpx.Error(w, 400, "nothing to update")
		return
	}
	query := `UPDATE users SET ` + strings.Join(setCols, ", ") + ` WHERE id=` + arg(userID)
	tag, err := s.DB.Exec(r.Context(), query, args...)
	if err != nil {
		httpx.Error(w, 500, "update failed")
		return
	}
	if tag.RowsAffected() == 0 {
		httpx.Error(w, 404, "user not found")
		return
	}
	httpx.WriteJSON(w, 200, map[string]string{"status": "updated"})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	tag, err := s.DB.Exec(r.Context(), `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		httpx.Error(w, 500, "delete failed")
		return
	}
	if tag.RowsAffected() == 0 {
		httpx.Error(w, 404, "user not found")
		return
	}
	httpx.WriteJSON(w, 200, map[string]string{"status": "deleted"})
}

type bulkInactivateRequest struct {
	UserIDs []string `json:"userIds"`
}

// bulkInactivateUsers flips a batch to inactive in one transaction and
// unassigns their open leads so nothing dangles on a dead account.
func (s *Server) bulkInactivateUsers(w http.ResponseWriter, r *http.Request) {
	var req bulkInactivateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, 400, "invalid json")
		return
	}
	if len(req.UserIDs) == 0 {
		httpx.Error(w, 400, "userIds required")
		return
	}
	tx, err := s.DB.Begin(r.Context())
	if err != nil {
		httpx.Error(w, 500, "begin failed")
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()
	for _, userID := range req.UserIDs {
		tag, err := tx.Exec(r.Context(), `UPDATE users SET active=false WHERE id=$1`, userID)
		if err != nil {
			httpx.Error(w, 500, "update failed")
			return
		}
		if tag.RowsAffected() == 0 {
			httpx.Error(w, 404, "user "+userID+" not found")
			return
		}
		if _, err := tx.Exec(r.Context(), `
			UPDATE leads SET assigned_to=NULL, updated_at=now() WHERE assigned_to=$1
		`, userID); err != nil {
			httpx.Error(w, 500, "update failed")
			return
		}
	}
	if err := tx.Commit(r.Context()); err != nil {
		httpx.Error(w, 500, "commit failed")
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"status": "inactivated", "count": len(req.UserIDs)})
}
