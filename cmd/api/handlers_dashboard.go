package main

import (
	"encoding/json"
	"net/http"

	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/auth"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/history"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/httpx"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/ledger"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/lifecycle"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/policy"
)

type dashboardStats struct {
	TotalLeads      int                `json:"totalLeads"`
	ByStatus        map[string]int     `json:"byStatus"`
	WonLeads        int                `json:"wonLeads"`
	ApprovedRevenue float64            `json:"approvedRevenue"`
	PendingPayments int                `json:"pendingPayments"`
	RevenueByTeam   map[string]float64 `json:"revenueByTeam"`
	WonByManager    map[string]int     `json:"wonByManager"`
}

// dashboard aggregates the caller-visible slice of the pipeline. Results
// are cached briefly; revenue comes from decoding each won lead's payment
// trail rather than a separate payments table.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	cacheKey := "dashboard:" + principal.Role + ":" + principal.TeamID + ":" + principal.UserID
	if s.Cache != nil {
		if cached, err := s.Cache.Get(r.Context(), cacheKey); err == nil && cached != "" {
			var stats dashboardStats
			if json.Unmarshal([]byte(cached), &stats) == nil {
				httpx.WriteJSON(w, 200, stats)
				return
			}
		}
	}

	query := `
		SELECT status, COALESCE(payment_history,''), COALESCE(team_id::text,''), COALESCE(assigned_to::text,'')
		FROM leads`
	var args []any
	switch principal.Role {
	case policy.RoleTeamLeader:
		query += ` WHERE team_id::text=$1`
		args = append(args, principal.TeamID)
	case policy.RoleRelationshipMgr, policy.RoleFinancialMgr:
		query += ` WHERE assigned_to::text=$1`
		args = append(args, principal.UserID)
	}
	rows, err := s.DB.Query(r.Context(), query, args...)
	if err != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	defer rows.Close()

	stats := dashboardStats{
		ByStatus:      map[string]int{},
		RevenueByTeam: map[string]float64{},
		WonByManager:  map[string]int{},
	}
	for rows.Next() {
		var status, paymentHistory, teamID, assignedTo string
		if err := rows.Scan(&status, &paymentHistory, &teamID, &assignedTo); err != nil {
			httpx.Error(w, 500, "scan failed")
			return
		}
		stats.TotalLeads++
		stats.ByStatus[status]++
		if status != lifecycle.StatusWon {
			continue
		}
		stats.WonLeads++
		if assignedTo != "" {
			stats.WonByManager[assignedTo]++
		}
		entries := history.DecodePayments(paymentHistory)
		total := ledger.ApprovedTotal(entries)
		stats.ApprovedRevenue += total
		if teamID != "" {
			stats.RevenueByTeam[teamID] += total
		}
		for _, e := range entries {
			if !e.Approved {
				stats.PendingPayments++
			}
		}
	}
	if rows.Err() != nil {
		httpx.Error(w, 500, "query failed")
		return
	}

	if s.Cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			_ = s.Cache.Set(r.Context(), cacheKey, string(raw), s.DashboardCacheTTL)
		}
	}
	httpx.WriteJSON(w, 200, stats)
}
