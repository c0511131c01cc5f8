// Package api implements the HTTP surface of the route planner.
package api

import (
	"net/http"
	"strings"

	"github.com/karthik-kata/StingerOps/internal/auth"
)

// Principal is the caller of a request.
type Principal struct {
	Tenant string
	Role   string // admin, planner, viewer
}

// getPrincipal extracts tenant and role from a bearer token when one verifies,
// otherwise from the X-Tenant-Id and X-Role headers (dev fallback).
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return Principal{Tenant: pr.Tenant, Role: pr.Role}
		}
	}
	tenant := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
	role := strings.TrimSpace(r.Header.Get("X-Role"))
	if tenant == "" {
		tenant = "t_demo"
	}
	if role == "" {
		role = auth.RoleAdmin
	}
	return Principal{Tenant: tenant, Role: role}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == auth.RoleAdmin }

// CanPlan reports whether the principal may start optimizations or change datasets.
func (p Principal) CanPlan() bool { return p.IsAdmin() || p.Role == auth.RolePlanner }

// requireAdmin writes a 403 and returns false unless the caller is an admin.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return p, false
	}
	return p, true
}

// requirePlanner writes a 403 and returns false unless the caller is a planner or admin.
func (s *Server) requirePlanner(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p := s.getPrincipal(r)
	if !p.CanPlan() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "planner or admin required", r.URL.Path)
		return p, false
	}
	return p, true
}
