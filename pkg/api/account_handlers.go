package api

import (
	"net/http"

	"github.com/atriumhq/atrium/pkg/accounts"
	"github.com/atriumhq/atrium/pkg/httputil"
)

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := httputil.ParsePagination(r)
	params := accounts.ListParams{
		Page:         page,
		Limit:        limit,
		Search:       httputil.ParseQueryString(r, "search", ""),
		RoleFilter:   httputil.ParseQueryString(r, "role", ""),
		StatusFilter: httputil.ParseQueryString(r, "status", ""),
	}

	items, total, err := s.accounts.List(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WritePage(w, items, int(total), page, limit)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	view, err := s.accounts.Get(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, view)
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		httputil.WriteValidationError(w, "name, email and password are required")
		return
	}

	view, err := s.accounts.Create(r.Context(), accounts.CreateParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	s.record("create_user", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, view)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	accountID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	err := s.accounts.Delete(r.Context(), accountID, caller.ID)
	s.record("delete_user", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) updateUserRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	accountID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req updateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := s.accounts.UpdateSystemRole(r.Context(), accountID, req.Role, caller.ID)
	s.record("update_user_role", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateUserStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	accountID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := s.accounts.UpdateStatus(r.Context(), accountID, req.Status, caller.ID)
	s.record("update_user_status", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type batchRequest struct {
	AccountIDs []int64 `json:"account_ids"`
	Action     string  `json:"action"`
}

func (s *Server) batchUsers(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := s.accounts.Batch(r.Context(), req.AccountIDs, accounts.BatchAction(req.Action), caller.ID)
	s.record("batch_users", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}
