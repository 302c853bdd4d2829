package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/usecase"
)

type userListResponse struct {
	Users      []*model.User    `json:"users"`
	Pagination model.Pagination `json:"pagination"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func userFilterFrom(r *http.Request) (model.UserFilter, error) {
	qr := &queryReader{q: r.URL.Query()}
	f := model.UserFilter{
		Role:     types.Role(qr.str("role")),
		IsActive: qr.boolParam("isActive"),
		Search:   qr.str("search"),
		Page:     qr.page(),
	}
	return f, qr.err
}

func listUsersHandler(userUC *usecase.UserUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := userFilterFrom(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		users, p, err := userUC.List(r.Context(), actorFrom(r.Context()), filter)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "", userListResponse{Users: users, Pagination: p})
	}
}

func getUserHandler(userUC *usecase.UserUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := userUC.Get(r.Context(), actorFrom(r.Context()), types.UserID(chi.URLParam(r, "id")))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "", userResponse{User: u})
	}
}

func updateUserHandler(userUC *usecase.UserUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch model.UserPatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, r, err)
			return
		}

		u, err := userUC.Update(r.Context(), actorFrom(r.Context()), types.UserID(chi.URLParam(r, "id")), patch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "User updated successfully", userResponse{User: u})
	}
}

func deleteUserHandler(userUC *usecase.UserUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := userUC.Delete(r.Context(), actorFrom(r.Context()), types.UserID(chi.URLParam(r, "id"))); err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "User deleted successfully", nil)
	}
}

func changePasswordHandler(userUC *usecase.UserUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		err := userUC.ChangePassword(r.Context(), actorFrom(r.Context()), types.UserID(chi.URLParam(r, "id")),
			req.CurrentPassword, req.NewPassword)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "Password changed successfully", nil)
	}
}

func setActiveHandler(userUC *usecase.UserUseCase, active bool) http.HandlerFunc {
	msg := "User deactivated successfully"
	if active {
		msg = "User activated successfully"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		u, err := userUC.SetActive(r.Context(), actorFrom(r.Context()), types.UserID(chi.URLParam(r, "id")), active)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, msg, userResponse{User: u})
	}
}
