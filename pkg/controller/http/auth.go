package http

import (
	"net/http"

	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/usecase"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	User   *model.User        `json:"user"`
	Tokens *usecase.TokenPair `json:"tokens"`
}

type userResponse struct {
	User *model.User `json:"user"`
}

func registerHandler(authUC *usecase.AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		u, pair, err := authUC.Register(r.Context(), usecase.RegisterInput{
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusCreated, "User registered successfully", sessionResponse{User: u, Tokens: pair})
	}
}

func loginHandler(authUC *usecase.AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		u, pair, err := authUC.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "Login successful", sessionResponse{User: u, Tokens: pair})
	}
}

func refreshHandler(authUC *usecase.AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		u, pair, err := authUC.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "Token refreshed", sessionResponse{User: u, Tokens: pair})
	}
}

func logoutHandler(authUC *usecase.AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := authUC.Logout(r.Context(), actorFrom(r.Context())); err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "Logout successful", nil)
	}
}

func meHandler(authUC *usecase.AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := authUC.Me(r.Context(), actorFrom(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "", userResponse{User: u})
	}
}
