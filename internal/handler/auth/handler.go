package auth

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/prepx/backend/internal/middleware"
	"github.com/zhouzirui/prepx/backend/internal/model/user"
	authService "github.com/zhouzirui/prepx/backend/internal/service/auth"
	"github.com/zhouzirui/prepx/backend/pkg/utils"
)

const genericFailure = "Something went wrong!"

// Handler 认证相关的HTTP处理器
type Handler struct {
	authSvc *authService.Service
}

// New 创建认证处理器
func New(authSvc *authService.Service) *Handler {
	return &Handler{authSvc: authSvc}
}

// RegisterRoutes 注册认证路由，/me 需要登录
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/validate/{formType}", h.handleValidate)
		r.Post("/sign-up", h.handleSignUp)
		r.Post("/sign-in", h.handleSignIn)
		r.Post("/sign-out", h.handleSignOut)
		r.With(middleware.RequireUser(h.authSvc)).Get("/me", h.handleMe)
	})
}

type authResponse struct {
	Message   string     `json:"message"`
	Redirect  string     `json:"redirect"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	User      *user.User `json:"user,omitempty"`
}

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	formType := authService.FormType(chi.URLParam(r, "formType"))
	if formType != authService.FormSignIn && formType != authService.FormSignUp {
		utils.RespondError(w, http.StatusNotFound, "unknown form type")
		return
	}

	var form authService.Form
	if err := utils.DecodeJSON(w, r, &form); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.authSvc.Validate(formType, form); err != nil {
		h.respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var form authService.Form
	if err := utils.DecodeJSON(w, r, &form); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.authSvc.SignUp(r.Context(), form)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, authResponse{
		Message:  "Account creation is successful. Please Sign in.",
		Redirect: "/sign-in",
		User:     &created,
	})
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var form authService.Form
	if err := utils.DecodeJSON(w, r, &form); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, signedIn, err := h.authSvc.SignIn(r.Context(), form)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, authResponse{
		Message:   "Signed in.",
		Redirect:  "/",
		Token:     session.Token,
		ExpiresAt: &session.ExpiresAt,
		User:      &signedIn,
	})
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token, err := middleware.BearerToken(r); err == nil {
		if err := h.authSvc.SignOut(r.Context(), token); err != nil {
			h.respondFailure(w, err)
			return
		}
	}
	utils.RespondJSON(w, http.StatusOK, authResponse{Message: "Signed out.", Redirect: "/sign-in"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	utils.RespondJSON(w, http.StatusOK, current)
}

func (h *Handler) respondFailure(w http.ResponseWriter, err error) {
	var invalid *authService.ValidationError
	switch {
	case errors.As(err, &invalid):
		utils.RespondJSON(w, http.StatusBadRequest, validationResponse{Error: "invalid form", Fields: invalid.Fields})
	case errors.Is(err, user.ErrEmailTaken):
		utils.RespondError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, authService.ErrInvalidCredentials):
		utils.RespondError(w, http.StatusUnauthorized, "invalid email or password")
	default:
		log.Printf("[auth] request failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, genericFailure)
	}
}
