package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authHandler "github.com/zhouzirui/prepx/backend/internal/handler/auth"
	callHandler "github.com/zhouzirui/prepx/backend/internal/handler/call"
	interviewHandler "github.com/zhouzirui/prepx/backend/internal/handler/interview"
	vapiHandler "github.com/zhouzirui/prepx/backend/internal/handler/vapi"
	middlewarePkg "github.com/zhouzirui/prepx/backend/internal/middleware"
	interviewModel "github.com/zhouzirui/prepx/backend/internal/model/interview"
	authService "github.com/zhouzirui/prepx/backend/internal/service/auth"
	callService "github.com/zhouzirui/prepx/backend/internal/service/call"
	"github.com/zhouzirui/prepx/backend/pkg/utils"
)

// Dependencies 路由所需的服务集合
type Dependencies struct {
	Auth          *authService.Service
	Calls         *callService.Service
	Interviews    interviewModel.Store
	WebhookSecret string
	CORSOrigins   []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.CORSOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		authHandler.New(deps.Auth).RegisterRoutes(api)

		// vendor webhook authenticates with its own shared secret
		vapiHandler.New(deps.Calls, deps.WebhookSecret).RegisterRoutes(api)

		api.Group(func(private chi.Router) {
			private.Use(middlewarePkg.RequireUser(deps.Auth))
			interviewHandler.New(deps.Interviews).RegisterRoutes(private)
			callHandler.New(deps.Calls, deps.Interviews).RegisterRoutes(private)
		})
	})

	return r
}
