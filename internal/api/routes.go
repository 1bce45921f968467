package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"

	"github.com/tahcohcat/pizzeria-ops/internal/apierr"
	"github.com/tahcohcat/pizzeria-ops/internal/auth"
	"github.com/tahcohcat/pizzeria-ops/internal/logger"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
)

// logRequests writes one access log line per request.
func logRequests(next http.Handler) http.Handler {
	log := logger.New().With("component", "http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	apierr.Write(w, r, apierr.CodeNotFound, "no such route")
}

// NewRouter wires every endpoint. Reads need any signed-in employee,
// catalogue and stock management need a manager, staff administration and
// jobs need an admin.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logRequests, middleware.Recoverer)
	r.NotFoundHandler = http.HandlerFunc(notFound)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	if h.events != nil {
		r.Handle("/ws", h.auth.Middleware(h.events)).Methods(http.MethodGet)
	}

	public := r.PathPrefix("/api/v1").Subrouter()
	public.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	public.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.auth.Middleware, middleware.Timeout(60*time.Second))

	manager := func(fn http.HandlerFunc) http.Handler { return auth.RequireRole(models.RoleManager)(fn) }
	admin := func(fn http.HandlerFunc) http.Handler { return auth.RequireRole(models.RoleAdmin)(fn) }

	api.HandleFunc("/auth/me", h.Me).Methods(http.MethodGet)
	api.HandleFunc("/auth/password", h.ChangePassword).Methods(http.MethodPost)

	api.Handle("/employees", manager(h.ListEmployees)).Methods(http.MethodGet)
	api.Handle("/employees", admin(h.CreateEmployee)).Methods(http.MethodPost)
	api.HandleFunc("/employees/{id:[0-9]+}", h.GetEmployee).Methods(http.MethodGet)
	api.Handle("/employees/{id:[0-9]+}", admin(h.UpdateEmployee)).Methods(http.MethodPut)
	api.Handle("/employees/{id:[0-9]+}", admin(h.DeactivateEmployee)).Methods(http.MethodDelete)

	api.HandleFunc("/ingredients", h.ListIngredients).Methods(http.MethodGet)
	api.Handle("/ingredients", manager(h.CreateIngredient)).Methods(http.MethodPost)
	api.HandleFunc("/ingredients/low-stock", h.LowStock).Methods(http.MethodGet)
	api.HandleFunc("/ingredients/search", h.SearchIngredients).Methods(http.MethodGet)
	api.HandleFunc("/ingredients/{id:[0-9]+}", h.GetIngredient).Methods(http.MethodGet)
	api.Handle("/ingredients/{id:[0-9]+}", manager(h.UpdateIngredient)).Methods(http.MethodPut)
	api.Handle("/ingredients/{id:[0-9]+}", manager(h.DeleteIngredient)).Methods(http.MethodDelete)
	api.HandleFunc("/ingredients/{id:[0-9]+}/restock", h.Restock).Methods(http.MethodPost)
	api.HandleFunc("/ingredients/{id:[0-9]+}/waste", h.Waste).Methods(http.MethodPost)
	api.Handle("/ingredients/{id:[0-9]+}/adjust", manager(h.AdjustIngredient)).Methods(http.MethodPost)
	api.HandleFunc("/ingredients/{id:[0-9]+}/transactions", h.IngredientTransactions).Methods(http.MethodGet)

	api.HandleFunc("/alerts", h.ListAlerts).Methods(http.MethodGet)
	api.Handle("/alerts", manager(h.CreateAlert)).Methods(http.MethodPost)
	api.HandleFunc("/alerts/{id:[0-9]+}/resolve", h.ResolveAlert).Methods(http.MethodPost)

	api.HandleFunc("/recipes", h.ListRecipes).Methods(http.MethodGet)
	api.Handle("/recipes", manager(h.CreateRecipe)).Methods(http.MethodPost)
	api.HandleFunc("/recipes/{id:[0-9]+}", h.GetRecipe).Methods(http.MethodGet)
	api.Handle("/recipes/{id:[0-9]+}", manager(h.UpdateRecipe)).Methods(http.MethodPut)
	api.Handle("/recipes/{id:[0-9]+}", manager(h.DeleteRecipe)).Methods(http.MethodDelete)
	api.Handle("/recipes/{id:[0-9]+}/cost", manager(h.RecipeCost)).Methods(http.MethodGet)

	api.HandleFunc("/sales", h.CreateSale).Methods(http.MethodPost)
	api.Handle("/sales", manager(h.ListSales)).Methods(http.MethodGet)
	api.Handle("/sales/summary", manager(h.SalesSummary)).Methods(http.MethodGet)
	api.Handle("/sales/{id:[0-9]+}", manager(h.GetSale)).Methods(http.MethodGet)

	api.Handle("/shifts", manager(h.CreateShift)).Methods(http.MethodPost)
	api.HandleFunc("/shifts", h.ListShifts).Methods(http.MethodGet)
	api.HandleFunc("/shifts/{id:[0-9]+}/tasks", h.UpdateShiftTasks).Methods(http.MethodPatch)

	api.HandleFunc("/rewards/weekly", h.WeeklyRecords).Methods(http.MethodGet)
	api.HandleFunc("/rewards/leaderboard", h.Leaderboard).Methods(http.MethodGet)
	api.HandleFunc("/rewards/badges", h.ListBadges).Methods(http.MethodGet)
	api.HandleFunc("/rewards/employees/{id:[0-9]+}", h.RewardProfile).Methods(http.MethodGet)
	api.Handle("/rewards/run", manager(h.RunWeeklyRewards)).Methods(http.MethodPost)

	if h.jobs != nil {
		api.Handle("/jobs", admin(h.ListJobs)).Methods(http.MethodGet)
		api.Handle("/jobs/{name}/run", admin(h.RunJob)).Methods(http.MethodPost)
	}

	return r
}
