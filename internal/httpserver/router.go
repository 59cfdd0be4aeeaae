package httpserver

import (
	"log/slog"
	"net/http"
	"strings"

	"chatmemory/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouteRegistrar регистрирует маршруты API на роутере.
type RouteRegistrar interface {
	Register(r chi.Router)
}

type RouterDeps struct {
	Logger    *slog.Logger
	API       RouteRegistrar
	APIPrefix string
}

// NewRouter собирает chi-роутер с общими middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	// Фронтенд ходит с завершающим слэшем: /generate/.
	r.Use(chimw.StripSlashes)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	prefix := "/" + strings.Trim(deps.APIPrefix, "/")
	if prefix == "/" {
		deps.API.Register(r)
	} else {
		r.Route(prefix, deps.API.Register)
	}

	return r
}
