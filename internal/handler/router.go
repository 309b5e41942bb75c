package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	custommiddleware "github.com/mmeshcher/fitfinder/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware каталога академий.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	origins := h.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r.Use(chimw.RequestID)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Content-Encoding", "Accept-Encoding"},
		AllowCredentials: true,
	}).Handler)
	r.Use(custommiddleware.GzipMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Get("/profile", h.GetProfile)
				r.Put("/profile", h.UpdateProfile)
			})
		})

		r.Get("/locations/states", h.States)
		r.Get("/locations/states/{abbr}/cities", h.Cities)
		r.Post("/identifiers/cnpj/validate", h.ValidateCNPJ)

		r.Route("/gyms", func(r chi.Router) {
			r.Get("/", h.ListGyms)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Post("/", h.RegisterGym)
				r.Get("/mine", h.MyGym)
				r.Put("/mine", h.UpdateMyGym)
				r.Post("/mine/images", h.UploadGymImage)
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.authMiddleware.Optional)

				r.Get("/", h.GetGym)
				r.Get("/rating", h.GetGymRating)
				r.Post("/ratings", h.SubmitRating)
				r.Get("/comments", h.ListComments)
				r.Post("/comments", h.AddComment)
			})
		})

		r.Get("/ws/gyms", h.GymsFeed)
		r.Get("/ws/gyms/{id}", h.GymFeed)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed)
	})

	return r
}
