package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/blackbirdcodelabs/jnanagni-backend/handlers"
	"github.com/blackbirdcodelabs/jnanagni-backend/middleware"
	"github.com/blackbirdcodelabs/jnanagni-backend/models"
)

// SetupRoutes wires every handler onto the router. Scanning endpoints are open
// to volunteers and coordinators; publishing and admin endpoints require the
// coordinator or admin special role.
func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	eventHandler *handlers.EventHandler,
	regHandler *handlers.RegistrationHandler,
	resultHandler *handlers.ResultHandler,
	attHandler *handlers.AttendanceHandler,
	certHandler *handlers.CertificateHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.Metrics)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	router.Post("/auth/signup", authHandler.SignUp)
	router.Post("/auth/signin", authHandler.SignIn)

	// Public certificate verification (QR code target).
	router.Get("/certificates/verify/{certificateID}", certHandler.Verify)

	router.Route("/events", func(r chi.Router) {
		r.Get("/", eventHandler.List)
		r.Get("/{eventID}", eventHandler.Get)
		r.Get("/{eventID}/rounds/{roundID}/results", resultHandler.GetPublicResults)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/{eventID}/register", regHandler.Register)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSpecialRole(models.SpecialRoleAdmin, models.SpecialRoleEventCoordinator))

				r.Post("/", eventHandler.Create)
				r.Patch("/{eventID}/registration-open", eventHandler.SetRegistrationOpen)

				r.Get("/{eventID}/rounds", eventHandler.ListRounds)
				r.Post("/{eventID}/rounds", eventHandler.CreateRound)
				r.Patch("/{eventID}/rounds/{roundID}/activate", eventHandler.ActivateRound)
				r.Delete("/{eventID}/rounds/{roundID}", eventHandler.DeleteRound)

				r.Get("/{eventID}/registrations", regHandler.ListByEvent)
				r.Get("/{eventID}/results", resultHandler.GetAllResultsByEvent)
				r.Post("/{eventID}/rounds/{roundID}/results", resultHandler.CreateResults)
				r.Get("/{eventID}/rounds/{roundID}/results/draft", resultHandler.GetResults)
				r.Patch("/{eventID}/rounds/{roundID}/results/publish", resultHandler.PublishResults)
				r.Patch("/{eventID}/rounds/{roundID}/results/unpublish", resultHandler.UnpublishResults)
				r.Delete("/{eventID}/rounds/{roundID}/results", resultHandler.DeleteResults)
				r.Get("/{eventID}/rounds/{roundID}/qualified", resultHandler.GetQualifiedTeams)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSpecialRole(
					models.SpecialRoleAdmin,
					models.SpecialRoleEventCoordinator,
					models.SpecialRoleVolunteer,
				))

				r.Post("/{eventID}/rounds/{roundID}/attendance", attHandler.Mark)
				r.Delete("/{eventID}/rounds/{roundID}/attendance", attHandler.Unmark)
				r.Get("/{eventID}/rounds/{roundID}/attendance", attHandler.ListByRound)
				r.Get("/{eventID}/rounds/{roundID}/attendance/stats", attHandler.Stats)
			})
		})
	})

	router.Route("/registrations", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/me", regHandler.MyRegistrations)
		r.Get("/invites", regHandler.MyInvites)
		r.Get("/{registrationID}", regHandler.Get)
		r.Post("/{registrationID}/invite", regHandler.InviteMember)
		r.Post("/{registrationID}/respond", regHandler.RespondToInvite)
		r.Delete("/{registrationID}/members/{memberID}", regHandler.RemoveMember)
		r.Delete("/{registrationID}", regHandler.Delete)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSpecialRole(models.SpecialRoleAdmin, models.SpecialRoleEventCoordinator))

			r.Patch("/{registrationID}/submission-data", regHandler.UpdateSubmissionData)
			r.Patch("/{registrationID}/status", regHandler.UpdateStatus)
		})
	})

	router.Route("/users", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/me", userHandler.Me)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSpecialRole(
				models.SpecialRoleAdmin,
				models.SpecialRoleEventCoordinator,
				models.SpecialRoleVolunteer,
			))
			r.Get("/lookup/{jnanagniID}", userHandler.Lookup)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSpecialRole(models.SpecialRoleAdmin, models.SpecialRoleFinanceTeam))
			r.Patch("/{userID}/verify-payment", userHandler.VerifyPayment)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSpecialRole(models.SpecialRoleAdmin))
			r.Put("/{userID}/special-roles", userHandler.AssignSpecialRoles)
		})
	})

	router.Route("/certificates", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/me", certHandler.MyCertificates)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSpecialRole(models.SpecialRoleAdmin, models.SpecialRoleEventCoordinator))
			r.Post("/{certificateID}/file", certHandler.UploadFile)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "resource not found", http.StatusNotFound)
	})
}
