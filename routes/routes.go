package routes

import (
	"github.com/arenahub/esports-ops/handlers"
	"github.com/arenahub/esports-ops/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRoutes собирает все маршруты приложения.
// Публичные маршруты — чтение справочников и аутентификация,
// всё остальное под Bearer-токеном.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	registrationHandler *handlers.RegistrationHandler,
	checkinHandler *handlers.CheckinHandler,
	matchHandler *handlers.MatchHandler,
	teamHandler *handlers.TeamHandler,
	inviteHandler *handlers.InviteHandler,
	gameHandler *handlers.GameHandler,
	dashboardHandler *handlers.DashboardHandler,
	auditHandler *handlers.AuditHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Get("/swagger/*", httpSwagger.WrapHandler)

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	// Живые обновления комнаты турнира.
	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	router.Route("/games", func(r chi.Router) {
		r.Get("/", gameHandler.List)
		r.Get("/{gameID}", gameHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Authorize("admin"))

			r.Post("/", gameHandler.Create)
			r.Put("/{gameID}", gameHandler.Update)
			r.Delete("/{gameID}", gameHandler.Delete)
			r.Put("/{gameID}/logo", gameHandler.UploadLogo)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/{teamID}", teamHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", teamHandler.Create)
			r.Put("/{teamID}", teamHandler.Rename)
			r.Put("/{teamID}/logo", teamHandler.UploadLogo)
			r.Post("/{teamID}/members", teamHandler.AddMember)
			r.Delete("/{teamID}/members/{userID}", teamHandler.RemoveMember)

			r.Post("/{teamID}/invites", inviteHandler.Create)
			r.Get("/{teamID}/invites", inviteHandler.List)
			r.Delete("/{teamID}/invites/{inviteID}", inviteHandler.Revoke)
		})
	})

	router.With(authenticate).Post("/invites/accept", inviteHandler.Accept)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.List)
		r.Get("/{tournamentID}", tournamentHandler.GetByID)
		r.Get("/{tournamentID}/matches", matchHandler.ListByTournament)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", tournamentHandler.Create)
			r.Put("/{tournamentID}", tournamentHandler.Update)
			r.Put("/{tournamentID}/status", tournamentHandler.ChangeStatus)
			r.Put("/{tournamentID}/logo", tournamentHandler.UploadLogo)

			r.Post("/{tournamentID}/staff", tournamentHandler.AssignStaff)
			r.Get("/{tournamentID}/staff", tournamentHandler.ListStaff)
			r.Delete("/{tournamentID}/staff/{assignmentID}", tournamentHandler.DeactivateStaff)

			r.Get("/{tournamentID}/registrations", registrationHandler.ListByTournament)
			r.Post("/{tournamentID}/matches", matchHandler.Create)

			r.Get("/{tournamentID}/stats", dashboardHandler.TournamentCheckinStats)
			r.Get("/{tournamentID}/audit", auditHandler.List)
			r.Post("/{tournamentID}/audit/export", auditHandler.ExportCSV)
		})
	})

	router.With(authenticate).Post("/staff-roles", tournamentHandler.CreateStaffRole)

	router.Route("/registrations", func(r chi.Router) {
		r.Use(authenticate)

		r.Post("/", registrationHandler.Register)
		r.Delete("/{registrationID}", registrationHandler.Cancel)
		r.Put("/{registrationID}/status", registrationHandler.SetStatus)

		r.Post("/{registrationID}/check-in", checkinHandler.CheckIn)
		r.Delete("/{registrationID}/check-in", checkinHandler.UndoCheckIn)
		r.Get("/{registrationID}/check-in", checkinHandler.GetStatus)
		r.Post("/bulk-check-in", checkinHandler.BulkCheckIn)
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/{matchID}/notes", matchHandler.ListNotes)
			r.Post("/{matchID}/live", matchHandler.MarkLive)
			r.Post("/{matchID}/pause", matchHandler.Pause)
			r.Post("/{matchID}/resume", matchHandler.Resume)
			r.Post("/{matchID}/force-complete", matchHandler.ForceComplete)
			r.Post("/{matchID}/notes", matchHandler.AddNote)
		})
	})

	router.With(authenticate).Get("/dashboard/stats", dashboardHandler.PlatformStats)
}
