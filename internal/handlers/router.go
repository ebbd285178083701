package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Auth          Authenticator
	AuthHandler   *AuthHandler
	Session       *SessionHandler
	Presence      *PresenceHandler
	Social        *SocialHandler
	ScanLimiter   *UserLimiter
	MetricsSource prometheus.Gatherer
	Log           *zap.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if d.MetricsSource != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.MetricsSource, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", d.AuthHandler.Register)
		r.Post("/auth/login", d.AuthHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(d.Auth, d.Log))

			r.Post("/auth/logout", d.AuthHandler.Logout)
			r.Post("/auth/logout-all", d.AuthHandler.LogoutAll)

			r.Post("/presence/visibility", d.Session.SetVisibility)
			r.Post("/presence/unload", d.Session.Unload)
			r.Get("/presence", d.Presence.Bulk)
			r.Get("/presence/{userID}", d.Presence.Get)

			r.Route("/device", func(r chi.Router) {
				r.Get("/permissions", d.Session.Permissions)
				r.Put("/permissions", d.Session.SetPermission)
				r.Post("/bluetooth/select", d.Session.SelectDevice)
				r.Post("/nfc/readings", d.Session.DeliverReadings)
				r.Delete("/nfc/session", d.Session.StopNFC)
				r.Get("/nfc/outbox", d.Session.NFCOutbox)
				r.Get("/notifications", d.Session.Notifications)
			})

			r.Route("/discovery", func(r chi.Router) {
				r.Get("/", d.Session.Snapshot)
				r.Post("/activate", d.Session.Activate)
				r.Post("/deactivate", d.Session.Deactivate)
				r.Post("/refresh", d.Session.Refresh)
				r.Get("/stream", d.Session.Stream)
				r.Post("/connect", d.Session.Connect)
				r.Post("/requests/{userID}/accept", d.Session.AcceptIncoming)
				r.Post("/requests/{userID}/decline", d.Session.DeclineIncoming)

				r.Group(func(r chi.Router) {
					if d.ScanLimiter != nil {
						r.Use(d.ScanLimiter.Middleware)
					}
					r.Post("/scan/bluetooth", d.Session.ScanBluetooth)
					r.Post("/scan/nfc", d.Session.ScanNFC)
				})
			})

			r.Get("/links/me", d.Social.ListLinks)
			r.Get("/links/{userID}", d.Social.ListLinks)
			r.Delete("/links/{userID}", d.Social.Unlink)

			r.Get("/notifications", d.Social.ListNotifications)
			r.Post("/notifications/{notificationID}/read", d.Social.MarkNotificationRead)
			r.Post("/notifications/{notificationID}/respond", d.Social.RespondToRequest)
			r.Delete("/notifications/{notificationID}", d.Social.DeleteNotification)

			r.Get("/messages/{userID}", d.Social.ListConversation)
			r.Post("/messages/{userID}", d.Social.SendMessage)

			r.Get("/monetization/eligibility", d.Social.Eligibility)
			r.Post("/monetization/apply", d.Social.ApplyMonetization)
		})
	})

	return r
}
