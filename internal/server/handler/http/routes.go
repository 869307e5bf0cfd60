package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/doafavor/internal/middleware"
)

// NewRouter constructs the emulator's HTTP handler.
//
// Routes:
//
//	POST /v1/accounts/signup                 → identity.SignUp
//	POST /v1/accounts/federated              → identity.Federated
//	GET  /v1/providers/{provider}/authorize  → identity.Authorize (HTML)
//	POST /v1/providers/{provider}/authorize  → identity.Consent (form post)
//	POST /v1/providers/{provider}/token      → identity.ProviderToken
//	GET  /v1/documents/{collection}          → documents.Query
//	PUT  /v1/documents/{collection}/{key}    → documents.Put (session token)
//	POST /v1/documents/{collection}          → documents.Append (session token)
func NewRouter(
	identity *IdentityHandler,
	documents *DocumentHandler,
	sessions middleware.SessionParser,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/providers/{provider}", func(r chi.Router) {
			r.Get("/authorize", identity.Authorize)
			r.Post("/authorize", identity.Consent)
			r.With(chiMiddleware.AllowContentType("application/json")).Post("/token", identity.ProviderToken)
		})

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.AllowContentType("application/json"))

			r.Post("/accounts/signup", identity.SignUp)
			r.Post("/accounts/federated", identity.Federated)

			r.Get("/documents/{collection}", documents.Query)

			r.Group(func(r chi.Router) {
				r.Use(middleware.TokenAuth(sessions))
				r.Put("/documents/{collection}/{key}", documents.Put)
				r.Post("/documents/{collection}", documents.Append)
			})
		})
	})

	return r
}
