package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/pavelzhurbin/shorturl/internal/models"
	"github.com/pavelzhurbin/shorturl/internal/service"
)

type URLService interface {
	ShortenURL(ctx context.Context, params service.ShortenParams) (*models.URL, error)
	Resolve(ctx context.Context, shortCode string) (string, error)
	GetURL(ctx context.Context, shortCode string) (*models.URL, error)
	ModifyURL(ctx context.Context, shortCode, originalURL string) (*models.URL, error)
	ListURLs(ctx context.Context) ([]*models.URL, error)
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

func NewRouter(logger *httplog.Logger, urlSvc URLService) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/r/{shortCode}", handleRedirect(urlSvc))

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Get("/urls", handleListURLs(urlSvc))

		r.Route("/shorten", func(r chi.Router) {
			r.With(middleware.AllowContentType("application/json")).
				Post("/", handleShortenURL(urlSvc, validate))

			r.Route("/{shortCode}", func(r chi.Router) {
				r.Get("/", handleGetURL(urlSvc))
				r.With(middleware.AllowContentType("application/json")).
					Put("/", handleModifyURL(urlSvc, validate))
			})
		})
	})

	return r
}
