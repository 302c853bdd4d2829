package http

import (
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/service/notifier"
	"github.com/secmon-lab/tasklane/pkg/usecase"
	"github.com/secmon-lab/tasklane/pkg/utils/safe"
)

type Server struct {
	router         *chi.Mux
	uc             *usecase.UseCases
	hub            *notifier.Hub
	policy         model.UploadPolicy
	staticDir      string
	originPatterns []string
}

type Options func(*Server)

// WithHub enables the websocket endpoint
func WithHub(hub *notifier.Hub) Options {
	return func(s *Server) {
		s.hub = hub
	}
}

func WithUploadPolicy(p model.UploadPolicy) Options {
	return func(s *Server) {
		s.policy = p
	}
}

// WithStaticDir serves a prebuilt frontend from dir
func WithStaticDir(dir string) Options {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// WithOriginPatterns sets the hosts allowed to open a websocket from another
// origin
func WithOriginPatterns(patterns []string) Options {
	return func(s *Server) {
		s.originPatterns = patterns
	}
}

func New(uc *usecase.UseCases, opts ...Options) (*Server, error) {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
		policy: model.DefaultUploadPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", registerHandler(uc.Auth))
			r.Post("/login", loginHandler(uc.Auth))
			r.Post("/refresh", refreshHandler(uc.Auth))

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware(uc.Auth, false))
				r.Post("/logout", logoutHandler(uc.Auth))
				r.Get("/me", meHandler(uc.Auth))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(uc.Auth, false))

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", listTasksHandler(uc.Task))
				r.Post("/", createTaskHandler(uc.Task))
				r.Get("/{id}", getTaskHandler(uc.Task))
				r.Put("/{id}", updateTaskHandler(uc.Task))
				r.Delete("/{id}", deleteTaskHandler(uc.Task))
			})

			r.Route("/documents", func(r chi.Router) {
				r.Post("/upload/{taskId}", uploadHandler(uc.Document, s.policy))
				r.Get("/task/{taskId}", listDocumentsHandler(uc.Document))
				r.Get("/{id}", openDocumentHandler(uc.Document, "attachment"))
				r.Get("/{id}/view", openDocumentHandler(uc.Document, "inline"))
				r.Delete("/{id}", deleteDocumentHandler(uc.Document))
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", listUsersHandler(uc.User))
				r.Get("/{id}", getUserHandler(uc.User))
				r.Put("/{id}", updateUserHandler(uc.User))
				r.Delete("/{id}", deleteUserHandler(uc.User))
				r.Put("/{id}/change-password", changePasswordHandler(uc.User))
				r.Put("/{id}/deactivate", setActiveHandler(uc.User, false))
				r.Put("/{id}/activate", setActiveHandler(uc.User, true))
			})
		})

		if s.hub != nil {
			r.With(authMiddleware(uc.Auth, true)).Get("/ws", websocketHandler(s.hub, s.originPatterns))
		}

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, r, http.StatusNotFound, envelope{Message: "Route not found"})
		})
	})

	// Static file serving for SPA (catch-all, must be last)
	if s.staticDir != "" {
		info, err := os.Stat(s.staticDir)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open static dir", goerr.V("dir", s.staticDir))
		}
		if !info.IsDir() {
			return nil, goerr.New("static path is not a directory", goerr.V("dir", s.staticDir))
		}
		r.Get("/*", spaHandler(os.DirFS(s.staticDir)))
	}

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeData(w, r, http.StatusOK, "ok", map[string]string{"status": "OK"})
	}
}

func websocketHandler(hub *notifier.Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, actorFrom(r.Context()), originPatterns)
	}
}

// spaHandler handles SPA routing by serving static files and falling back to index.html
func spaHandler(staticFS fs.FS) http.HandlerFunc {
	fileServer := http.FileServer(http.FS(staticFS))

	return func(w http.ResponseWriter, r *http.Request) {
		urlPath := strings.TrimPrefix(r.URL.Path, "/")
		if urlPath == "" {
			urlPath = "index.html"
		}

		file, err := staticFS.Open(urlPath)
		if err != nil {
			indexFile, err := staticFS.Open("index.html")
			if err != nil {
				http.NotFound(w, r)
				return
			}
			defer safe.Close(r.Context(), indexFile)
			w.Header().Set("Content-Type", "text/html")
			safe.Copy(r.Context(), w, indexFile)
			return
		}
		safe.Close(r.Context(), file)

		fileServer.ServeHTTP(w, r)
	}
}
