package app

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/klokku/hris/internal/config"
	"github.com/klokku/hris/internal/rest"
	"github.com/klokku/hris/pkg/manager"
	log "github.com/sirupsen/logrus"
)

const (
	ManagerIdHeader = "X-Manager-Id"
	AdminKeyHeader  = "X-Admin-Key"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies, cfg config.Application) {
	r.Use(requestLogger)
	r.Use(managerIdentity(deps.ManagerService))
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		log.WithFields(log.Fields{
			"method": req.Method,
			"path":   req.URL.Path,
		}).Debug("Handling request")
		next.ServeHTTP(w, req)
	})
}

// managerIdentity propagates the X-Manager-Id header into the request context. Unknown or deactivated
// managers are rejected.
func managerIdentity(managers manager.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			managerId := req.Header.Get(ManagerIdHeader)
			ctx := req.Context()

			if managerId != "" {
				m, err := managers.Resolve(ctx, managerId)
				if err != nil {
					if errors.Is(err, manager.ErrManagerNotFound) {
						log.Debugf("manager not found: %s", managerId)
						rest.WriteError(w, http.StatusForbidden, "Manager not found", "")
					} else {
						log.Errorf("failed to get manager: %v", err)
						rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
					}
					return
				}
				log.Debugf("manager found: %s", m.Uid)
				ctx = manager.WithManager(ctx, m)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

// requireAdmin guards administrative routes with the configured key. An empty key leaves them open.
func requireAdmin(cfg config.Admin) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if cfg.ApiKey != "" {
				key := req.Header.Get(AdminKeyHeader)
				if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.ApiKey)) != 1 {
					log.Debugf("rejected admin request to %s", req.URL.Path)
					rest.WriteError(w, http.StatusUnauthorized, "Invalid admin key", "")
					return
				}
			}
			next.ServeHTTP(w, req)
		})
	}
}
