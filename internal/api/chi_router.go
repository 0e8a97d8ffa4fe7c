// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi returns the HTTP handler serving every route.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequestMetrics())
		r.Use(chimiddleware.Compress(5, "application/json"))
		r.Get("/health", router.handler.Health)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())

			r.Post("/sync", router.handler.TriggerSync)
			r.Get("/sync/last", router.handler.LastRun)

			r.Post("/tasks", router.handler.SubmitTask)
			r.Get("/tasks", router.handler.ListTasks)
			r.Get("/tasks/{id}", router.handler.GetTask)
			r.Post("/tasks/{id}/cancel", router.handler.CancelTask)
			r.Post("/tasks/{id}/retry", router.handler.RetryTask)

			r.Get("/contexts", router.handler.ListContexts)
			r.Post("/contexts/{id}/clean", router.handler.CleanContext)

			r.Get("/collections", router.handler.Collections)
			r.Get("/collections/{id}/items", router.handler.CollectionItems)
			r.Get("/deletions", router.handler.Deletions)
		})
	})

	return r
}
