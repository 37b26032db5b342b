package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facetrack/internal/recognizer"
	"github.com/kozaktomas/facetrack/internal/web/handlers"
)

func (s *Server) setupRoutes(engine *recognizer.Engine) {
	guard := handlers.NewGuard(engine)

	statusHandler := handlers.NewStatusHandler(guard)
	personsHandler := handlers.NewPersonsHandler(guard)
	recognizeHandler := handlers.NewRecognizeHandler(guard)
	targetHandler := handlers.NewTargetHandler(guard)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Status
		r.Get("/status", statusHandler.Get)

		// Persons
		r.Get("/persons", personsHandler.List)
		r.Post("/persons", personsHandler.Register)
		r.Delete("/persons", personsHandler.Clear)
		r.Get("/persons/{id}", personsHandler.Get)
		r.Delete("/persons/{id}", personsHandler.Delete)
		r.Post("/persons/{id}/samples", personsHandler.AddSample)
		r.Get("/persons/{id}/thumbnail", personsHandler.Thumbnail)

		// Recognition
		r.Post("/recognize", recognizeHandler.Recognize)

		// Tracking target
		r.Get("/target", targetHandler.Get)
		r.Put("/target", targetHandler.Set)
		r.Delete("/target", targetHandler.Clear)
		r.Post("/target/next", targetHandler.Next)
		r.Post("/target/prev", targetHandler.Prev)
	})
}
