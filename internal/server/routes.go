package server

import (
	"boatresearch/internal/core/browser"
	"boatresearch/internal/core/job"
	"boatresearch/internal/core/listing"
	"boatresearch/internal/core/research"
	"boatresearch/internal/health"
	"boatresearch/internal/platform/redis"

	"github.com/gofiber/fiber/v2"
)

type Dependencies struct {
	Job           *job.JobService
	Listings      listing.Store
	Ingest        *listing.IngestService
	Research      *research.Registry
	ResearchStore research.Store
	Browser       *browser.Mutex
	Redis         *redis.Service
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	// Health endpoints
	healthHandler := health.NewHealthHandler(map[string]health.Checker{"redis": d.Redis}, d.Research, d.Browser)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	listingHandler := listing.NewHandler(d.Listings, d.Ingest, d.Job)
	api.Post("/listings/ingest", listingHandler.HandleIngest)
	api.Get("/listings/ingest/:jobId", listingHandler.HandleGetIngest)
	api.Get("/listings/:id", listingHandler.HandleGetListing)

	researchHandler := research.NewHandler(d.Research, d.ResearchStore)
	rg := api.Group("/research")
	rg.Post("/:id", researchHandler.HandleStart)
	rg.Get("/:id", researchHandler.HandleResult)
	rg.Get("/:id/status", researchHandler.HandleStatus)
	rg.Get("/:id/events", researchHandler.HandleEvents)
	rg.Post("/:id/select-specs", researchHandler.HandleSelectSpecs)
	rg.Post("/:id/select-reviews", researchHandler.HandleSelectReviews)
	rg.Post("/:id/select-forums", researchHandler.HandleSelectForums)

	return healthHandler
}
