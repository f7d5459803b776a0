package listing

import (
	"context"
	"errors"
	"strconv"

	"boatresearch/internal/core/job"

	"github.com/gofiber/fiber/v2"
)

type JobReader interface {
	GetJobStatus(ctx context.Context, jobID string) (*job.Job, error)
}

type Handler struct {
	store  Store
	ingest *IngestService
	jobs   JobReader
}

func NewHandler(store Store, ingest *IngestService, jobs JobReader) *Handler {
	return &Handler{store: store, ingest: ingest, jobs: jobs}
}

type ingestRequest struct {
	FileName string `json:"file_name"`
}

type ingestResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": msg})
}

func (h *Handler) HandleIngest(c *fiber.Ctx) error {
	var req ingestRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if req.FileName == "" {
		return fail(c, fiber.StatusBadRequest, "file_name is required")
	}
	id, err := h.ingest.Enqueue(c.Context(), req.FileName)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return fail(c, fiber.StatusNotFound, err.Error())
		}
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusAccepted).JSON(ingestResponse{Success: true, JobID: id})
}

func (h *Handler) HandleGetIngest(c *fiber.Ctx) error {
	j, err := h.jobs.GetJobStatus(c.Context(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "not_found")
		}
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(j)
}

func (h *Handler) HandleGetListing(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid id")
	}
	l, err := h.store.GetListing(c.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "listing not found")
		}
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(l)
}
