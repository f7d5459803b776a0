package research

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"boatresearch/internal/core/listing"
	"boatresearch/internal/logger"

	"github.com/gofiber/fiber/v2"
)

const defaultKeepAlive = 15 * time.Second

var errSlowListener = errors.New("event stream is not keeping up")

type Handler struct {
	log       *logger.Logger
	registry  *Registry
	store     Store
	keepAlive time.Duration
}

func NewHandler(registry *Registry, store Store) *Handler {
	return &Handler{log: logger.New("ResearchHandler"), registry: registry, store: store, keepAlive: defaultKeepAlive}
}

type okResponse struct {
	OK bool `json:"ok"`
}

type specsSelection struct {
	Slug *string `json:"slug"`
}

type urlSelection struct {
	URLs []string `json:"urls"`
}

type resultResponse struct {
	Listing *ListingResearch `json:"listing"`
	Model   *ModelResearch   `json:"model"`
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": msg})
}

func listingID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil
}

func (h *Handler) HandleStart(c *fiber.Ctx) error {
	id, ok := listingID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "invalid id")
	}
	snap, err := h.registry.Start(c.Context(), id)
	switch {
	case err == nil:
		return c.JSON(snap)
	case errors.Is(err, ErrEntityNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyRunning):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrTooManyConcurrent):
		return fail(c, fiber.StatusTooManyRequests, err.Error())
	case errors.Is(err, errShutdown):
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	default:
		h.log.LogErrorf("start research for listing %d: %v", id, err)
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	id, ok := listingID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "invalid id")
	}
	return c.JSON(h.registry.Status(id))
}

// HandleResult returns the persisted research of a listing together with the
// latest model research for its manufacturer and class.
func (h *Handler) HandleResult(c *fiber.Ctx) error {
	id, ok := listingID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "invalid id")
	}
	rec, err := h.store.GetResearchRecord(c.Context(), id)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	resp := resultResponse{Listing: rec}
	if rec != nil {
		l, err := h.store.GetListing(c.Context(), id)
		if err != nil && !errors.Is(err, listing.ErrNotFound) {
			return fail(c, fiber.StatusInternalServerError, err.Error())
		}
		if l != nil && listing.Str(l.Manufacturer) != "" && listing.Str(l.BoatClass) != "" {
			resp.Model, err = h.store.FindLatestModelResearch(c.Context(), *l.Manufacturer, *l.BoatClass)
			if err != nil {
				return fail(c, fiber.StatusInternalServerError, err.Error())
			}
		}
	}
	return c.JSON(resp)
}

func (h *Handler) HandleSelectSpecs(c *fiber.Ctx) error {
	id, ok := listingID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "invalid id")
	}
	var req specsSelection
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	return h.selected(c, h.registry.SelectSpecs(id, req.Slug))
}

func (h *Handler) HandleSelectReviews(c *fiber.Ctx) error {
	id, ok := listingID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "invalid id")
	}
	var req urlSelection
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	return h.selected(c, h.registry.SelectReviews(id, req.URLs))
}

func (h *Handler) HandleSelectForums(c *fiber.Ctx) error {
	id, ok := listingID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "invalid id")
	}
	var req urlSelection
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	return h.selected(c, h.registry.SelectForums(id, req.URLs))
}

func (h *Handler) selected(c *fiber.Ctx, ok bool) error {
	if !ok {
		return fail(c, fiber.StatusNotFound, "no pending selection for this listing")
	}
	return c.JSON(okResponse{OK: true})
}

// HandleEvents streams snapshots as server-sent events: the current one
// first, then one per transition. The stream ends after a terminal snapshot.
// A client going away only unsubscribes; the pipeline keeps running.
func (h *Handler) HandleEvents(c *fiber.Ctx) error {
	id, ok := listingID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "invalid id")
	}

	events := make(chan Snapshot, 32)
	dropped := make(chan struct{})
	var dropOnce sync.Once
	unsubscribe := h.registry.Subscribe(id, func(s Snapshot) error {
		select {
		case events <- s:
			return nil
		default:
			dropOnce.Do(func() { close(dropped) })
			return errSlowListener
		}
	})
	current := h.registry.Status(id)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	keepAlive := h.keepAlive
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		if err := writeEvent(w, current); err != nil || current.Status.Terminal() {
			return
		}
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		for {
			select {
			case s := <-events:
				if err := writeEvent(w, s); err != nil || s.Status.Terminal() {
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-dropped:
				return
			}
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, s Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if s.RunID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", s.RunID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
		return err
	}
	return w.Flush()
}
