package http

import (
	"bytes"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samirrijal/mylocation/internal/core/domain"
	"github.com/samirrijal/mylocation/internal/core/overlay"
	"github.com/samirrijal/mylocation/internal/core/usecases"
)

const maxDeviceIDLen = 128

// FixRequest is the body of POST /v1/devices/:id/fixes.
type FixRequest struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  float64    `json:"accuracy"`
	Time      *time.Time `json:"time,omitempty"`
}

// ViewportRequest changes some or all of a viewport.
type ViewportRequest struct {
	Center *domain.GeoPoint `json:"center,omitempty"`
	Zoom   *int             `json:"zoom,omitempty"`
	Width  *int             `json:"width,omitempty"`
	Height *int             `json:"height,omitempty"`
}

// apply overlays the set fields of r onto v.
func (r ViewportRequest) apply(v domain.Viewport) domain.Viewport {
	if r.Center != nil {
		v.Center = *r.Center
	}
	if r.Zoom != nil {
		v.Zoom = *r.Zoom
	}
	if r.Width != nil {
		v.Width = *r.Width
	}
	if r.Height != nil {
		v.Height = *r.Height
	}
	return v
}

// OverlayRequest overrides some of the default overlay options.
type OverlayRequest struct {
	Pane         *string            `json:"pane,omitempty"`
	ClassName    *string            `json:"class_name,omitempty"`
	ShowMarker   *bool              `json:"show_marker,omitempty"`
	ShowAccuracy *bool              `json:"show_accuracy,omitempty"`
	Icon         *domain.MarkerIcon `json:"icon,omitempty"`
}

func (r OverlayRequest) apply(o overlay.Options) overlay.Options {
	if r.Pane != nil {
		o.Pane = domain.Pane(*r.Pane)
	}
	if r.ClassName != nil {
		o.AccuracyClassName = *r.ClassName
	}
	if r.ShowMarker != nil {
		o.ShowMarker = *r.ShowMarker
	}
	if r.ShowAccuracy != nil {
		o.ShowAccuracy = *r.ShowAccuracy
	}
	if r.Icon != nil {
		o.MarkerIcon = *r.Icon
	}
	return o
}

// SessionRequest is the body of POST /v1/sessions.
type SessionRequest struct {
	DeviceID string           `json:"device_id"`
	Viewport *ViewportRequest `json:"viewport,omitempty"`
	Overlay  *OverlayRequest  `json:"overlay,omitempty"`
}

// AccuracyRequest is the body of PUT /v1/sessions/:id/accuracy.
type AccuracyRequest struct {
	Accuracy *float64 `json:"accuracy"`
}

// deviceID reads and checks the :id param of device routes.
func deviceID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	return id, id != "" && len(id) <= maxDeviceIDLen
}

// PostFixHandler records a location fix for a device.
func PostFixHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := deviceID(c)
		if !ok {
			return errBadRequest(c, "invalid device id")
		}

		var req FixRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if req.Latitude == nil || req.Longitude == nil {
			return errBadRequest(c, "latitude and longitude are required")
		}

		fix := &domain.Fix{
			DeviceID: id,
			Coordinates: domain.Coordinates{
				Latitude:  *req.Latitude,
				Longitude: *req.Longitude,
				Accuracy:  req.Accuracy,
			},
			Source: "http",
		}
		if req.Time != nil {
			fix.Time = req.Time.UTC()
		}

		if err := deps.Fixes.Ingest(c.UserContext(), fix); err != nil {
			return errFromService(c, err)
		}

		LoggerFromCtx(c.UserContext()).Debug("fix accepted", "device", id)
		return c.Status(fiber.StatusCreated).JSON(fix)
	}
}

// ListFixesHandler returns the recent fixes of a device, newest first.
func ListFixesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := deviceID(c)
		if !ok {
			return errBadRequest(c, "invalid device id")
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 100
		}

		total, err := deps.Fixes.Count(c.UserContext(), id)
		if err != nil {
			return errFromService(c, err)
		}

		fixes := []domain.Fix{}
		if offset < total {
			fixes, err = deps.Fixes.History(c.UserContext(), id, offset, limit)
			if err != nil {
				return errFromService(c, err)
			}
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: fixes, Pagination: pg})
	}
}

// LatestFixHandler returns the most recent fix of a device.
func LatestFixHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := deviceID(c)
		if !ok {
			return errBadRequest(c, "invalid device id")
		}

		fix, err := deps.Fixes.Latest(c.UserContext(), id)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(fix)
	}
}

// CreateSessionHandler starts an overlay session following a device.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req SessionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if req.DeviceID == "" || len(req.DeviceID) > maxDeviceIDLen {
			return errBadRequest(c, "device_id is required")
		}

		defaults := deps.Sessions.Defaults()
		var opts usecases.SessionOptions
		if req.Viewport != nil {
			v := req.Viewport.apply(defaults.Viewport)
			opts.Viewport = &v
			opts.CenterOnFix = req.Viewport.Center == nil
		}
		if req.Overlay != nil {
			o := req.Overlay.apply(defaults.Overlay)
			opts.Overlay = &o
		}

		sess, err := deps.Sessions.Create(c.UserContext(), req.DeviceID, opts)
		if err != nil {
			return errFromService(c, err)
		}

		status, err := deps.Sessions.Get(c.UserContext(), sess.ID)
		if err != nil {
			return errFromService(c, err)
		}

		c.Location("/v1/sessions/" + sess.ID)
		return c.Status(fiber.StatusCreated).JSON(status)
	}
}

// ListSessionsHandler returns all open sessions.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Sessions.List())
	}
}

// GetSessionHandler returns the status of a session.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status, err := deps.Sessions.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(status)
	}
}

// DeleteSessionHandler closes a session.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.UserContext(), c.Params("id")); err != nil {
			return errFromService(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SetViewportHandler pans, zooms or resizes the map of a session.
func SetViewportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ViewportRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		id := c.Params("id")
		status, err := deps.Sessions.Get(c.UserContext(), id)
		if err != nil {
			return errFromService(c, err)
		}

		frame, err := deps.Sessions.SetViewport(c.UserContext(), id, req.apply(status.Viewport))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(frame)
	}
}

// SetAccuracyHandler changes the accuracy radius of a session's overlay.
// Sessions that have not received a fix answer 409.
func SetAccuracyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req AccuracyRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if req.Accuracy == nil {
			return errBadRequest(c, "accuracy is required")
		}

		frame, err := deps.Sessions.SetAccuracy(c.UserContext(), c.Params("id"), *req.Accuracy)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(frame)
	}
}

// ShowHandler reveals the overlay of a session.
func ShowHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		frame, err := deps.Sessions.Show(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(frame)
	}
}

// HideHandler hides the overlay of a session until it is shown again.
// Incoming fixes keep it hidden.
func HideHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		frame, err := deps.Sessions.Hide(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(frame)
	}
}

// ToggleHandler flips the overlay of a session.
func ToggleHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		frame, err := deps.Sessions.Toggle(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(frame)
	}
}

// FrameHandler returns the current scene of a session.
func FrameHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		frame, err := deps.Sessions.Frame(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(frame)
	}
}

// SnapshotHandler renders the current scene of a session as PNG.
func SnapshotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var buf bytes.Buffer
		if err := deps.Sessions.Snapshot(c.UserContext(), c.Params("id"), &buf); err != nil {
			return errFromService(c, err)
		}

		c.Set("Content-Type", "image/png")
		return c.Send(buf.Bytes())
	}
}
