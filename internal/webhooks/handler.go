package webhooks

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"hookd/internal/constants"
	"hookd/internal/logger"
	"hookd/pkg/errors"
)

const userIDKey = "user_id"

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

type Handler struct {
	BaseHandler
	resolver TokenResolver
}

func NewHandler(service Service, resolver TokenResolver, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
		resolver: resolver,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	hooks := router.Group("/api/v1/hooks", h.Authenticate)
	{
		hooks.POST("/receivers/:receiver_id/events/", h.CreateEvent)
		hooks.GET("/receivers/:receiver_id/events/:event_id", h.GetEvent)
		hooks.HEAD("/receivers/:receiver_id/events/:event_id", h.GetEvent)
		hooks.PUT("/receivers/:receiver_id/events/:event_id", h.ReprocessEvent)
		hooks.DELETE("/receivers/:receiver_id/events/:event_id", h.DeleteEvent)
	}
}

// Authenticate resolves the request's access token into a user id.
// Requests without a resolvable token are rejected before any receiver
// logic runs.
func (h *Handler) Authenticate(c *gin.Context) {
	token := RequestToken(c.Request)
	if token == "" {
		h.HandleError(c, errors.ErrUnauthorized.WithDetail("reason", "missing access token"))
		c.Abort()
		return
	}

	userID, err := h.resolver.Resolve(c.Request.Context(), token)
	if err != nil {
		h.HandleError(c, err)
		c.Abort()
		return
	}

	c.Set(userIDKey, userID)
	c.Next()
}

// CreateEvent godoc
// @Summary      Receive a webhook event
// @Description  Accept a webhook delivery for the receiver, persist it and dispatch processing
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        receiver_id  path      string                  true  "Receiver ID"
// @Param        payload      body      map[string]interface{}  true  "Webhook payload"
// @Success      202          {object}  map[string]interface{}
// @Failure      404          {object}  errors.ErrorResponse
// @Failure      415          {object}  errors.ErrorResponse
// @Failure      500          {object}  errors.ErrorResponse
// @Router       /hooks/receivers/{receiver_id}/events/ [post]
func (h *Handler) CreateEvent(c *gin.Context) {
	receiverID := c.Param("receiver_id")
	userID := c.GetString(userIDKey)

	event, err := h.Service.Create(c.Request.Context(), receiverID, userID, c.Request)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	event = h.Service.Process(c.Request.Context(), event)

	h.setHubHeaders(c, event)
	c.JSON(event.ResponseCode, event.Response)
}

// GetEvent godoc
// @Summary      Get event status
// @Description  Report the live or stored processing status of an event
// @Tags         events
// @Produce      json
// @Param        receiver_id  path      string  true  "Receiver ID"
// @Param        event_id     path      string  true  "Event ID"
// @Success      202          {object}  map[string]interface{}
// @Failure      401          {object}  errors.ErrorResponse
// @Failure      404          {object}  errors.ErrorResponse
// @Failure      410          {object}  errors.ErrorResponse
// @Router       /hooks/receivers/{receiver_id}/events/{event_id} [get]
func (h *Handler) GetEvent(c *gin.Context) {
	event, ok := h.fetchEvent(c)
	if !ok {
		return
	}

	code, message := h.Service.Status(c.Request.Context(), event)
	h.setHubHeaders(c, event)
	c.JSON(code, gin.H{"status": code, "message": message})
}

// ReprocessEvent godoc
// @Summary      Reprocess an event
// @Description  Run the receiver again for a stored event
// @Tags         events
// @Produce      json
// @Param        receiver_id  path      string  true  "Receiver ID"
// @Param        event_id     path      string  true  "Event ID"
// @Success      202          {object}  map[string]interface{}
// @Failure      401          {object}  errors.ErrorResponse
// @Failure      403          {object}  errors.ErrorResponse
// @Failure      410          {object}  errors.ErrorResponse
// @Router       /hooks/receivers/{receiver_id}/events/{event_id} [put]
func (h *Handler) ReprocessEvent(c *gin.Context) {
	event, ok := h.fetchEvent(c)
	if !ok {
		return
	}

	event, err := h.Service.Reprocess(c.Request.Context(), event, c.GetString(userIDKey))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.setHubHeaders(c, event)
	c.JSON(event.ResponseCode, event.Response)
}

// DeleteEvent godoc
// @Summary      Delete an event
// @Description  Logically delete an event; later reads answer 410
// @Tags         events
// @Produce      json
// @Param        receiver_id  path      string  true  "Receiver ID"
// @Param        event_id     path      string  true  "Event ID"
// @Success      202          {object}  map[string]interface{}
// @Failure      401          {object}  errors.ErrorResponse
// @Failure      403          {object}  errors.ErrorResponse
// @Router       /hooks/receivers/{receiver_id}/events/{event_id} [delete]
func (h *Handler) DeleteEvent(c *gin.Context) {
	event, ok := h.fetchEvent(c)
	if !ok {
		return
	}

	if err := h.Service.Delete(c.Request.Context(), event, c.GetString(userIDKey)); err != nil {
		h.HandleError(c, err)
		return
	}

	h.setHubHeaders(c, event)
	c.JSON(http.StatusAccepted, gin.H{"status": http.StatusAccepted, "message": "Event deleted."})
}

func (h *Handler) fetchEvent(c *gin.Context) (*Event, bool) {
	event, err := h.Service.Get(
		c.Request.Context(),
		c.Param("receiver_id"),
		c.Param("event_id"),
		c.GetString(userIDKey),
	)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	return event, true
}

// setHubHeaders attaches the delivery headers external services use to
// correlate replies with their hooks.
func (h *Handler) setHubHeaders(c *gin.Context, event *Event) {
	c.Header(constants.HeaderHubEvent, event.ReceiverID)
	c.Header(constants.HeaderHubDelivery, event.ID.String())
	if message := event.Message(); message != "" {
		c.Header(constants.HeaderHubInfo, message)
	}
	c.Header("Link", fmt.Sprintf("<%s/api/v1/hooks/receivers/%s/events/%s>; rel=\"self\"",
		requestBaseURL(c.Request), event.ReceiverID, event.ID.String()))
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// MethodNotAllowed is installed as the router's NoMethod handler so
// unsupported verbs on known paths answer a JSON 405.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{
		"status":      http.StatusMethodNotAllowed,
		"description": "Method not allowed",
	})
}
