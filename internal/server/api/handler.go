package api

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"ragchat/internal/domain"
	"ragchat/internal/extract"
	"ragchat/internal/service"
	"ragchat/internal/session"
)

// Assistant is what the HTTP handlers need from the service layer.
type Assistant interface {
	Chat(ctx context.Context, sessionID, query string) (domain.Reply, error)
	Upload(ctx context.Context, filename string, r io.Reader) (service.UploadResult, error)
	Stats() service.Stats
}

// Sessions manages conversation ids.
type Sessions interface {
	Create() string
	Ensure(id string) string
	Delete(id string) error
	Len() int
}

type ChatHandler struct {
	assistant Assistant
	sessions  Sessions
}

func NewChatHandler(assistant Assistant, sessions Sessions) *ChatHandler {
	return &ChatHandler{assistant: assistant, sessions: sessions}
}

// HandleChat runs one turn. A missing or unknown session id starts a new
// conversation whose id is returned in the response.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var params ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := params.Validate(); len(errs) > 0 {
		return NewValidationError(errs)
	}

	id := h.sessions.Ensure(params.SessionID)
	reply, err := h.assistant.Chat(c.UserContext(), id, params.Query)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyQuery):
			return NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUnknownSession):
			// deleted or pruned while the turn was running
			return ErrNotFound(id, "session")
		}
		return ErrUpstream(err)
	}

	sources := reply.Sources
	if sources == nil {
		sources = []string{}
	}
	return c.JSON(ChatResponse{
		Answer:    reply.Answer,
		Sources:   sources,
		Mode:      string(reply.Mode),
		Score:     reply.Score,
		SessionID: id,
	})
}

func (h *ChatHandler) HandleNewSession(c *fiber.Ctx) error {
	return c.Status(fiber.StatusCreated).JSON(SessionResponse{SessionID: h.sessions.Create()})
}

// HandleDeleteSession forgets the history of a conversation.
func (h *ChatHandler) HandleDeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID()
	}
	if err := h.sessions.Delete(id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrNotFound(id, "session")
		}
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) HandleStats(c *fiber.Ctx) error {
	stats := h.assistant.Stats()
	return c.JSON(StatsResponse{Chunks: stats.Chunks, Sources: stats.Sources, Sessions: h.sessions.Len()})
}

type FileHandler struct {
	assistant Assistant
}

func NewFileHandler(assistant Assistant) *FileHandler {
	return &FileHandler{assistant: assistant}
}

// HandleUpload stores and indexes the multipart field "file".
func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return NewError(fiber.StatusBadRequest, "missing file field")
	}
	if strings.TrimSpace(fileHeader.Filename) == "" {
		return NewError(fiber.StatusBadRequest, "missing file name")
	}
	if fileHeader.Size == 0 {
		return NewError(fiber.StatusBadRequest, service.ErrEmptyUpload.Error())
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	res, err := h.assistant.Upload(c.UserContext(), fileHeader.Filename, file)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrBadFilename),
		errors.Is(err, service.ErrEmptyUpload),
		errors.Is(err, service.ErrNoText),
		errors.Is(err, extract.ErrUnsupportedFormat),
		errors.Is(err, extract.ErrInvalidPDF):
		return NewError(fiber.StatusBadRequest, err.Error())
	default:
		return ErrUpstream(err)
	}

	msg := "document indexed"
	if res.Skipped {
		msg = "document already indexed, skipped"
	}
	return c.JSON(UploadResponse{Filename: res.Filename, Chunks: res.Chunks, Skipped: res.Skipped, Message: msg})
}
