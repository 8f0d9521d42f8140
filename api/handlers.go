package api

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/banter/bot"
	"github.com/papercomputeco/banter/pkg/llm"
	"github.com/papercomputeco/banter/pkg/persona"
	"github.com/papercomputeco/banter/pkg/preference"
	"github.com/papercomputeco/banter/pkg/storage"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegisterRequest registers a user.
type RegisterRequest struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
}

// ProfileResponse is a registered user.
type ProfileResponse struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	Persona     string `json:"persona"`
}

// PersonaBody reads and writes a persona by name ("STRICT", "casual", ...).
type PersonaBody struct {
	Persona string `json:"persona"`
}

// MessageRequest is one user message.
type MessageRequest struct {
	Text string `json:"text"`
}

// MessageResponse is the assistant's reply.
type MessageResponse struct {
	Reply string `json:"reply"`
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}

// userID returns the unescaped :id parameter. Matrix ids contain ':' and '@',
// which clients usually percent-encode.
func userID(c *fiber.Ctx) (string, error) {
	id, err := url.PathUnescape(c.Params("id"))
	if err != nil || strings.TrimSpace(id) == "" {
		return "", errors.New("user id parameter required")
	}
	return id, nil
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleRegister creates the user's profile; registering again returns the
// existing profile.
func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.ExternalID) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "external_id is required")
	}

	profile, err := s.dialogue.Register(c.UserContext(), req.ExternalID, req.DisplayName)
	if err != nil {
		s.logger.Error("failed to register user", "user_id", req.ExternalID, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to register user")
	}

	return c.JSON(ProfileResponse{
		ExternalID:  profile.ExternalID,
		DisplayName: profile.DisplayName,
		Persona:     profile.Persona.String(),
	})
}

// handleGetPersona returns the user's persona. Unknown users get the default.
func (s *Server) handleGetPersona(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(PersonaBody{Persona: s.dialogue.Persona(c.UserContext(), id).String()})
}

// handleSetPersona changes the user's persona.
func (s *Server) handleSetPersona(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	var body PersonaBody
	if err := c.BodyParser(&body); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	p, err := persona.Parse(body.Persona)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	err = s.dialogue.SetPersona(c.UserContext(), id, p)
	switch {
	case err == nil:
		return c.SendStatus(fiber.StatusNoContent)
	case storage.IsNotFound(err):
		return errorJSON(c, fiber.StatusNotFound, "user not registered")
	case errors.Is(err, preference.ErrCacheNotUpdated):
		return errorJSON(c, fiber.StatusBadGateway, "persona saved but cache not updated")
	default:
		s.logger.Error("failed to set persona", "user_id", id, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to set persona")
	}
}

// handleMessage answers one user message.
func (s *Server) handleMessage(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "text is required")
	}

	reply, err := s.dialogue.HandleMessage(c.UserContext(), id, req.Text)
	if err != nil {
		s.logger.Error("failed to answer message", "user_id", id, "error", err)
		return errorJSON(c, fiber.StatusBadGateway, bot.Apology)
	}

	return c.JSON(MessageResponse{Reply: reply})
}

// handleGetTranscript returns the user's recent turns, oldest first.
func (s *Server) handleGetTranscript(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	turns, err := s.dialogue.Transcript(c.UserContext(), id)
	if err != nil {
		s.logger.Error("failed to read transcript", "user_id", id, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to read transcript")
	}
	if turns == nil {
		turns = []llm.Turn{}
	}

	return c.JSON(turns)
}

// handleResetTranscript forgets the user's transcript.
func (s *Server) handleResetTranscript(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	if _, err := s.dialogue.Reset(c.UserContext(), id); err != nil {
		s.logger.Error("failed to reset transcript", "user_id", id, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to reset transcript")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
