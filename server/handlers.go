package server

import (
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fuhaigao/inference-server/pkg/sse"
)

// GenerateRequest is the body of both generation endpoints.
type GenerateRequest struct {
	Prompt    string `json:"prompt"`
	MaxLength int    `json:"max_length"`
}

// GenerateResponse is the body of /generate_text.
type GenerateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// SimilarRequest is the body of /find_similar.
type SimilarRequest struct {
	Text       string `json:"text"`
	NumResults int    `json:"num_results"`
}

// SimilarResponse is the body of /find_similar.
type SimilarResponse struct {
	TopResults []Match `json:"top_results"`
}

// ErrorResponse is returned with every 4xx and 5xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleGenerateStream writes one frame per token followed by the sentinel
// frame, using chunked transfer encoding.
func (s *Server) handleGenerateStream(c *fiber.Ctx) error {
	req, err := parseGenerateRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	s.logger.Debug("streaming generation",
		"prompt_len", len(req.Prompt),
		"max_length", req.MaxLength,
	)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// io.Pipe gives per-write backpressure: fasthttp flushes every chunk it
	// reads from pr to the socket.
	pr, pw := io.Pipe()
	go s.streamTokens(req, pw)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

func (s *Server) streamTokens(req GenerateRequest, pw *io.PipeWriter) {
	tokens := 0
	err := s.generator.Generate(s.ctx, req.Prompt, req.MaxLength, func(token string) error {
		tokens++
		_, err := io.WriteString(pw, sse.Format(token))
		return err
	})
	if err == nil {
		_, err = io.WriteString(pw, sse.End)
	}

	if err != nil {
		s.logger.Warn("stream aborted", "tokens", tokens, "error", err)
		_ = pw.CloseWithError(err)
		return
	}

	s.logger.Debug("stream complete", "tokens", tokens)
	_ = pw.Close()
}

func (s *Server) handleGenerate(c *fiber.Ctx) error {
	req, err := parseGenerateRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	text, err := generateAll(c.UserContext(), s.generator, req.Prompt, req.MaxLength)
	if err != nil {
		s.logger.Error("generation failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to generate text"})
	}

	return c.JSON(GenerateResponse{GeneratedText: text})
}

func (s *Server) handleFindSimilar(c *fiber.Ctx) error {
	var req SimilarRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is empty"})
	}
	if req.NumResults <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "num_results must be positive"})
	}

	matches, err := s.index.Similar(c.UserContext(), req.Text, req.NumResults)
	if err != nil {
		s.logger.Error("similarity search failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to find similar items"})
	}

	return c.JSON(SimilarResponse{TopResults: matches})
}

func parseGenerateRequest(c *fiber.Ctx) (GenerateRequest, error) {
	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return req, errors.New("invalid request body")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return req, errors.New("prompt is empty")
	}
	if req.MaxLength <= 0 {
		return req, errors.New("max_length must be positive")
	}
	return req, nil
}
