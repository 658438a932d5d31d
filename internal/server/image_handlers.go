package server

import (
	"io"

	"toolhub/internal/models"
	"toolhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// readImageUpload extracts the "image" multipart field. On failure it writes
// the response and returns errResponseWritten.
func (s *Server) readImageUpload(c *fiber.Ctx, kind string) (service.StoreImageInput, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Image file is required"))
		return service.StoreImageInput{}, errResponseWritten
	}

	file, err := fileHeader.Open()
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Could not read uploaded file"))
		return service.StoreImageInput{}, errResponseWritten
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Could not read uploaded file"))
		return service.StoreImageInput{}, errResponseWritten
	}

	return service.StoreImageInput{
		Kind:        kind,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

// ServeImage handles GET /media/*
// @Summary Serve a processed image
// @Tags media
// @Produce png
// @Param path path string true "Relative image path"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Router /media/{path} [get]
func (s *Server) ServeImage(c *fiber.Ctx) error {
	absPath, err := s.imageService.ResolveForServing(c.Params("*"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.SendFile(absPath)
}
