package server

import (
	"strings"

	"toolhub/internal/models"
	"toolhub/internal/repository"
	"toolhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetItems handles GET /api/items
// @Summary Browse the catalog
// @Description Librarians see every item and can filter by status; patrons and anonymous viewers see available items only.
// @Tags items
// @Produce json
// @Param status query string false "Comma-separated status filter (librarian only)"
// @Param search query string false "Name or identifier search"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} service.ItemView
// @Router /items [get]
func (s *Server) GetItems(c *fiber.Ctx) error {
	viewer, err := s.optionalViewer(c)
	if err != nil {
		return nil
	}

	page := parsePagination(c, 20)
	filter := repository.ItemFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Limit:  page.Limit,
		Offset: page.Offset,
	}

	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := models.ItemStatus(strings.TrimSpace(part))
			if !status.Valid() {
				return models.RespondWithError(c, fiber.StatusBadRequest,
					models.NewValidationError("Unknown item status: "+string(status)))
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	views, err := s.catalogService.ListItems(c.Context(), viewer, filter)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(views)
}

// GetItem handles GET /api/items/:id
// @Summary Get a catalog item
// @Description Returns the item with a viewer-dependent display status.
// @Tags items
// @Produce json
// @Param id path int true "Item ID"
// @Success 200 {object} service.ItemView
// @Failure 404 {object} models.ErrorResponse
// @Router /items/{id} [get]
func (s *Server) GetItem(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	viewer, err := s.optionalViewer(c)
	if err != nil {
		return nil
	}

	view, err := s.catalogService.GetItem(c.Context(), viewer, id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(view)
}

// CreateItem handles POST /api/items (librarian only)
// @Summary Create a catalog item
// @Tags items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{name=string,identifier=string,description=string,location=string} true "Item fields"
// @Success 201 {object} models.Item
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /items [post]
func (s *Server) CreateItem(c *fiber.Ctx) error {
	var req struct {
		Name        string              `json:"name"`
		Identifier  string              `json:"identifier"`
		Description string              `json:"description"`
		Location    models.ItemLocation `json:"location"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	item, err := s.catalogService.CreateItem(c.Context(), service.ItemInput{
		Name:        req.Name,
		Identifier:  req.Identifier,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(item)
}

// UpdateItem handles PUT /api/items/:id (librarian only)
// @Summary Update a catalog item
// @Tags items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param request body object{name=string,identifier=string,description=string,location=string} true "Item fields"
// @Success 200 {object} models.Item
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /items/{id} [put]
func (s *Server) UpdateItem(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Name        string              `json:"name"`
		Identifier  string              `json:"identifier"`
		Description string              `json:"description"`
		Location    models.ItemLocation `json:"location"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	item, err := s.catalogService.UpdateItem(c.Context(), id, service.ItemInput{
		Name:        req.Name,
		Identifier:  req.Identifier,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(item)
}

// SetItemStatus handles POST /api/items/:id/status (librarian only)
// @Summary Override an item's status
// @Description Moves an item to a manual status such as being_repaired, lost, or archived. Borrow-driven statuses cannot be set here.
// @Tags items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param request body object{status=string} true "Target status"
// @Success 200 {object} models.Item
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /items/{id}/status [post]
func (s *Server) SetItemStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Status models.ItemStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	item, err := s.catalogService.SetItemStatus(c.Context(), id, req.Status)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(item)
}

// DeleteItem handles DELETE /api/items/:id (librarian only)
// @Summary Delete a catalog item
// @Description Refused while the item is out with a borrower.
// @Tags items
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /items/{id} [delete]
func (s *Server) DeleteItem(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.catalogService.DeleteItem(c.Context(), id); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Item deleted"})
}

// UploadItemImage handles POST /api/items/:id/image (librarian only)
// @Summary Upload an item image
// @Tags items
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param image formData file true "Item image"
// @Success 200 {object} models.Item
// @Failure 400 {object} models.ErrorResponse
// @Router /items/{id}/image [post]
func (s *Server) UploadItemImage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	item, err := s.itemRepo.GetByID(c.Context(), id)
	if err != nil {
		return respondServiceError(c, err)
	}

	in, err := s.readImageUpload(c, service.ImageKindItem)
	if err != nil {
		return nil
	}

	path, err := s.imageService.Store(in)
	if err != nil {
		return respondServiceError(c, err)
	}

	oldPath := item.ImagePath
	item.ImagePath = path
	if err := s.itemRepo.Update(c.Context(), item); err != nil {
		// Nothing references the new file yet.
		s.imageService.Remove(path)
		return respondServiceError(c, err)
	}
	// The old files go only after the new path is on record.
	if oldPath != "" && oldPath != path {
		s.imageService.Remove(oldPath)
	}

	return c.JSON(item)
}
