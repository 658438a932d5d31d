package server

import (
	"toolhub/internal/models"
	"toolhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

type collectionRequest struct {
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Visibility     models.Visibility `json:"visibility"`
	ItemIDs        []uint            `json:"item_ids"`
	AllowedUserIDs []uint            `json:"allowed_user_ids"`
}

func (r collectionRequest) toInput() service.CollectionInput {
	return service.CollectionInput{
		Title:          r.Title,
		Description:    r.Description,
		Visibility:     r.Visibility,
		ItemIDs:        r.ItemIDs,
		AllowedUserIDs: r.AllowedUserIDs,
	}
}

// GetCollections handles GET /api/collections
// @Summary List collections visible to the viewer
// @Description Anonymous viewers see public collections; authenticated users additionally see private collections they created or were granted access to; librarians see everything.
// @Tags collections
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Collection
// @Router /collections [get]
func (s *Server) GetCollections(c *fiber.Ctx) error {
	viewer, err := s.optionalViewer(c)
	if err != nil {
		return nil
	}

	page := parsePagination(c, 20)
	collections, err := s.collectionService.List(c.Context(), viewer, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(collections)
}

// GetCollectionBySlug handles GET /api/collections/:slug
// @Summary Get a collection by slug
// @Description Private collections the viewer cannot access return 404.
// @Tags collections
// @Produce json
// @Param slug path string true "Collection slug"
// @Success 200 {object} models.Collection
// @Failure 404 {object} models.ErrorResponse
// @Router /collections/{slug} [get]
func (s *Server) GetCollectionBySlug(c *fiber.Ctx) error {
	viewer, err := s.optionalViewer(c)
	if err != nil {
		return nil
	}

	collection, err := s.collectionService.Get(c.Context(), viewer, c.Params("slug"))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(collection)
}

// CreateCollection handles POST /api/collections
// @Summary Create a collection
// @Description Patrons may create public collections only; librarians may also create private ones.
// @Tags collections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{title=string,description=string,visibility=string,item_ids=[]int,allowed_user_ids=[]int} true "Collection fields"
// @Success 201 {object} models.Collection
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /collections [post]
func (s *Server) CreateCollection(c *fiber.Ctx) error {
	actor, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	var req collectionRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	collection, err := s.collectionService.Create(c.Context(), actor, req.toInput())
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(collection)
}

// UpdateCollection handles PUT /api/collections/:slug
// @Summary Update a collection
// @Tags collections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Collection slug"
// @Param request body object{title=string,description=string,visibility=string,item_ids=[]int,allowed_user_ids=[]int} true "Collection fields"
// @Success 200 {object} models.Collection
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /collections/{slug} [put]
func (s *Server) UpdateCollection(c *fiber.Ctx) error {
	actor, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	var req collectionRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	collection, err := s.collectionService.Update(c.Context(), actor, c.Params("slug"), req.toInput())
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(collection)
}

// DeleteCollection handles DELETE /api/collections/:slug
// @Summary Delete a collection
// @Tags collections
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Collection slug"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /collections/{slug} [delete]
func (s *Server) DeleteCollection(c *fiber.Ctx) error {
	actor, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	if err := s.collectionService.Delete(c.Context(), actor, c.Params("slug")); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Collection deleted"})
}

// UploadCollectionImage handles POST /api/collections/:slug/image
// @Summary Upload a collection cover image
// @Tags collections
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Collection slug"
// @Param image formData file true "Cover image"
// @Success 200 {object} models.Collection
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /collections/{slug}/image [post]
func (s *Server) UploadCollectionImage(c *fiber.Ctx) error {
	actor, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	collection, err := s.collectionService.Get(c.Context(), actor, c.Params("slug"))
	if err != nil {
		return respondServiceError(c, err)
	}

	// Only the creator or a librarian may change the cover.
	isCreator := collection.CreatorID != nil && *collection.CreatorID == actor.ID
	if !isCreator && !actor.IsLibrarian() {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewPermissionError("Only the creator or a librarian can modify this collection"))
	}

	in, err := s.readImageUpload(c, service.ImageKindCollection)
	if err != nil {
		return nil
	}

	path, err := s.imageService.Store(in)
	if err != nil {
		return respondServiceError(c, err)
	}

	oldPath := collection.ImagePath
	collection.ImagePath = path
	if err := s.collectionRepo.Update(c.Context(), collection); err != nil {
		s.imageService.Remove(path)
		return respondServiceError(c, err)
	}
	// The old cover goes only after the new path is on record.
	if oldPath != "" && oldPath != path {
		s.imageService.Remove(oldPath)
	}

	return c.JSON(collection)
}
