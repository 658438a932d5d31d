package server

import (
	"toolhub/internal/featureflags"
	"toolhub/internal/models"
	"toolhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// reviewsEnabled checks the item_reviews feature flag for the given user.
func (s *Server) reviewsEnabled(userID uint) bool {
	return s.featureFlags.Enabled(featureflags.FlagItemReviews, userID)
}

// CreateItemReview handles POST /api/items/:id/reviews
// @Summary Review an item
// @Description Only users who completed a borrow of the item may review it, once per item.
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param request body object{rating=int,comment=string} true "Rating (1-5) and optional comment"
// @Success 201 {object} models.ItemReview
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /items/{id}/reviews [post]
func (s *Server) CreateItemReview(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)
	if !s.reviewsEnabled(userID) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Route", c.Path()))
	}

	itemID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	review, err := s.reviewService.Create(c.Context(), service.CreateReviewInput{
		ItemID:  itemID,
		UserID:  userID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(review)
}

// GetItemReviews handles GET /api/items/:id/reviews
// @Summary List reviews for an item
// @Tags reviews
// @Produce json
// @Param id path int true "Item ID"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.ItemReview
// @Router /items/{id}/reviews [get]
func (s *Server) GetItemReviews(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)
	if !s.reviewsEnabled(userID) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Route", c.Path()))
	}

	itemID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)

	reviews, err := s.reviewService.ListForItem(c.Context(), itemID, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(reviews)
}

// DeleteItemReview handles DELETE /api/reviews/:id
// @Summary Delete a review
// @Description The author or a librarian may delete a review.
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Param id path int true "Review ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /reviews/{id} [delete]
func (s *Server) DeleteItemReview(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)
	if !s.reviewsEnabled(userID) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Route", c.Path()))
	}

	reviewID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	actor, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	if err := s.reviewService.Delete(c.Context(), actor, reviewID); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Review deleted"})
}
