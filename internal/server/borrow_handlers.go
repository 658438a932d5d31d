package server

import (
	"context"
	"log"
	"time"

	"toolhub/internal/models"
	"toolhub/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// borrowEventPayload builds the notification body for a borrow request event.
// The item name is resolved best-effort so a failed lookup never blocks the
// response.
func (s *Server) borrowEventPayload(ctx context.Context, request *models.BorrowRequest) map[string]any {
	payload := map[string]any{
		"request_id": request.ID,
		"item_id":    request.ItemID,
		"user_id":    request.UserID,
		"status":     request.Status,
	}
	if request.Item != nil {
		payload["item_name"] = request.Item.Name
	} else if item, err := s.itemRepo.GetByID(ctx, request.ItemID); err == nil {
		payload["item_name"] = item.Name
	}
	if request.ReturnDueDate != nil {
		payload["return_due_date"] = request.ReturnDueDate
	}
	return payload
}

// RequestItem handles POST /api/items/:id/request
// @Summary Request to borrow an item
// @Description Creates a pending borrow request. At most one outstanding request per item and user.
// @Tags borrow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param request body object{note=string} false "Optional note to the librarian"
// @Success 201 {object} models.BorrowRequest
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /items/{id}/request [post]
func (s *Server) RequestItem(c *fiber.Ctx) error {
	itemID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := c.Locals("userID").(uint)

	var req struct {
		Note string `json:"note"`
	}
	// Body is optional; ignore parse failures on an empty body.
	_ = c.BodyParser(&req)

	request, err := s.borrowService.RequestItem(c.Context(), userID, itemID, req.Note)
	if err != nil {
		return respondServiceError(c, err)
	}

	// New pending requests land on the shared librarian channel so any
	// librarian can pick them up.
	if s.notifier != nil {
		if perr := s.notifier.PublishLibrarians(c.Context(),
			notifications.EventBorrowRequested,
			s.borrowEventPayload(c.Context(), request)); perr != nil {
			log.Printf("publish borrow requested event: %v", perr)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(request)
}

// CancelBorrowRequest handles DELETE /api/borrow-requests/:id
// @Summary Cancel own pending borrow request
// @Tags borrow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /borrow-requests/{id} [delete]
func (s *Server) CancelBorrowRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := c.Locals("userID").(uint)

	if err := s.borrowService.CancelRequest(c.Context(), userID, requestID); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Request cancelled"})
}

// GetMyBorrowRequests handles GET /api/borrow-requests/me
// @Summary List own borrow requests
// @Tags borrow
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.BorrowRequest
// @Router /borrow-requests/me [get]
func (s *Server) GetMyBorrowRequests(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)
	page := parsePagination(c, 20)

	requests, err := s.borrowService.ListMyRequests(c.Context(), userID, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(requests)
}

// GetBorrowRequest handles GET /api/borrow-requests/:id
// @Summary Get a borrow request
// @Description Visible to the requester and librarians.
// @Tags borrow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.BorrowRequest
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /borrow-requests/{id} [get]
func (s *Server) GetBorrowRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	viewer, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	request, err := s.borrowService.GetRequest(c.Context(), viewer, requestID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(request)
}

// GetBorrowQueue handles GET /api/borrow-requests/queue (librarian only)
// @Summary List borrow requests by status
// @Description Defaults to the pending review queue, oldest first.
// @Tags borrow
// @Produce json
// @Security BearerAuth
// @Param status query string false "Request status" default(pending)
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.BorrowRequest
// @Failure 400 {object} models.ErrorResponse
// @Router /borrow-requests/queue [get]
func (s *Server) GetBorrowQueue(c *fiber.Ctx) error {
	page := parsePagination(c, 50)

	status := models.BorrowRequestStatus(c.Query("status", string(models.BorrowStatusPending)))
	switch status {
	case models.BorrowStatusPending, models.BorrowStatusApproved, models.BorrowStatusDenied,
		models.BorrowStatusReturnedOnTime, models.BorrowStatusReturnedOverdue:
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown request status: "+string(status)))
	}

	requests, err := s.borrowService.ListByStatus(c.Context(), status, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(requests)
}

// parseDueDate accepts RFC 3339 timestamps or plain dates.
func parseDueDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, models.NewValidationError("Invalid due date format, expected RFC 3339 or YYYY-MM-DD")
	}
	return &t, nil
}

// ApproveBorrowRequest handles POST /api/borrow-requests/:id/approve (librarian only)
// @Summary Approve a pending borrow request
// @Description Marks the item borrowed and stamps the loan window. Without a due date the configured default loan period applies.
// @Tags borrow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Param request body object{due_date=string} false "Optional due date, must be in the future"
// @Success 200 {object} models.BorrowRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /borrow-requests/{id}/approve [post]
func (s *Server) ApproveBorrowRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	librarianID, _ := c.Locals("userID").(uint)

	var req struct {
		DueDate string `json:"due_date"`
	}
	_ = c.BodyParser(&req)

	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return respondServiceError(c, err)
	}

	request, err := s.borrowService.ApproveRequest(c.Context(), librarianID, requestID, dueDate)
	if err != nil {
		return respondServiceError(c, err)
	}

	if s.notifier != nil {
		if perr := s.notifier.PublishUser(c.Context(), request.UserID,
			notifications.EventBorrowApproved,
			s.borrowEventPayload(c.Context(), request)); perr != nil {
			log.Printf("publish borrow approved event: %v", perr)
		}
	}

	return c.JSON(request)
}

// DenyBorrowRequest handles POST /api/borrow-requests/:id/deny (librarian only)
// @Summary Deny a pending borrow request
// @Tags borrow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.BorrowRequest
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /borrow-requests/{id}/deny [post]
func (s *Server) DenyBorrowRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	librarianID, _ := c.Locals("userID").(uint)

	request, err := s.borrowService.DenyRequest(c.Context(), librarianID, requestID)
	if err != nil {
		return respondServiceError(c, err)
	}

	if s.notifier != nil {
		if perr := s.notifier.PublishUser(c.Context(), request.UserID,
			notifications.EventBorrowDenied,
			s.borrowEventPayload(c.Context(), request)); perr != nil {
			log.Printf("publish borrow denied event: %v", perr)
		}
	}

	return c.JSON(request)
}

// ReturnBorrowedItem handles POST /api/borrow-requests/:id/return
// @Summary Record the return of a borrowed item
// @Description Closes the approved request as returned_on_time or returned_overdue and frees the item. Callable by the borrower on record or a librarian.
// @Tags borrow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.BorrowRequest
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /borrow-requests/{id}/return [post]
func (s *Server) ReturnBorrowedItem(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	caller, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	request, err := s.borrowService.ReturnItem(c.Context(), caller, requestID)
	if err != nil {
		return respondServiceError(c, err)
	}

	if s.notifier != nil {
		if perr := s.notifier.PublishUser(c.Context(), request.UserID,
			notifications.EventBorrowReturned,
			s.borrowEventPayload(c.Context(), request)); perr != nil {
			log.Printf("publish borrow returned event: %v", perr)
		}
	}

	return c.JSON(request)
}

// GetItemBorrowHistory handles GET /api/items/:id/history (librarian only)
// @Summary List an item's borrow history
// @Tags borrow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.BorrowRequest
// @Router /items/{id}/history [get]
func (s *Server) GetItemBorrowHistory(c *fiber.Ctx) error {
	itemID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)

	history, err := s.borrowService.ItemHistory(c.Context(), itemID, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(history)
}
