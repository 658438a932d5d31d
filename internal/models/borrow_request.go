package models

import "time"

// BorrowRequestStatus defines lifecycle states for borrow requests.
type BorrowRequestStatus string

const (
	// BorrowStatusPending indicates the request is awaiting librarian review.
	BorrowStatusPending BorrowRequestStatus = "pending"
	// BorrowStatusApproved indicates the item is out with the requester.
	BorrowStatusApproved BorrowRequestStatus = "approved"
	// BorrowStatusDenied indicates a librarian declined the request.
	BorrowStatusDenied BorrowRequestStatus = "denied"
	// BorrowStatusReturnedOnTime closes an approved request returned by the
	// due date.
	BorrowStatusReturnedOnTime BorrowRequestStatus = "returned_on_time"
	// BorrowStatusReturnedOverdue closes an approved request returned after
	// the due date.
	BorrowStatusReturnedOverdue BorrowRequestStatus = "returned_overdue"
)

// ActiveBorrowStatuses are the outstanding (non-terminal) request states. At
// most one request per (item, user) may be in one of these at a time.
var ActiveBorrowStatuses = []BorrowRequestStatus{
	BorrowStatusPending,
	BorrowStatusApproved,
}

// Terminal reports whether the status permits no further transitions.
func (s BorrowRequestStatus) Terminal() bool {
	switch s {
	case BorrowStatusDenied, BorrowStatusReturnedOnTime, BorrowStatusReturnedOverdue:
		return true
	}
	return false
}

// BorrowRequest is a patron's ask to borrow an item, tracked through a
// status lifecycle: pending -> approved|denied, approved -> returned_*.
type BorrowRequest struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	ItemID           uint                `gorm:"not null;index" json:"item_id"`
	Item             *Item               `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	UserID           uint                `gorm:"not null;index" json:"user_id"`
	User             *User               `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Status           BorrowRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RequestedAt      time.Time           `gorm:"autoCreateTime;index" json:"requested_at"`
	BorrowStartDate  *time.Time          `json:"borrow_start_date"`
	ReturnDueDate    *time.Time          `json:"return_due_date"`
	Note             string              `gorm:"size:500" json:"note"`
	ReviewedByUserID *uint               `json:"reviewed_by_user_id"`
	ReviewedByUser   *User               `gorm:"foreignKey:ReviewedByUserID;constraint:OnDelete:SET NULL" json:"reviewed_by_user,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (BorrowRequest) TableName() string {
	return "borrow_requests"
}
