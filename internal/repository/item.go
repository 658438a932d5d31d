package repository

import (
	"context"
	"errors"

	"toolhub/internal/cache"
	"toolhub/internal/models"

	"gorm.io/gorm"
)

// ItemFilter narrows item listings.
type ItemFilter struct {
	Statuses []models.ItemStatus
	Search   string
	Limit    int
	Offset   int
}

// ItemRepository defines persistence operations for catalog items.
type ItemRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Item, error)
	GetByUUID(ctx context.Context, uuid string) (*models.Item, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.Item, error)
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter ItemFilter) ([]models.Item, error)
	Count(ctx context.Context, filter ItemFilter) (int64, error)
}

type itemRepository struct {
	db *gorm.DB
}

// NewItemRepository returns a new ItemRepository implementation.
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) GetByID(ctx context.Context, id uint) (*models.Item, error) {
	var item models.Item
	key := cache.ItemKey(id)

	err := cache.Aside(ctx, key, &item, cache.ItemTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).Preload("Borrower").First(&item, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Item", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) GetByUUID(ctx context.Context, uuid string) (*models.Item, error) {
	var item models.Item
	if err := readDB(r.db).WithContext(ctx).Preload("Borrower").Where("uuid = ?", uuid).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Item", uuid)
		}
		return nil, models.NewInternalError(err)
	}
	return &item, nil
}

func (r *itemRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Item, error) {
	var item models.Item
	if err := readDB(r.db).WithContext(ctx).Where("identifier = ?", identifier).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &item, nil
}

func (r *itemRepository) Create(ctx context.Context, item *models.Item) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("Item identifier already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *itemRepository) Update(ctx context.Context, item *models.Item) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("Item identifier already exists")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateItem(ctx, item.ID)
	return nil
}

func (r *itemRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Item{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateItem(ctx, id)
	return nil
}

func applyItemFilter(q *gorm.DB, filter ItemFilter) *gorm.DB {
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("name LIKE ? OR description LIKE ? OR identifier LIKE ?", like, like, like)
	}
	return q
}

func (r *itemRepository) List(ctx context.Context, filter ItemFilter) ([]models.Item, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var items []models.Item
	q := applyItemFilter(readDB(r.db).WithContext(ctx).Model(&models.Item{}), filter)
	if err := q.Order("name ASC").Limit(limit).Offset(filter.Offset).Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *itemRepository) Count(ctx context.Context, filter ItemFilter) (int64, error) {
	var count int64
	q := applyItemFilter(readDB(r.db).WithContext(ctx).Model(&models.Item{}), filter)
	if err := q.Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
