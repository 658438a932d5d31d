package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix          = "user:%d"
	ItemKeyPrefix          = "item:%d"
	CollectionKeyPrefix    = "collection:%s"
	PublicCollectionsKey   = "collections:public"
	ItemReviewsKeyPrefix   = "item:%d:reviews"
	BorrowHistoryKeyPrefix = "item:%d:history"
)

const (
	UserTTL             = 5 * time.Minute
	ItemTTL             = 5 * time.Minute
	CollectionTTL       = 10 * time.Minute
	PublicCollectionTTL = 2 * time.Minute
	ItemReviewsTTL      = 10 * time.Minute
	BorrowHistoryTTL    = 2 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func ItemKey(itemID uint) string {
	return fmt.Sprintf(ItemKeyPrefix, itemID)
}

func CollectionKey(slug string) string {
	return fmt.Sprintf(CollectionKeyPrefix, slug)
}

func ItemReviewsKey(itemID uint) string {
	return fmt.Sprintf(ItemReviewsKeyPrefix, itemID)
}

func BorrowHistoryKey(itemID uint) string {
	return fmt.Sprintf(BorrowHistoryKeyPrefix, itemID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateItem(ctx context.Context, itemID uint) {
	Invalidate(ctx, ItemKey(itemID))
	Invalidate(ctx, BorrowHistoryKey(itemID))
}

func InvalidateItemReviews(ctx context.Context, itemID uint) {
	Invalidate(ctx, ItemReviewsKey(itemID))
}

func InvalidateCollection(ctx context.Context, slug string) {
	Invalidate(ctx, CollectionKey(slug))
	Invalidate(ctx, PublicCollectionsKey)
}
