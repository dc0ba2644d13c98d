package app

import (
	"context"
	"fmt"
	"strings"

	"jobtracker/pkg/domain"
)

// ListWritingItems returns the owner's writing bank. q matches title, tags
// or content case-insensitively.
func (a *App) ListWritingItems(ctx context.Context, ownerID int64, q string) ([]domain.WritingBankItem, error) {
	items, err := a.store.ListWritingItems(ctx, ownerID, q)
	if err != nil {
		return nil, fmt.Errorf("list writing items: %w", err)
	}
	return items, nil
}

// CreateWritingItem stores a reusable snippet. Tags are kept as opaque text.
func (a *App) CreateWritingItem(ctx context.Context, ownerID int64, f domain.WritingItemFields) (domain.WritingBankItem, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return domain.WritingBankItem{}, ValidationError("title is required")
	}
	if strings.TrimSpace(f.Content) == "" {
		return domain.WritingBankItem{}, ValidationError("content is required")
	}
	created, err := a.store.CreateWritingItem(ctx, ownerID, domain.WritingBankItem{
		Title:   title,
		Tags:    optionalText(f.Tags),
		Content: f.Content,
	})
	if err != nil {
		return domain.WritingBankItem{}, fmt.Errorf("create writing item: %w", err)
	}
	return created, nil
}

// UpdateWritingItem applies a partial update. Content may not be cleared.
func (a *App) UpdateWritingItem(ctx context.Context, ownerID, id int64, p domain.WritingItemPatch) (domain.WritingBankItem, error) {
	updated, err := a.store.UpdateWritingItem(ctx, ownerID, id, func(item *domain.WritingBankItem) error {
		if title := strings.TrimSpace(p.Title.Or("")); title != "" {
			item.Title = title
		}
		if p.Tags.Set {
			item.Tags = optionalText(p.Tags.Or(""))
		}
		if p.Content.Set {
			content := p.Content.Or("")
			if strings.TrimSpace(content) == "" {
				return ValidationError("content cannot be empty")
			}
			item.Content = content
		}
		return nil
	})
	if err != nil {
		return domain.WritingBankItem{}, translate(err, msgNotFound)
	}
	return updated, nil
}

// DeleteWritingItem removes an owned writing bank item.
func (a *App) DeleteWritingItem(ctx context.Context, ownerID, id int64) error {
	return translate(a.store.DeleteWritingItem(ctx, ownerID, id), msgNotFound)
}
