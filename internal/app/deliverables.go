package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"jobtracker/pkg/domain"
)

// ListDeliverables returns the deliverables of an owned application.
func (a *App) ListDeliverables(ctx context.Context, ownerID, applicationID int64) ([]domain.Deliverable, error) {
	if _, err := a.GetApplication(ctx, ownerID, applicationID); err != nil {
		return nil, err
	}
	items, err := a.store.ListDeliverables(ctx, ownerID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list deliverables: %w", err)
	}
	return items, nil
}

// CreateDeliverable adds a deliverable under an owned application and then
// touches the application.
func (a *App) CreateDeliverable(ctx context.Context, ownerID, applicationID int64, f domain.DeliverableFields) (domain.Deliverable, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return domain.Deliverable{}, ValidationError("title is required")
	}
	d := domain.Deliverable{
		ApplicationID: applicationID,
		Title:         title,
		Type:          orDefault(f.Type, domain.DefaultDeliverableType),
		DueDate:       domain.TimestampPtr(domain.ParseDate(f.DueDate)),
		State:         orDefault(f.State, domain.DefaultDeliverableState),
		Content:       optionalRaw(f.Content),
		IsDone:        f.IsDone,
	}
	if d.IsDone {
		d.State = domain.DeliverableStateDone
	}
	created, err := a.store.CreateDeliverable(ctx, ownerID, d)
	if err != nil {
		return domain.Deliverable{}, translate(err, msgNotFound)
	}
	a.touchApplication(ctx, ownerID, created.ApplicationID)
	return created, nil
}

// UpdateDeliverable applies a partial update and then touches the parent
// application. Setting is_done to true forces the state to Done.
func (a *App) UpdateDeliverable(ctx context.Context, ownerID, id int64, p domain.DeliverablePatch) (domain.Deliverable, error) {
	updated, err := a.store.UpdateDeliverable(ctx, ownerID, id, func(d *domain.Deliverable) error {
		if title := strings.TrimSpace(p.Title.Or("")); title != "" {
			d.Title = title
		}
		if p.Type.Set {
			d.Type = orDefault(p.Type.Or(""), domain.DefaultDeliverableType)
		}
		if p.DueDate.Set {
			d.DueDate = domain.TimestampPtr(domain.ParseDate(p.DueDate.Or("")))
		}
		if state := strings.TrimSpace(p.State.Or("")); state != "" {
			d.State = state
		}
		if p.Content.Set {
			d.Content = optionalRaw(p.Content.Or(""))
		}
		if p.IsDone.Set {
			d.IsDone = p.IsDone.Or(false)
			if d.IsDone {
				d.State = domain.DeliverableStateDone
			}
		}
		return nil
	})
	if err != nil {
		return domain.Deliverable{}, translate(err, msgNotFound)
	}
	a.touchApplication(ctx, ownerID, updated.ApplicationID)
	return updated, nil
}

// DeleteDeliverable removes a deliverable and then touches its application.
func (a *App) DeleteDeliverable(ctx context.Context, ownerID, id int64) error {
	deleted, err := a.store.DeleteDeliverable(ctx, ownerID, id)
	if err != nil {
		return translate(err, msgNotFound)
	}
	a.touchApplication(ctx, ownerID, deleted.ApplicationID)
	return nil
}

// touchApplication runs after the deliverable write committed. A failure
// here does not undo that write, so it is logged rather than returned.
func (a *App) touchApplication(ctx context.Context, ownerID, applicationID int64) {
	if err := a.store.TouchApplication(ctx, ownerID, applicationID); err != nil {
		slog.ErrorContext(ctx, "touch application failed", "application_id", applicationID, "err", err)
	}
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
