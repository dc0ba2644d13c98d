package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jobtracker/pkg/domain"
	"jobtracker/pkg/store"
)

func allowedStatusNames() []string {
	names := make([]string, 0, len(domain.AllowedStatuses))
	for _, s := range domain.AllowedStatuses {
		names = append(names, string(s))
	}
	return names
}

func invalidStatus() *Error {
	return ValidationError(fmt.Sprintf("status must be one of: %s", strings.Join(allowedStatusNames(), ", ")))
}

// optionalText trims s and maps blank to nil.
func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// optionalRaw keeps s untouched unless it is blank.
func optionalRaw(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// ListApplications returns the owner's applications, newest activity first.
// status is matched exactly, q is a case-insensitive substring of company,
// role or notes.
func (a *App) ListApplications(ctx context.Context, ownerID int64, status, q string) ([]domain.Application, error) {
	items, err := a.store.ListApplications(ctx, ownerID, store.ApplicationFilter{Status: status, Query: q})
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return items, nil
}

// CreateApplication validates and stores a new application.
func (a *App) CreateApplication(ctx context.Context, ownerID int64, f domain.ApplicationFields) (domain.Application, error) {
	company := strings.TrimSpace(f.Company)
	role := strings.TrimSpace(f.Role)
	if company == "" || role == "" {
		return domain.Application{}, ValidationError("company and role are required")
	}
	status := domain.StatusDrafting
	if strings.TrimSpace(f.Status) != "" {
		parsed, ok := domain.ParseStatus(strings.TrimSpace(f.Status))
		if !ok {
			return domain.Application{}, invalidStatus()
		}
		status = parsed
	}
	created, err := a.store.CreateApplication(ctx, ownerID, domain.Application{
		Company:       company,
		Role:          role,
		Link:          optionalText(f.Link),
		Status:        status,
		DueDate:       domain.TimestampPtr(domain.ParseDate(f.DueDate)),
		SubmittedDate: domain.TimestampPtr(domain.ParseDate(f.SubmittedDate)),
		Notes:         optionalRaw(f.Notes),
	})
	if errors.Is(err, store.ErrCapacity) {
		return domain.Application{}, CapacityError(fmt.Sprintf("Application limit reached (%d per user).", a.maxAppsPerUser))
	}
	if err != nil {
		return domain.Application{}, fmt.Errorf("create application: %w", err)
	}
	return created, nil
}

// GetApplication returns one owned application.
func (a *App) GetApplication(ctx context.Context, ownerID, id int64) (domain.Application, error) {
	item, err := a.store.GetApplication(ctx, ownerID, id)
	if err != nil {
		return domain.Application{}, translate(err, msgNotFound)
	}
	return item, nil
}

// UpdateApplication applies a partial update. Blank company or role keep
// the current value; blank link or notes clear the field.
func (a *App) UpdateApplication(ctx context.Context, ownerID, id int64, p domain.ApplicationPatch) (domain.Application, error) {
	updated, err := a.store.UpdateApplication(ctx, ownerID, id, func(app *domain.Application) error {
		if company := strings.TrimSpace(p.Company.Or("")); company != "" {
			app.Company = company
		}
		if role := strings.TrimSpace(p.Role.Or("")); role != "" {
			app.Role = role
		}
		if p.Link.Set {
			app.Link = optionalText(p.Link.Or(""))
		}
		if p.Status.Set {
			status, ok := domain.ParseStatus(strings.TrimSpace(p.Status.Or("")))
			if !ok {
				return invalidStatus()
			}
			app.Status = status
		}
		if p.DueDate.Set {
			app.DueDate = domain.TimestampPtr(domain.ParseDate(p.DueDate.Or("")))
		}
		if p.SubmittedDate.Set {
			app.SubmittedDate = domain.TimestampPtr(domain.ParseDate(p.SubmittedDate.Or("")))
		}
		if p.Notes.Set {
			app.Notes = optionalRaw(p.Notes.Or(""))
		}
		return nil
	})
	if err != nil {
		return domain.Application{}, translate(err, msgNotFound)
	}
	return updated, nil
}

// DeleteApplication removes an owned application and its deliverables.
func (a *App) DeleteApplication(ctx context.Context, ownerID, id int64) error {
	return translate(a.store.DeleteApplication(ctx, ownerID, id), msgNotFound)
}
