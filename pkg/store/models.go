package store

import (
	"time"

	"jobtracker/pkg/domain"
)

// GORM models used for persistence.
type UserModel struct {
	ID           int64              `gorm:"primaryKey"`
	Email        string             `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string             `gorm:"size:255;not null"`
	CreatedAt    time.Time          `gorm:"not null"`
	Applications []ApplicationModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	WritingItems []WritingItemModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (UserModel) TableName() string { return "users" }

type ApplicationModel struct {
	ID            int64   `gorm:"primaryKey"`
	UserID        int64   `gorm:"not null;index"`
	Company       string  `gorm:"size:200;not null"`
	Role          string  `gorm:"size:200;not null"`
	Link          *string `gorm:"size:500"`
	Status        string  `gorm:"size:50;not null;index"`
	DueDate       *time.Time
	SubmittedDate *time.Time
	Notes         *string            `gorm:"type:text"`
	CreatedAt     time.Time          `gorm:"not null"`
	UpdatedAt     time.Time          `gorm:"not null;index"`
	Deliverables  []DeliverableModel `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE"`
}

func (ApplicationModel) TableName() string { return "applications" }

func (m *ApplicationModel) OwnerRef() int64 { return m.UserID }

type DeliverableModel struct {
	ID            int64  `gorm:"primaryKey"`
	ApplicationID int64  `gorm:"not null;index"`
	Title         string `gorm:"size:200;not null"`
	DType         string `gorm:"column:dtype;size:50;not null"`
	DueDate       *time.Time
	State         string    `gorm:"size:50;not null"`
	Content       *string   `gorm:"type:text"`
	IsDone        bool      `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (DeliverableModel) TableName() string { return "deliverables" }

func (m *DeliverableModel) OwnerRef() int64 { return m.ApplicationID }

type WritingItemModel struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"not null;index"`
	Title     string    `gorm:"size:200;not null"`
	Tags      *string   `gorm:"size:300"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (WritingItemModel) TableName() string { return "writing_bank_items" }

func (m *WritingItemModel) OwnerRef() int64 { return m.UserID }

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.Time,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    domain.NewTimestamp(m.CreatedAt),
	}
}

func applicationToModel(a domain.Application) ApplicationModel {
	return ApplicationModel{
		ID:            a.ID,
		UserID:        a.UserID,
		Company:       a.Company,
		Role:          a.Role,
		Link:          a.Link,
		Status:        string(a.Status),
		DueDate:       timePtr(a.DueDate),
		SubmittedDate: timePtr(a.SubmittedDate),
		Notes:         a.Notes,
		CreatedAt:     a.CreatedAt.Time,
		UpdatedAt:     a.UpdatedAt.Time,
	}
}

func applicationFromModel(m ApplicationModel) domain.Application {
	return domain.Application{
		ID:            m.ID,
		UserID:        m.UserID,
		Company:       m.Company,
		Role:          m.Role,
		Link:          m.Link,
		Status:        domain.ApplicationStatus(m.Status),
		DueDate:       domain.TimestampPtr(m.DueDate),
		SubmittedDate: domain.TimestampPtr(m.SubmittedDate),
		Notes:         m.Notes,
		CreatedAt:     domain.NewTimestamp(m.CreatedAt),
		UpdatedAt:     domain.NewTimestamp(m.UpdatedAt),
	}
}

func deliverableToModel(d domain.Deliverable) DeliverableModel {
	return DeliverableModel{
		ID:            d.ID,
		ApplicationID: d.ApplicationID,
		Title:         d.Title,
		DType:         d.Type,
		DueDate:       timePtr(d.DueDate),
		State:         d.State,
		Content:       d.Content,
		IsDone:        d.IsDone,
		CreatedAt:     d.CreatedAt.Time,
		UpdatedAt:     d.UpdatedAt.Time,
	}
}

func deliverableFromModel(m DeliverableModel) domain.Deliverable {
	return domain.Deliverable{
		ID:            m.ID,
		ApplicationID: m.ApplicationID,
		Title:         m.Title,
		Type:          m.DType,
		DueDate:       domain.TimestampPtr(m.DueDate),
		State:         m.State,
		Content:       m.Content,
		IsDone:        m.IsDone,
		CreatedAt:     domain.NewTimestamp(m.CreatedAt),
		UpdatedAt:     domain.NewTimestamp(m.UpdatedAt),
	}
}

func writingItemToModel(w domain.WritingBankItem) WritingItemModel {
	return WritingItemModel{
		ID:        w.ID,
		UserID:    w.UserID,
		Title:     w.Title,
		Tags:      w.Tags,
		Content:   w.Content,
		CreatedAt: w.CreatedAt.Time,
		UpdatedAt: w.UpdatedAt.Time,
	}
}

func writingItemFromModel(m WritingItemModel) domain.WritingBankItem {
	return domain.WritingBankItem{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		Tags:      m.Tags,
		Content:   m.Content,
		CreatedAt: domain.NewTimestamp(m.CreatedAt),
		UpdatedAt: domain.NewTimestamp(m.UpdatedAt),
	}
}

func timePtr(ts *domain.Timestamp) *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}
