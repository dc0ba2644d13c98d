package server

import (
	"encoding/json"
	"strings"

	"jobtracker/pkg/domain"
)

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type authResponse struct {
	AccessToken string   `json:"access_token"`
	User        userView `json:"user"`
}

// looseDate takes any JSON value for a date field. A value that is not a
// string cannot be parsed as a date and decodes as blank, which stores null.
type looseDate string

func (d *looseDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*d = ""
		return nil
	}
	*d = looseDate(s)
	return nil
}

func dateText(o domain.Optional[looseDate]) domain.Optional[string] {
	return domain.Optional[string]{Set: o.Set, Null: o.Null, Value: string(o.Value)}
}

type applicationRequest struct {
	Company       domain.Optional[string]    `json:"company"`
	Role          domain.Optional[string]    `json:"role"`
	Link          domain.Optional[string]    `json:"link"`
	Status        domain.Optional[string]    `json:"status"`
	DueDate       domain.Optional[looseDate] `json:"due_date"`
	SubmittedDate domain.Optional[looseDate] `json:"submitted_date"`
	Notes         domain.Optional[string]    `json:"notes"`
}

func (r applicationRequest) fields() domain.ApplicationFields {
	return domain.ApplicationFields{
		Company:       r.Company.Or(""),
		Role:          r.Role.Or(""),
		Link:          r.Link.Or(""),
		Status:        r.Status.Or(""),
		DueDate:       string(r.DueDate.Or("")),
		SubmittedDate: string(r.SubmittedDate.Or("")),
		Notes:         r.Notes.Or(""),
	}
}

func (r applicationRequest) patch() domain.ApplicationPatch {
	return domain.ApplicationPatch{
		Company:       r.Company,
		Role:          r.Role,
		Link:          r.Link,
		Status:        r.Status,
		DueDate:       dateText(r.DueDate),
		SubmittedDate: dateText(r.SubmittedDate),
		Notes:         r.Notes,
	}
}

type deliverableRequest struct {
	Title   domain.Optional[string]    `json:"title"`
	Type    domain.Optional[string]    `json:"dtype"`
	DueDate domain.Optional[looseDate] `json:"due_date"`
	State   domain.Optional[string]    `json:"state"`
	Content domain.Optional[string]    `json:"content"`
	IsDone  domain.Optional[bool]      `json:"is_done"`
}

func (r deliverableRequest) fields() domain.DeliverableFields {
	return domain.DeliverableFields{
		Title:   r.Title.Or(""),
		Type:    r.Type.Or(""),
		DueDate: string(r.DueDate.Or("")),
		State:   r.State.Or(""),
		Content: r.Content.Or(""),
		IsDone:  r.IsDone.Or(false),
	}
}

func (r deliverableRequest) patch() domain.DeliverablePatch {
	return domain.DeliverablePatch{
		Title:   r.Title,
		Type:    r.Type,
		DueDate: dateText(r.DueDate),
		State:   r.State,
		Content: r.Content,
		IsDone:  r.IsDone,
	}
}

type writingRequest struct {
	Title   domain.Optional[string] `json:"title"`
	Tags    domain.Optional[string] `json:"tags"`
	Content domain.Optional[string] `json:"content"`
}

func (r writingRequest) fields() domain.WritingItemFields {
	return domain.WritingItemFields{
		Title:   r.Title.Or(""),
		Tags:    r.Tags.Or(""),
		Content: r.Content.Or(""),
	}
}

func (r writingRequest) patch() domain.WritingItemPatch {
	return domain.WritingItemPatch(r)
}

type chatRequest struct {
	Message string        `json:"message"`
	History []historyTurn `json:"history"`
}

func (r chatRequest) turns() []domain.ChatTurn {
	turns := make([]domain.ChatTurn, 0, len(r.History))
	for _, h := range r.History {
		role, ok := domain.ParseChatRole(h.Role)
		if !ok {
			role = domain.ChatRoleUser
		}
		turns = append(turns, domain.ChatTurn{Role: role, Text: h.Text})
	}
	return turns
}

// historyTurn accepts {"role","text"} as well as the Gemini style
// {"role","parts"} where parts is a string, a list of strings or a list of
// {"text"} objects.
type historyTurn struct {
	Role string
	Text string
}

func (h *historyTurn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  string          `json:"role"`
		Text  *string         `json:"text"`
		Parts json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	h.Role = raw.Role
	if raw.Text != nil {
		h.Text = *raw.Text
		return nil
	}
	text, err := partsText(raw.Parts)
	if err != nil {
		return err
	}
	h.Text = text
	return nil
}

func partsText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, item := range list {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			b.WriteString(s)
			continue
		}
		var part struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(item, &part); err != nil {
			return "", err
		}
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
