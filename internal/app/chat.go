package app

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"jobtracker/pkg/ai"
	"jobtracker/pkg/domain"
)

const (
	msgMessageRequired   = "Message is required"
	msgChatNotConfigured = "GEMINI_API_KEY is not configured on the server."
	msgAppNotFound       = "Application not found"
	noDeliverables       = "No deliverables added yet."
	notesFallback        = "None provided."
)

const systemPromptTemplate = `You are an expert interview prep assistant and career coach. Help the user prepare for their interview and hiring process by taking a look at the following notes/info.
Here is the context of the job application:
- Company: %s
- Role: %s
- Current Status: %s
- User's Notes on the job: %s

Current Deliverables for this application:
%s

Use this information to give tailored advice, mock interview questions, or next-step recommendations. Be concise, encouraging, and highly specific to the company and role provided. Utilize external research on the company and up to date interview/job search methods`

// Converse answers message in the context of one owned application. The
// system prompt is rebuilt from current data on every call and nothing is
// persisted.
func (a *App) Converse(ctx context.Context, ownerID, applicationID int64, message string, history []domain.ChatTurn) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ValidationError(msgMessageRequired)
	}
	if a.generator == nil {
		return "", ConfigurationError(msgChatNotConfigured)
	}
	application, err := a.store.GetApplication(ctx, ownerID, applicationID)
	if err != nil {
		return "", translate(err, msgAppNotFound)
	}
	deliverables, err := a.store.ListDeliverables(ctx, ownerID, applicationID)
	if err != nil {
		return "", fmt.Errorf("list deliverables: %w", err)
	}

	turns := make([]ai.Message, 0, len(history))
	for _, turn := range history {
		role := ai.RoleUser
		if turn.Role == domain.ChatRoleAssistant {
			role = ai.RoleAssistant
		}
		turns = append(turns, ai.Message{Role: role, Text: turn.Text})
	}

	reply, err := a.generator.Chat(ctx, BuildSystemPrompt(application, deliverables), turns, message)
	if err != nil {
		slog.WarnContext(ctx, "chat generation failed", "application_id", applicationID, "err", err)
		return "", UpstreamError(err)
	}
	return reply, nil
}

// BuildSystemPrompt renders the coaching prompt for an application and its
// deliverables. The output depends only on its inputs; deliverables are
// listed in creation order.
func BuildSystemPrompt(application domain.Application, deliverables []domain.Deliverable) string {
	deliverables = slices.Clone(deliverables)
	slices.SortFunc(deliverables, func(x, y domain.Deliverable) int {
		return cmp.Compare(x.ID, y.ID)
	})
	notes := notesFallback
	if application.Notes != nil && *application.Notes != "" {
		notes = *application.Notes
	}
	block := noDeliverables
	if len(deliverables) > 0 {
		lines := make([]string, 0, len(deliverables))
		for _, d := range deliverables {
			lines = append(lines, deliverableLine(d))
		}
		block = strings.Join(lines, "\n")
	}
	return fmt.Sprintf(systemPromptTemplate,
		application.Company,
		application.Role,
		application.Status,
		notes,
		block,
	)
}

func deliverableLine(d domain.Deliverable) string {
	return fmt.Sprintf("-> %s (%s). Due: %s. State: %s.", d.Title, d.Type, promptDate(d.DueDate), d.State)
}

// promptDate prints a naive timestamp, with microseconds only when present.
func promptDate(ts *domain.Timestamp) string {
	if ts == nil {
		return "None"
	}
	t := ts.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02 15:04:05.000000")
}
