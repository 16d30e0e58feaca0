// Package notify provides jobclient.Notifier implementations: an inbox
// notifier that persists user-visible notifications and a log notifier for
// headless consumers.
package notify

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pixelforge/internal/domain"
	"pixelforge/internal/infra"
	"pixelforge/internal/jobclient"
)

// Inbox persists notifications for one user. Show inserts a row and returns
// its ID as the handle; Update rewrites that row in place so a job's
// submitted-notification becomes its terminal notification. Persistence
// failures are logged, never propagated: notifications are best effort.
type Inbox struct {
	repo   domain.NotificationRepository
	userID string
	locale string
	logger infra.Logger
	titler cases.Caser
}

// titleCatalog localizes the fixed job lifecycle titles. Unknown phrases and
// free-form bodies pass through untranslated.
var titleCatalog = map[string]map[string]string{
	"es": {
		"job submitted":       "Trabajo enviado",
		"submission failed":   "Envío fallido",
		"generation complete": "Generación completada",
		"generation failed":   "Generación fallida",
	},
	"pt": {
		"job submitted":       "Trabalho enviado",
		"submission failed":   "Envio falhou",
		"generation complete": "Geração concluída",
		"generation failed":   "Geração falhou",
	},
}

// NewInbox builds an inbox notifier scoped to one user. Titles matching the
// lifecycle catalog are rendered in the given locale; empty means English.
func NewInbox(repo domain.NotificationRepository, userID, locale string, logger infra.Logger) *Inbox {
	return &Inbox{
		repo:   repo,
		userID: userID,
		locale: locale,
		logger: logger,
		titler: cases.Title(language.Und, cases.NoLower),
	}
}

func (n *Inbox) renderTitle(title string) string {
	title = strings.TrimSpace(title)
	if catalog, ok := titleCatalog[n.locale]; ok {
		if localized, ok := catalog[strings.ToLower(title)]; ok {
			title = localized
		}
	}
	return n.titler.String(title)
}

func (n *Inbox) Show(kind jobclient.Kind, title, message string) jobclient.Handle {
	id := uuid.NewString()
	rec := &domain.Notification{
		ID:     id,
		UserID: n.userID,
		Kind:   kindToDomain(kind),
		Title:  n.renderTitle(title),
		Body:   message,
	}
	if err := n.repo.Insert(context.Background(), rec); err != nil {
		n.logger.Error().Err(err).Str("user_id", n.userID).Msg("notify: insert notification failed")
		return ""
	}
	return jobclient.Handle(id)
}

func (n *Inbox) Update(h jobclient.Handle, kind jobclient.Kind, title, message string) {
	title = n.renderTitle(title)
	if h == "" {
		// No earlier notification to rewrite; append instead.
		rec := &domain.Notification{
			ID:     uuid.NewString(),
			UserID: n.userID,
			Kind:   kindToDomain(kind),
			Title:  title,
			Body:   message,
		}
		if err := n.repo.Insert(context.Background(), rec); err != nil {
			n.logger.Error().Err(err).Str("user_id", n.userID).Msg("notify: insert notification failed")
		}
		return
	}
	if err := n.repo.Update(context.Background(), string(h), kindToDomain(kind), title, message); err != nil {
		n.logger.Error().Err(err).Str("user_id", n.userID).Msg("notify: update notification failed")
	}
}

func kindToDomain(kind jobclient.Kind) domain.NotificationKind {
	switch kind {
	case jobclient.KindSuccess:
		return domain.NotificationSuccess
	case jobclient.KindError:
		return domain.NotificationError
	default:
		return domain.NotificationInfo
	}
}

var _ jobclient.Notifier = (*Inbox)(nil)
