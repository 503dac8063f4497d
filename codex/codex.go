// Package codex holds the campaign content graph: the entity store, the relation
// ledger, per-entity diaries, wiki article links, magic item assignments and the
// read-side views composed from them.
//
// Every operation runs synchronously against the database and reports failures as
// *Error values carrying an ErrorKind.
package codex

import (
	"context"
	"fmt"

	"github.com/phturb/campaign-codex-backend-go/internal"
	"github.com/phturb/campaign-codex-backend-go/model"
)

// Revalidator is told which display paths went stale after a successful write.
type Revalidator interface {
	Revalidate(paths ...string)
}

type noopRevalidator struct{}

func (noopRevalidator) Revalidate(...string) {}

// Notifier announces newly logged sessions outside the application.
type Notifier interface {
	SessionLogged(ctx context.Context, s *model.Session) error
}

type noopNotifier struct{}

func (noopNotifier) SessionLogged(context.Context, *model.Session) error { return nil }

type Services struct {
	Entities    *Entities
	Relations   RelationLedger
	Diary       Diary
	Wiki        WikiLinker
	Assignments Assignments
	Views       Views
	Exporter    Exporter
	Auditor     Auditor
}

func NewServices(d internal.Dependencies, rv Revalidator, n Notifier) *Services {
	if rv == nil {
		rv = noopRevalidator{}
	}
	if n == nil {
		n = noopNotifier{}
	}
	return &Services{
		Entities:    NewEntities(d, rv, n),
		Relations:   NewRelationLedger(d, rv),
		Diary:       NewDiary(d, rv),
		Wiki:        NewWikiLinker(d, rv),
		Assignments: NewAssignments(d, rv),
		Views:       NewViews(d),
		Exporter:    NewExporter(d),
		Auditor:     NewAuditor(d),
	}
}

func campaignPath(id uint) string {
	return fmt.Sprintf("/campaigns/%d", id)
}
