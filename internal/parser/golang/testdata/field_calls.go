package fieldcalls

import (
	"database/sql"
	"log/slog"
)

// Audit records changes to people.
type Audit struct{}

func (a *Audit) Record(event string) {}
func (a *Audit) Fail(event string)   {}

// Journal wraps an audit so calls chain two fields deep.
type Journal struct {
	audit Audit
}

// PersonService reaches its collaborators through fields.
type PersonService struct {
	db      *sql.DB
	log     *slog.Logger
	audit   Audit
	journal Journal
}

func (s *PersonService) Create(name string) {
	s.db.Exec("INSERT INTO people(name) VALUES (?)", name)
	s.log.Info("person created", "name", name)
	s.audit.Record("create")
}

func (s *PersonService) remove(id int) {
	s.db.Exec("DELETE FROM people WHERE id = ?", id)
	s.audit.Fail("remove")
}

// Archive goes through s.journal.audit.
func (s *PersonService) Archive() {
	s.journal.audit.Record("archive")
}
