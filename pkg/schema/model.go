package schema

import "reflect"

// Model carries the implicit primary key. Every entity struct embeds it:
//
//	type Course struct {
//	    schema.Model
//	    UserID int64 `memra:"user_id,foreign(User),owner"`
//	    Name   string
//	}
//
// ID is absent before the row is persisted and present afterwards.
type Model struct {
	ID *int64 `json:"id,omitempty"`
}

// Key returns the primary key and whether it has been assigned.
func (m Model) Key() (int64, bool) {
	if m.ID == nil {
		return 0, false
	}
	return *m.ID, true
}

// SetKey assigns the primary key.
func (m *Model) SetKey(id int64) {
	m.ID = &id
}

// ClearKey removes the primary key.
func (m *Model) ClearKey() {
	m.ID = nil
}

// Identifiable is implemented by every struct embedding Model.
type Identifiable interface {
	Key() (int64, bool)
}

var embeddedModel = reflect.TypeOf(Model{})
