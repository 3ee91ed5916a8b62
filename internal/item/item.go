// Package item defines the normalized unit of inbound work shared by every
// triage stage, regardless of which source system it came from.
package item

import "time"

// Source identifies the origin system of an item.
type Source string

const (
	SourceOutlook    Source = "outlook"
	SourceGmail      Source = "gmail"
	SourceSlack      Source = "slack"
	SourceTeams      Source = "teams"
	SourceJira       Source = "jira"
	SourceServiceNow Source = "servicenow"
)

// Kind groups sources by the shape of work they produce.
type Kind string

const (
	KindEmail   Kind = "email"
	KindChat    Kind = "chat"
	KindTicket  Kind = "ticket"
	KindUnknown Kind = "unknown"
)

// Sources lists every known source in a stable order.
var Sources = []Source{SourceOutlook, SourceGmail, SourceSlack, SourceTeams, SourceJira, SourceServiceNow}

// Kind returns the kind of work the source produces.
func (s Source) Kind() Kind {
	switch s {
	case SourceOutlook, SourceGmail:
		return KindEmail
	case SourceSlack, SourceTeams:
		return KindChat
	case SourceJira, SourceServiceNow:
		return KindTicket
	default:
		return KindUnknown
	}
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	return s.Kind() != KindUnknown
}

// Sender describes who sent an item. Every field is optional.
type Sender struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	UserID  string `json:"userId,omitempty"`
}

// Display returns the most human-friendly identifier available.
func (s Sender) Display() string {
	switch {
	case s.Name != "" && s.Address != "":
		return s.Name + " <" + s.Address + ">"
	case s.Name != "":
		return s.Name
	case s.Address != "":
		return s.Address
	case s.UserID != "":
		return s.UserID
	default:
		return "unknown"
	}
}

// ThreadMessage is one prior message in the same thread as an item.
type ThreadMessage struct {
	From      string    `json:"from,omitempty"`
	Body      string    `json:"body,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Item is a normalized work unit from any source. Items are built by the
// ingestion and query layers and are never mutated by triage.
type Item struct {
	ID            string          `json:"id"`
	Source        Source          `json:"source"`
	SourceID      string          `json:"sourceId,omitempty"`
	ItemType      string          `json:"itemType,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	From          Sender          `json:"from"`
	Subject       string          `json:"subject,omitempty"`
	BodyPreview   string          `json:"bodyPreview,omitempty"`
	ThreadID      string          `json:"threadId,omitempty"`
	ThreadContext []ThreadMessage `json:"threadContext,omitempty"`
	Metadata      Metadata        `json:"metadata,omitempty"`
	ReadStatus    bool            `json:"readStatus"`
	CreatedAt     time.Time       `json:"createdAt,omitzero"`
	UpdatedAt     time.Time       `json:"updatedAt,omitzero"`
}

// Text returns the subject and body preview joined by a space, the input
// the heuristic stages work from.
func (it *Item) Text() string {
	switch {
	case it.Subject == "":
		return it.BodyPreview
	case it.BodyPreview == "":
		return it.Subject
	default:
		return it.Subject + " " + it.BodyPreview
	}
}
