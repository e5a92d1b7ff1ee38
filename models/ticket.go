package models

// TicketPriority is the urgency of a ticket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
)

// Weight returns a numeric weight for sorting (higher = more urgent).
func (p TicketPriority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// TicketStatus is the workflow state of a ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusClosed     TicketStatus = "closed"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// TicketCategory classifies what the ticket is about.
type TicketCategory string

const (
	CategoryHardware TicketCategory = "hardware"
	CategorySoftware TicketCategory = "software"
	CategoryNetwork  TicketCategory = "network"
	CategoryAccount  TicketCategory = "account"
	CategoryOther    TicketCategory = "other"
)

func (c TicketCategory) Valid() bool {
	switch c {
	case CategoryHardware, CategorySoftware, CategoryNetwork, CategoryAccount, CategoryOther:
		return true
	}
	return false
}

// Ticket is a helpdesk request raised by a user.
type Ticket struct {
	ID             string         `db:"id"               json:"id"`
	Title          string         `db:"title"            json:"title"`
	Description    string         `db:"description"      json:"description"`
	Priority       TicketPriority `db:"priority"         json:"priority"`
	Status         TicketStatus   `db:"status"           json:"status"`
	Category       TicketCategory `db:"category"         json:"category"`
	CreatedBy      string         `db:"created_by"       json:"created_by"`
	CreatedByName  string         `db:"created_by_name"  json:"created_by_name"`
	AssignedTo     string         `db:"assigned_to"      json:"assigned_to,omitempty"`
	AssignedToName string         `db:"assigned_to_name" json:"assigned_to_name,omitempty"`
	EstimatedTime  string         `db:"estimated_time"   json:"estimated_time,omitempty"`
	CreatedAt      string         `db:"created_at"       json:"created_at"`
	UpdatedAt      string         `db:"updated_at"       json:"updated_at"`

	// Comments are loaded separately from ticket_comments.
	Comments []Comment `db:"-" json:"comments,omitempty"`
}

// Comment is a single entry in a ticket's discussion thread.
type Comment struct {
	ID         string `db:"id"          json:"id"`
	TicketID   string `db:"ticket_id"   json:"ticket_id"`
	Text       string `db:"text"        json:"text"`
	AuthorID   string `db:"author_id"   json:"author_id"`
	AuthorName string `db:"author_name" json:"author_name"`
	CreatedAt  string `db:"created_at"  json:"created_at"`
}
