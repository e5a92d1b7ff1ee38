package models

import "encoding/json"

// Todo is a board card. Status is a free-form column identifier so boards
// can define their own columns; "todo", "in_progress", "done" and
// "archived" are the conventional values.
type Todo struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	AssignedTo  []string `json:"assigned_to"`
	Tags        []string `json:"tags"`
	StoryPoints int      `json:"story_points,omitempty"`
	Project     string   `json:"project,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
	CreatedBy   string   `json:"created_by"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// TodoRow is the flat storage shape of a Todo: the list-valued fields are
// kept as JSON text columns so both SQLite and MySQL store them the same way.
type TodoRow struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	Description string `db:"description"`
	Status      string `db:"status"`
	AssignedTo  string `db:"assigned_to"`
	Tags        string `db:"tags"`
	StoryPoints int    `db:"story_points"`
	Project     string `db:"project"`
	DueDate     string `db:"due_date"`
	CreatedBy   string `db:"created_by"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

// Row converts t to its storage shape.
func (t *Todo) Row() TodoRow {
	return TodoRow{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		AssignedTo:  marshalList(t.AssignedTo),
		Tags:        marshalList(t.Tags),
		StoryPoints: t.StoryPoints,
		Project:     t.Project,
		DueDate:     t.DueDate,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// Todo converts a stored row back to the API shape.
func (r *TodoRow) Todo() Todo {
	return Todo{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		AssignedTo:  unmarshalList(r.AssignedTo),
		Tags:        unmarshalList(r.Tags),
		StoryPoints: r.StoryPoints,
		Project:     r.Project,
		DueDate:     r.DueDate,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Audience returns the user ids that should be notified about changes to
// the todo: the creator plus every assignee, deduplicated.
func (t *Todo) Audience() []string {
	seen := make(map[string]struct{}, len(t.AssignedTo)+1)
	out := make([]string, 0, len(t.AssignedTo)+1)
	for _, id := range append([]string{t.CreatedBy}, t.AssignedTo...) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func marshalList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalList(s string) []string {
	if s == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return []string{}
	}
	return out
}
