package gateway

// Request bodies for the REST API. Update requests use pointer fields so a
// missing key is distinguishable from an explicit empty value.

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type createTicketRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Priority      string `json:"priority"`
	Category      string `json:"category"`
	EstimatedTime string `json:"estimated_time"`
}

type updateTicketRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Priority      *string `json:"priority"`
	Status        *string `json:"status"`
	Category      *string `json:"category"`
	AssignedTo    *string `json:"assigned_to"`
	EstimatedTime *string `json:"estimated_time"`
}

type commentRequest struct {
	Text string `json:"text"`
}

type createTodoRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	AssignedTo  []string `json:"assigned_to"`
	Tags        []string `json:"tags"`
	StoryPoints int      `json:"story_points"`
	Project     string   `json:"project"`
	DueDate     string   `json:"due_date"`
}

type updateTodoRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	AssignedTo  *[]string `json:"assigned_to"`
	Tags        *[]string `json:"tags"`
	StoryPoints *int      `json:"story_points"`
	Project     *string   `json:"project"`
	DueDate     *string   `json:"due_date"`
}

type inventoryRequest struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	SerialNumber string `json:"serial_number"`
	Location     string `json:"location"`
	Status       string `json:"status"`
	Description  string `json:"description"`
	Responsible  string `json:"responsible"`
}

type updateInventoryRequest struct {
	Name         *string `json:"name"`
	Type         *string `json:"type"`
	SerialNumber *string `json:"serial_number"`
	Location     *string `json:"location"`
	Status       *string `json:"status"`
	Description  *string `json:"description"`
	Responsible  *string `json:"responsible"`
}

type createUserRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	TelegramChatID string `json:"telegram_chat_id"`
}
