package domain

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a call transcript, shared by the session store and
// the completion integrations.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
