package chatapi

type generateRequest struct {
	Prompt     string `json:"prompt"`
	SessionID  string `json:"session_id"`
	MaxHistory *int   `json:"max_history"`
}

type generateResponse struct {
	Response    string  `json:"response"`
	MessageType string  `json:"message_type"`
	SessionID   string  `json:"session_id"`
	Timestamp   float64 `json:"timestamp"`
	Code        string  `json:"code,omitempty"`
}

type historyRequest struct {
	SessionID string `json:"session_id"`
}

type historyResponse struct {
	Status  string   `json:"status"`
	History []string `json:"history"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type activeSessionsResponse struct {
	ActiveSessions []string `json:"active_sessions"`
	TotalSessions  int      `json:"total_sessions"`
}

type sessionNameResponse struct {
	SessionID string  `json:"session_id"`
	ChatName  string  `json:"chat_name"`
	CreatedAt *string `json:"created_at"`
}

type rootResponse struct {
	Status      string   `json:"status"`
	Title       string   `json:"title"`
	Version     string   `json:"version"`
	Model       string   `json:"model"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
}

type healthResponse struct {
	Status         string  `json:"status"`
	Model          *string `json:"model"`
	ActiveSessions int     `json:"active_sessions"`
}
