package types

// Message is one entry in the model conversation history managed by the
// Context Window Manager. Role follows the usual
// system/user/assistant/tool convention.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
