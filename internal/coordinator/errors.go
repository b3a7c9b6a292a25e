package coordinator

// Rejection is a validation failure reported only to the requester. Key
// identifies the message-catalog entry; Message is the rendered text.
type Rejection struct {
	Key     string
	Message string
}

func (e *Rejection) Error() string { return e.Message }

// NotFound reports whether the rejection is an unknown-game lookup, which
// the REST surface maps to 404 instead of 400.
func (e *Rejection) NotFound() bool { return e.Key == "errors.game_not_found" }

func (c *Coordinator) reject(key string, data any) *Rejection {
	msg, err := c.cat.Render(key, data)
	if err != nil {
		msg = c.cat.Text("errors.internal")
	}
	return &Rejection{Key: key, Message: msg}
}
