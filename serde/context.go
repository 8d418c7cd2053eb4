package serde

// ContextEngine is the interface to implement to create a context.
type ContextEngine interface {
	// GetFormat returns the name of the format for this context.
	GetFormat() Format

	// Marshal returns the bytes of the message according to the format of the
	// context.
	Marshal(message interface{}) ([]byte, error)

	// Unmarshal populates the message with the data according to the format of
	// the context.
	Unmarshal(data []byte, message interface{}) error
}

// Context is passed to every serialization and deserialization request. The
// overlay creates one per miner, and every message exchanged by that miner is
// encoded with its engine.
type Context struct {
	ContextEngine
}

// NewContext returns a context using the engine.
func NewContext(engine ContextEngine) Context {
	return Context{ContextEngine: engine}
}

// Serialize returns the data of the message in the format of the context.
// A nil message has no data.
func (ctx Context) Serialize(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, nil
	}

	return msg.Serialize(ctx)
}
