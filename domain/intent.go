package domain

// Intent is a decoded client instruction.
type Intent interface {
	isIntent()
}

// DeclareOrSend carries the raw text of the canonical envelope. The session
// state machine decides whether it names the session or posts a message.
type DeclareOrSend struct {
	Text string
}

func (DeclareOrSend) isIntent() {}
