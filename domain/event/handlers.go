package event

// Handler Each kind of technical event has its own handler
// Based on the Chain of responsibility pattern
type Handler interface {
	Handle(event Technical)
}
