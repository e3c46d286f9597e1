package core

//go:generate mockgen -destination=mocks/mock_signal.go -package=mocks . SignalConnection

// Frame is one encoded message, ready for the wire.
type Frame []byte

// SignalConnection abstracts the transport of one participant.
// Owned by the adapter; rooms only hold it to fan out frames.
// TrySend must never block. Close must be safe to call more than once
// and should flush frames that were already accepted.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
