package crawler

const (
	CloseSignal EventType = iota
	TransactionUnconfirmed
	TransactionConfirmed
)

type EventType int

func (et EventType) String() string {
	switch et {
	case CloseSignal:
		return "CloseSignal"
	case TransactionUnconfirmed:
		return "TransactionUnconfirmed"
	case TransactionConfirmed:
		return "TransactionConfirmed"
	default:
		return "Unknown"
	}
}

type CloseEvent struct{}

func (q CloseEvent) Type() EventType {
	return CloseSignal
}

type TransactionEvent struct {
	TxID          string
	EventType     EventType
	Confirmations int
}

func (t TransactionEvent) Type() EventType {
	return t.EventType
}
