package authapi

// Kind classifies a failed call.
type Kind uint8

const (
	KindNone Kind = iota
	// KindServer: the server answered with a non-2xx status.
	KindServer
	// KindTransport: no usable response (refused, timeout, malformed body).
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindTransport:
		return "transport"
	default:
		return "none"
	}
}

const (
	fallbackServerMessage    = "Unknown error"
	fallbackTransportMessage = "Network error"
)

// Result is either a success carrying a value or a failure carrying a message.
type Result[T any] struct {
	value  T
	ok     bool
	kind   Kind
	msg    string
	status int
}

// Success wraps v.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Failure builds a failed result. An empty msg is replaced by the kind's fallback.
func Failure[T any](kind Kind, msg string) Result[T] {
	if msg == "" {
		if kind == KindServer {
			msg = fallbackServerMessage
		} else {
			msg = fallbackTransportMessage
		}
	}
	return Result[T]{kind: kind, msg: msg}
}

func serverFailure[T any](status int, msg string) Result[T] {
	r := Failure[T](KindServer, msg)
	r.status = status
	return r
}

// Ok reports whether the call succeeded.
func (r Result[T]) Ok() bool { return r.ok }

// Value returns the success value; ok is false for failures.
func (r Result[T]) Value() (T, bool) { return r.value, r.ok }

// Kind is KindNone for successes.
func (r Result[T]) Kind() Kind { return r.kind }

// Message is the failure description; empty for successes.
func (r Result[T]) Message() string { return r.msg }

// Status is the HTTP status of a server failure, 0 otherwise.
func (r Result[T]) Status() int { return r.status }
