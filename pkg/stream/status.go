package stream

import "fmt"

// Status is the lifecycle state of an InputStream.
type Status int

const (
	StatusNotOpen Status = iota
	StatusOpening
	StatusOpen
	StatusClosing
	StatusClosed
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusNotOpen:
		return "not_open"
	case StatusOpening:
		return "opening"
	case StatusOpen:
		return "open"
	case StatusClosing:
		return "closing"
	case StatusClosed:
		return "closed"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}
