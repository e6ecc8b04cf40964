package router

// Match is the outcome of offering a request to a filter or a route.
//
// Outcomes are ordered by how much they say about the request:
// Success > WrongMethod > WrongURL. The zero value is WrongURL.
type Match int

const (
	// WrongURL means the path was not recognized.
	WrongURL Match = iota
	// WrongMethod means the path was recognized but not the method.
	WrongMethod
	// Success means the request was handled and a response was written.
	Success
)

// IsBetterThan reports whether m ranks strictly above other.
func (m Match) IsBetterThan(other Match) bool {
	return m > other
}

// String returns the outcome name.
func (m Match) String() string {
	switch m {
	case Success:
		return "success"
	case WrongMethod:
		return "wrong_method"
	case WrongURL:
		return "wrong_url"
	default:
		return "unknown"
	}
}
