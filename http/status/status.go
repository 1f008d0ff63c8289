// Package status holds the HTTP status code/reason vocabulary. Copy-pasted
// in spirit from net/http's table, kept as its own package (as the teacher
// does) to dodge the name collisions net/http's own Code-ish constants would
// cause, and because response.go needs to name these as part of its own
// import graph without importing net/http at all.
package status

type (
	Code   uint16
	Reason string
)

const (
	Continue           Code = 100
	SwitchingProtocols Code = 101
	Processing         Code = 102

	OK        Code = 200
	Created   Code = 201
	Accepted  Code = 202
	NoContent Code = 204

	MovedPermanently  Code = 301
	Found             Code = 302
	SeeOther          Code = 303
	NotModified       Code = 304
	TemporaryRedirect Code = 307
	PermanentRedirect Code = 308

	BadRequest            Code = 400
	Unauthorized          Code = 401
	Forbidden             Code = 403
	NotFound              Code = 404
	MethodNotAllowed      Code = 405
	RequestTimeout        Code = 408
	Conflict              Code = 409
	LengthRequired        Code = 411
	RequestEntityTooLarge Code = 413
	RequestURITooLong     Code = 414
	UnsupportedMediaType  Code = 415
	ExpectationFailed     Code = 417
	HeaderFieldsTooLarge  Code = 431

	InternalServerError     Code = 500
	NotImplemented          Code = 501
	HTTPVersionNotSupported Code = 505

	// CloseConnection is a sentinel, never written to the wire, that tells
	// the Connector to drop the connection without sending a response.
	CloseConnection Code = 0
)

var reasons = map[Code]Reason{
	Continue:           "Continue",
	SwitchingProtocols: "Switching Protocols",
	Processing:         "Processing",

	OK:        "OK",
	Created:   "Created",
	Accepted:  "Accepted",
	NoContent: "No Content",

	MovedPermanently:  "Moved Permanently",
	Found:             "Found",
	SeeOther:          "See Other",
	NotModified:       "Not Modified",
	TemporaryRedirect: "Temporary Redirect",
	PermanentRedirect: "Permanent Redirect",

	BadRequest:            "Bad Request",
	Unauthorized:          "Unauthorized",
	Forbidden:             "Forbidden",
	NotFound:              "Not Found",
	MethodNotAllowed:      "Method Not Allowed",
	RequestTimeout:        "Request Timeout",
	Conflict:              "Conflict",
	LengthRequired:        "Length Required",
	RequestEntityTooLarge: "Request Entity Too Large",
	RequestURITooLong:     "Request URI Too Long",
	UnsupportedMediaType:  "Unsupported Media Type",
	ExpectationFailed:     "Expectation Failed",
	HeaderFieldsTooLarge:  "Request Header Fields Too Large",

	InternalServerError:     "Internal Server Error",
	NotImplemented:          "Not Implemented",
	HTTPVersionNotSupported: "HTTP Version Not Supported",
}

// Text returns the canonical reason phrase for code, or "Unknown Status
// Code" if it isn't in the table above.
func Text(code Code) Reason {
	if reason, ok := reasons[code]; ok {
		return reason
	}

	return "Unknown Status Code"
}
