package event

import (
	"net/textproto"

	cerrors "github.com/fiebiga/compysition/pkg/compysition/errors"
)

// Pagination carries offset/limit/total bookkeeping for list responses,
// composed into HTTPOverlay rather than inherited (spec.md §3.2).
type Pagination struct {
	Offset int
	Limit  int
	Total  int
}

// HTTPOverlay composes request/response metadata onto an event without
// participating in the payload conversion lattice: headers, status line,
// environment variables, HTTP method, and pagination. It is attached to
// JSON and XML transport events, mirroring the original's HTTPEvent mixin.
type HTTPOverlay struct {
	Headers     textproto.MIMEHeader
	Status      cerrors.HTTPStatus
	Environment map[string]string
	Method      string
	Pagination  Pagination
}

func newHTTPOverlay() HTTPOverlay {
	return HTTPOverlay{
		Headers:     textproto.MIMEHeader{},
		Environment: map[string]string{},
		Status:      cerrors.HTTPStatus{Code: 200, Reason: "OK"},
	}
}

func (o *HTTPOverlay) clone() HTTPOverlay {
	n := HTTPOverlay{
		Headers:     textproto.MIMEHeader{},
		Environment: make(map[string]string, len(o.Environment)),
		Status:      o.Status,
		Method:      o.Method,
		Pagination:  o.Pagination,
	}
	for k, v := range o.Headers {
		n.Headers[k] = append([]string(nil), v...)
	}
	for k, v := range o.Environment {
		n.Environment[k] = v
	}
	return n
}

// applyErrStatus updates the overlay's status line to match err via the
// shared HTTP status table (errors.Classify), attaching any headers it
// dictates (e.g. WWW-Authenticate for unauthorized).
func (o *HTTPOverlay) applyErrStatus(err error) {
	if err == nil {
		return
	}
	code, reason, headers := cerrors.Classify(err)
	o.Status = cerrors.HTTPStatus{Code: code, Reason: reason}
	for k, v := range headers {
		o.Headers.Set(k, v)
	}
}

// JSONHTTPEvent is a MappingEvent with an HTTP overlay, the transport
// shape used by HTTP-facing JSON actors (spec.md §3.2).
type JSONHTTPEvent struct {
	MappingEvent
	HTTP HTTPOverlay
}

// NewJSONHTTPEvent constructs a JSONHTTPEvent.
func NewJSONHTTPEvent(data any, opts ...Option) *JSONHTTPEvent {
	return &JSONHTTPEvent{MappingEvent: *NewMappingEvent(data, opts...), HTTP: newHTTPOverlay()}
}

func (e *JSONHTTPEvent) SetErr(err error) {
	e.MappingEvent.SetErr(err)
	e.HTTP.applyErrStatus(err)
}

func (e *JSONHTTPEvent) Clone() Event {
	base := e.MappingEvent.Clone().(*MappingEvent)
	return &JSONHTTPEvent{MappingEvent: *base, HTTP: e.HTTP.clone()}
}

// XMLHTTPEvent is a TreeEvent with an HTTP overlay, the transport shape
// used by HTTP-facing XML actors (spec.md §3.2).
type XMLHTTPEvent struct {
	TreeEvent
	HTTP HTTPOverlay
}

// NewXMLHTTPEvent constructs an XMLHTTPEvent.
func NewXMLHTTPEvent(data *Tree, opts ...Option) *XMLHTTPEvent {
	return &XMLHTTPEvent{TreeEvent: *NewTreeEvent(data, opts...), HTTP: newHTTPOverlay()}
}

func (e *XMLHTTPEvent) SetErr(err error) {
	e.TreeEvent.SetErr(err)
	e.HTTP.applyErrStatus(err)
}

func (e *XMLHTTPEvent) Clone() Event {
	base := e.TreeEvent.Clone().(*TreeEvent)
	return &XMLHTTPEvent{TreeEvent: *base, HTTP: e.HTTP.clone()}
}
