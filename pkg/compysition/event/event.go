package event

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	cerrors "github.com/fiebiga/compysition/pkg/compysition/errors"
)

// Event is the unit of data moved between actors. It carries a write-once
// identity, an error slot, a polymorphic payload reachable via Data/
// SetData, and a path-based extension bag for actor-private annotations
// (spec.md §3.1-§3.3).
type Event interface {
	// ID is the immutable event identity, set once at construction.
	ID() string
	// MetaID groups related events (e.g. request/response pairs). It
	// defaults to ID() and, like ID, is write-once.
	MetaID() string
	// SetMetaID sets the meta id. It is a no-op once already set.
	SetMetaID(id string)
	// Service names the originating actor or external service, if known.
	Service() string
	SetService(name string)
	// Created is the construction timestamp.
	Created() time.Time

	// Err returns the error attached to this event, if any.
	Err() error
	// SetErr attaches err to the event.
	SetErr(err error)

	// Variant reports the concrete payload format.
	Variant() Variant
	// Data returns the payload in its native representation.
	Data() any
	// SetData replaces the payload, validating it against the variant's
	// native Go representation. It returns ErrInvalidEventDataModification
	// if v is not representable as this variant's payload.
	SetData(v any) error
	// DataString returns the payload's canonical textual serialization.
	DataString() string

	// Get performs a path-based lookup into the payload or, failing that,
	// the extension bag, mirroring the original implementation's unified
	// lookup() traversal. A single segment first checks extensions.
	Get(path ...string) (any, bool)
	// Set stores v in the extension bag at path. Unlike Data, extensions
	// are not format-validated; they are actor-private annotations.
	Set(v any, path ...string)

	// Convert returns a new event holding the payload reinterpreted as
	// to. The new event gets its own ID and carries over MetaID and
	// Service; the error slot and extension bag are not copied. It
	// returns ErrInvalidEventConversion if the conversion would narrow
	// data (spec.md §3.2).
	Convert(to Variant) (Event, error)
	// Clone returns a deep copy carrying the same ID, MetaID, Service,
	// and attached error, with its own copy of the extension bag.
	Clone() Event
}

// base holds the identity and extension-bag fields shared by every
// concrete event type. event_id and meta_id are write-once, mirroring the
// original implementation's property setters that silently refuse to
// overwrite an already-set id.
type base struct {
	mu      sync.Mutex
	id      string
	metaID  string
	service string
	created time.Time
	err     error
	ext     map[string]any
}

func newBase(service string) base {
	id := uuid.New().String()
	return base{
		id:      id,
		metaID:  id,
		service: service,
		created: time.Now(),
		ext:     make(map[string]any),
	}
}

func (b *base) ID() string      { return b.id }
func (b *base) MetaID() string  { return b.metaID }
func (b *base) Service() string { return b.service }
func (b *base) Created() time.Time { return b.created }

func (b *base) SetMetaID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.metaID == "" || b.metaID == b.id {
		b.metaID = id
	}
}

func (b *base) SetService(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.service = name
}

func (b *base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *base) SetErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func (b *base) Set(v any, path ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(path) == 0 {
		return
	}
	m := b.ext
	for _, seg := range path[:len(path)-1] {
		next, ok := m[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[seg] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

func (b *base) getExt(path ...string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var cur any = b.ext
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (b *base) cloneInto(nb *base) {
	nb.id = b.id
	nb.metaID = b.metaID
	nb.service = b.service
	nb.err = b.err
	nb.ext = CloneMapping(b.ext).(map[string]any)
}

// Option configures an event at construction time.
type Option func(*base)

// WithService sets the originating service name.
func WithService(name string) Option {
	return func(b *base) { b.service = name }
}

// WithMetaID overrides the default meta id (which otherwise equals the
// event's own id).
func WithMetaID(id string) Option {
	return func(b *base) { b.metaID = id }
}

func applyOptions(b *base, opts []Option) {
	for _, opt := range opts {
		opt(b)
	}
}

// ---- PlainEvent ----

// PlainEvent carries an opaque string payload (spec.md §3.2).
type PlainEvent struct {
	base
	data string
}

// NewPlainEvent constructs a PlainEvent with the given string payload.
func NewPlainEvent(data string, opts ...Option) *PlainEvent {
	e := &PlainEvent{base: newBase(""), data: data}
	applyOptions(&e.base, opts)
	return e
}

func (e *PlainEvent) Variant() Variant { return Plain }
func (e *PlainEvent) Data() any        { return e.data }
func (e *PlainEvent) DataString() string { return e.data }

func (e *PlainEvent) SetData(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: plain event requires a string payload, got %T", cerrors.ErrInvalidEventDataModification, v)
	}
	e.mu.Lock()
	e.data = s
	e.mu.Unlock()
	return nil
}

func (e *PlainEvent) Get(path ...string) (any, bool) {
	if len(path) == 1 {
		if v, ok := e.getExt(path...); ok {
			return v, true
		}
	}
	if len(path) == 0 {
		return e.data, true
	}
	return e.getExt(path...)
}

func (e *PlainEvent) Convert(to Variant) (Event, error) {
	return convertFrom(e, Plain, e.data, to)
}

func (e *PlainEvent) Clone() Event {
	n := &PlainEvent{base: newBase(e.service), data: e.data}
	e.cloneInto(&n.base)
	return n
}

// ---- TreeEvent ----

// TreeEvent carries an ordered labelled tree payload (spec.md §3.2).
type TreeEvent struct {
	base
	data *Tree
}

// NewTreeEvent constructs a TreeEvent. A nil tree defaults to DefaultTree().
func NewTreeEvent(data *Tree, opts ...Option) *TreeEvent {
	if data == nil {
		data = DefaultTree()
	}
	e := &TreeEvent{base: newBase(""), data: data}
	applyOptions(&e.base, opts)
	return e
}

func (e *TreeEvent) Variant() Variant    { return Tree }
func (e *TreeEvent) Data() any           { return e.data }
func (e *TreeEvent) DataString() string  { return e.data.String() }

func (e *TreeEvent) SetData(v any) error {
	switch t := v.(type) {
	case *Tree:
		e.mu.Lock()
		e.data = t
		e.mu.Unlock()
		return nil
	case string:
		parsed, err := ParseTree(t)
		if err != nil {
			return fmt.Errorf("%w: %v", cerrors.ErrInvalidEventDataModification, err)
		}
		e.mu.Lock()
		e.data = parsed
		e.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("%w: tree event requires a *Tree or XML string payload, got %T", cerrors.ErrInvalidEventDataModification, v)
	}
}

func (e *TreeEvent) Get(path ...string) (any, bool) {
	if len(path) == 1 {
		if v, ok := e.getExt(path...); ok {
			return v, true
		}
	}
	if len(path) == 0 {
		return e.data, true
	}
	cur := e.data
	for i, seg := range path {
		var next *Tree
		for _, c := range cur.Children {
			if c.Name == seg {
				next = c
				break
			}
		}
		if next == nil {
			return e.getExt(path[i:]...)
		}
		cur = next
	}
	return cur, true
}

func (e *TreeEvent) Convert(to Variant) (Event, error) {
	return convertFrom(e, Tree, e.data, to)
}

func (e *TreeEvent) Clone() Event {
	n := &TreeEvent{base: newBase(e.service), data: e.data.Clone()}
	e.cloneInto(&n.base)
	return n
}

// ---- MappingEvent ----

// MappingEvent carries a recursive mapping/list of primitives payload
// (spec.md §3.2).
type MappingEvent struct {
	base
	data any
}

// NewMappingEvent constructs a MappingEvent. A nil payload defaults to an
// empty map.
func NewMappingEvent(data any, opts ...Option) *MappingEvent {
	if data == nil {
		data = map[string]any{}
	}
	e := &MappingEvent{base: newBase(""), data: data}
	applyOptions(&e.base, opts)
	return e
}

func (e *MappingEvent) Variant() Variant   { return Mapping }
func (e *MappingEvent) Data() any          { return e.data }
func (e *MappingEvent) DataString() string { return MappingString(e.data) }

func (e *MappingEvent) SetData(v any) error {
	switch val := v.(type) {
	case string:
		parsed, err := ParseMapping(val)
		if err != nil {
			return fmt.Errorf("%w: %v", cerrors.ErrInvalidEventDataModification, err)
		}
		e.mu.Lock()
		e.data = parsed
		e.mu.Unlock()
		return nil
	default:
		e.mu.Lock()
		e.data = v
		e.mu.Unlock()
		return nil
	}
}

func (e *MappingEvent) Get(path ...string) (any, bool) {
	if len(path) == 1 {
		if v, ok := e.getExt(path...); ok {
			return v, true
		}
	}
	if len(path) == 0 {
		return e.data, true
	}
	var cur any = e.data
	for i, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return e.getExt(path[i:]...)
		}
		cur, ok = m[seg]
		if !ok {
			return e.getExt(path[i:]...)
		}
	}
	return cur, true
}

func (e *MappingEvent) Convert(to Variant) (Event, error) {
	return convertFrom(e, Mapping, e.data, to)
}

func (e *MappingEvent) Clone() Event {
	n := &MappingEvent{base: newBase(e.service), data: CloneMapping(e.data)}
	e.cloneInto(&n.base)
	return n
}

// ---- FormEvent ----

// FormEvent carries an ordered {key: tuple-of-values} list payload
// (spec.md §3.2).
type FormEvent struct {
	base
	data Form
}

// NewFormEvent constructs a FormEvent.
func NewFormEvent(data Form, opts ...Option) *FormEvent {
	e := &FormEvent{base: newBase(""), data: data}
	applyOptions(&e.base, opts)
	return e
}

func (e *FormEvent) Variant() Variant   { return Form }
func (e *FormEvent) Data() any          { return e.data }
func (e *FormEvent) DataString() string { return e.data.String() }

func (e *FormEvent) SetData(v any) error {
	switch val := v.(type) {
	case Form:
		e.mu.Lock()
		e.data = val
		e.mu.Unlock()
		return nil
	case string:
		parsed, err := ParseForm(val)
		if err != nil {
			return fmt.Errorf("%w: %v", cerrors.ErrInvalidEventDataModification, err)
		}
		e.mu.Lock()
		e.data = parsed
		e.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("%w: form event requires a Form or urlencoded string payload, got %T", cerrors.ErrInvalidEventDataModification, v)
	}
}

func (e *FormEvent) Get(path ...string) (any, bool) {
	if len(path) == 1 {
		if v, ok := e.getExt(path...); ok {
			return v, true
		}
		for _, entry := range e.data {
			if entry.Key == path[0] {
				if len(entry.Values) == 1 {
					return entry.Values[0], true
				}
				return entry.Values, true
			}
		}
		return nil, false
	}
	if len(path) == 0 {
		return e.data, true
	}
	return e.getExt(path...)
}

func (e *FormEvent) Convert(to Variant) (Event, error) {
	return convertFrom(e, Form, e.data, to)
}

func (e *FormEvent) Clone() Event {
	n := &FormEvent{base: newBase(e.service), data: e.data.Clone()}
	e.cloneInto(&n.base)
	return n
}

// convertFrom implements the shared Convert logic: same-variant is a deep
// clone, Plain is always reachable via DataString, and widening among
// Tree/Mapping/Form follows the documented conversion table. Narrowing or
// unsupported conversions return ErrInvalidEventConversion.
func convertFrom(src Event, from Variant, data any, to Variant) (Event, error) {
	if !isWidening(from, to) {
		return nil, fmt.Errorf("%w: cannot convert %s to %s", cerrors.ErrInvalidEventConversion, from, to)
	}
	var out Event
	switch to {
	case Plain:
		out = NewPlainEvent(src.DataString())
	case Tree:
		switch from {
		case Tree:
			out = NewTreeEvent(data.(*Tree).Clone())
		case Mapping:
			out = NewTreeEvent(MappingToTree(data))
		case Form:
			out = NewTreeEvent(FormToTree(data.(Form)))
		}
	case Mapping:
		switch from {
		case Mapping:
			out = NewMappingEvent(CloneMapping(data))
		case Tree:
			out = NewMappingEvent(TreeToMapping(data.(*Tree)))
		case Form:
			out = NewMappingEvent(FormToMapping(data.(Form)))
		}
	case Form:
		switch from {
		case Form:
			out = NewFormEvent(data.(Form).Clone())
		case Tree:
			out = NewFormEvent(TreeToForm(data.(*Tree)))
		case Mapping:
			out = NewFormEvent(MappingToForm(data))
		}
	}
	if out == nil {
		return nil, fmt.Errorf("%w: cannot convert %s to %s", cerrors.ErrInvalidEventConversion, from, to)
	}
	out.SetMetaID(src.MetaID())
	out.SetService(src.Service())
	return out, nil
}
