package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/fiebiga/compysition/pkg/compysition/errors"
)

func TestEventIDIsWriteOnce(t *testing.T) {
	e := NewPlainEvent("hello")
	original := e.ID()
	e.Set("ignored", "id") // extension bag writes never touch identity
	assert.Equal(t, original, e.ID())
	assert.Equal(t, original, e.MetaID(), "meta id defaults to event id")
}

func TestSetMetaIDIsWriteOnceAfterExplicitSet(t *testing.T) {
	e := NewPlainEvent("hello")
	e.SetMetaID("correlation-1")
	assert.Equal(t, "correlation-1", e.MetaID())
	e.SetMetaID("correlation-2")
	assert.Equal(t, "correlation-1", e.MetaID(), "meta id does not change once explicitly set")
}

func TestPlainEventSetDataRejectsNonString(t *testing.T) {
	e := NewPlainEvent("hello")
	err := e.SetData(42)
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrInvalidEventDataModification)
}

func TestCloneSharesIdentityAndMetaID(t *testing.T) {
	e := NewPlainEvent("hello", WithService("svc-a"))
	e.SetMetaID("corr-1")
	clone := e.Clone()
	assert.Equal(t, e.ID(), clone.ID())
	assert.Equal(t, "corr-1", clone.MetaID())
	assert.Equal(t, "svc-a", clone.Service())
}

func TestConvertWideningPlainAlwaysAllowed(t *testing.T) {
	m := NewMappingEvent(map[string]any{"a": 1})
	plain, err := m.Convert(Plain)
	require.NoError(t, err)
	assert.Equal(t, Plain, plain.Variant())
	assert.Equal(t, `{"a":1}`, plain.DataString())
}

func TestConvertNarrowingPlainToStructuredRejected(t *testing.T) {
	p := NewPlainEvent("not xml")
	_, err := p.Convert(Tree)
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrInvalidEventConversion)
}

func TestConvertTreeToMappingSingleTopLevelKey(t *testing.T) {
	tr := &Tree{Name: "user", Children: []*Tree{{Name: "name", Text: "ada"}}}
	te := NewTreeEvent(tr)
	me, err := te.Convert(Mapping)
	require.NoError(t, err)
	data := me.Data()
	m, ok := data.(map[string]any)
	require.True(t, ok)
	inner, ok := m["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ada", inner["name"])
}

func TestConvertMappingToTreeMultiKeyUsesEnvelope(t *testing.T) {
	me := NewMappingEvent(map[string]any{"a": "1", "b": "2"})
	te, err := me.Convert(Tree)
	require.NoError(t, err)
	tr := te.Data().(*Tree)
	assert.Equal(t, jsonifiedEnvelope, tr.Name)
}

func TestConvertRoundTripTreeMappingPreservesEnvelopeStrip(t *testing.T) {
	me := NewMappingEvent(map[string]any{"a": "1", "b": "2"})
	te, err := me.Convert(Tree)
	require.NoError(t, err)
	back, err := te.Convert(Mapping)
	require.NoError(t, err)
	m := back.Data().(map[string]any)
	assert.Equal(t, "1", m["a"])
	assert.Equal(t, "2", m["b"])
}

func TestGetFallsBackToExtensionBag(t *testing.T) {
	e := NewMappingEvent(map[string]any{"a": "1"})
	e.Set("rescue-count", "__rescue_demo")
	v, ok := e.Get("__rescue_demo")
	require.True(t, ok)
	assert.Equal(t, "rescue-count", v)

	v, ok = e.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestSetErrOnJSONHTTPEventUpdatesStatus(t *testing.T) {
	e := NewJSONHTTPEvent(map[string]any{})
	e.SetErr(cerrors.ErrResourceNotFound)
	assert.Equal(t, 404, e.HTTP.Status.Code)
}

func TestJSONHTTPEventCloneIsIndependent(t *testing.T) {
	e := NewJSONHTTPEvent(map[string]any{})
	e.HTTP.Headers.Set("X-Trace", "abc")
	clone := e.Clone().(*JSONHTTPEvent)
	clone.HTTP.Headers.Set("X-Trace", "xyz")
	assert.Equal(t, "abc", e.HTTP.Headers.Get("X-Trace"))
	assert.Equal(t, "xyz", clone.HTTP.Headers.Get("X-Trace"))
}

func TestDefaultEmptyForms(t *testing.T) {
	tr, err := ParseTree("")
	require.NoError(t, err)
	assert.Equal(t, "<root/>", tr.String())

	m, err := ParseMapping("")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, m)

	f, err := ParseForm("")
	require.NoError(t, err)
	assert.Empty(t, f)
}
