package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name string
}

func (f *fakeProvider) Name() string                                 { return f.name }
func (f *fakeProvider) Models(context.Context) ([]string, error)     { return nil, nil }
func (f *fakeProvider) Chat(context.Context, ChatRequest) (<-chan ChatEvent, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	Reset()
	defer Reset()

	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}

	Register(a)
	Register(b)

	got, ok := Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	// First registered becomes the default.
	assert.Same(t, a, Default())

	require.True(t, SetDefault("b"))
	assert.Same(t, b, Default())
	assert.False(t, SetDefault("missing"))

	assert.Equal(t, []string{"a", "b"}, List())
}

func TestNewUnknownFactory(t *testing.T) {
	Reset()
	defer Reset()

	_, err := New("no-such-provider", nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestFactoryBuildsAndRegisters(t *testing.T) {
	Reset()
	defer Reset()

	RegisterFactory("fake", func(cfg map[string]any) (Provider, error) {
		return &fakeProvider{name: "fake"}, nil
	})

	p, err := New("fake", nil)
	require.NoError(t, err)

	got, ok := Get("fake")
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Same(t, p, Default())
}

func TestToolCallArgumentsMap(t *testing.T) {
	tc := ToolCall{Arguments: `{"path":"a.txt","count":2}`}
	m, err := tc.ArgumentsMap()
	require.NoError(t, err)
	assert.Equal(t, "a.txt", m["path"])
	assert.EqualValues(t, 2, m["count"])

	empty := ToolCall{}
	m, err = empty.ArgumentsMap()
	require.NoError(t, err)
	assert.Empty(t, m)

	bad := ToolCall{Arguments: "{"}
	_, err = bad.ArgumentsMap()
	assert.Error(t, err)
}
