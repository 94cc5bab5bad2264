package webhooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookd/pkg/errors"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("test-receiver", testFactory))

	recv, err := r.Get("test-receiver")
	require.NoError(t, err)
	assert.Equal(t, "test-receiver", recv.ID())
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("test-receiver", testFactory))

	err := r.Register("test-receiver", testFactory)
	assert.ErrorIs(t, err, errors.ErrDuplicateReceiver)
}

func TestRegistry_Unregister_FreesID(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("test-receiver", testFactory))
	require.NoError(t, r.Unregister("test-receiver"))

	_, err := r.Get("test-receiver")
	assert.ErrorIs(t, err, errors.ErrReceiverNotFound)

	assert.NoError(t, r.Register("test-receiver", testFactory))
}

func TestRegistry_Unregister_Unknown(t *testing.T) {
	r := NewRegistry()

	err := r.Unregister("missing")
	assert.ErrorIs(t, err, errors.ErrUnknownReceiver)
}

func TestRegistry_Get_Unknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, errors.ErrReceiverNotFound)
}

func TestRegistry_Load(t *testing.T) {
	r := NewRegistry()

	err := r.Load(map[string]Factory{
		"first":  testFactory,
		"second": testFactory,
	})
	require.NoError(t, err)

	for _, id := range []string{"first", "second"} {
		recv, err := r.Get(id)
		require.NoError(t, err)
		assert.Equal(t, id, recv.ID())
	}
}
