package schema

import (
	"bytes"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/attest/errs"
	"xdao.co/attest/event"
	"xdao.co/attest/record"
	"xdao.co/attest/uid"
)

var testResolver = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func TestRegister_ReturnsDerivedUID(t *testing.T) {
	log := event.NewLog()
	r := NewRegistry(WithSink(log))

	id, err := r.Register("bool isFriend", record.NoResolver, true)
	require.NoError(t, err)
	assert.Equal(t, uid.Schema("bool isFriend", record.NoResolver, true), id)

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "bool isFriend", got.Schema)
	assert.True(t, got.Revocable)
	assert.False(t, got.HasResolver())

	events := log.Events()
	require.Len(t, events, 1)
	assert.Equal(t, event.Event{Type: event.SchemaRegistered, UID: id}, events[0])
}

func TestRegister_DuplicateFailsAndKeepsOriginal(t *testing.T) {
	log := event.NewLog()
	r := NewRegistry(WithSink(log))

	id, err := r.Register("uint256 score", testResolver, false)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = r.Register("uint256 score", testResolver, false)
		require.ErrorIs(t, err, errs.ErrAlreadyExists)
		assert.Equal(t, "SCH-REG-001", errs.RuleID(err))
	}

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, record.Schema{UID: id, Resolver: testResolver, Revocable: false, Schema: "uint256 score"}, got)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, log.Len(), "failed registrations must not emit events")
}

func TestRegister_VariantsAreDistinct(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("uint256 score", testResolver, false)
	require.NoError(t, err)
	_, err = r.Register("uint256 score", testResolver, true)
	require.NoError(t, err)
	_, err = r.Register("uint256 score", record.NoResolver, false)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	list := r.List()
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.Negative(t, bytes.Compare(list[i-1].UID[:], list[i].UID[:]))
	}
}

func TestGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(uid.Keccak256([]byte("missing")))
	require.ErrorIs(t, err, errs.ErrNotFound)
	assert.False(t, r.Has(uid.Zero))
}

func TestRegister_ConcurrentDuplicates(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Register("string name", record.NoResolver, true); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok, "exactly one registration may win")
}
