package library

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	txIDPattern   = regexp.MustCompile(`^[a-z]{2,5}-[A-Za-z0-9]{12}$`)
	userIDPattern = regexp.MustCompile(`^[a-z]{2,5}-[0-9]{6}$`)
)

func TestNewTransactionIDFormat(t *testing.T) {
	for typ, prefix := range txPrefixes {
		id, err := NewTransactionID(typ)
		require.NoError(t, err)
		assert.Regexp(t, txIDPattern, id)
		assert.Equal(t, prefix+"-", id[:len(prefix)+1])
	}
}

func TestNewTransactionIDUsesLowercaseAlphabet(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id, err := NewTransactionID(TxCheckout)
		require.NoError(t, err)
		assert.Regexp(t, `^chk-[a-z0-9]{12}$`, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNewTransactionIDRejectsUnknownType(t *testing.T) {
	_, err := NewTransactionID(TxType("lost"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewAuditID(t *testing.T) {
	id, err := NewAuditID()
	require.NoError(t, err)
	assert.Regexp(t, txIDPattern, id)
	assert.Equal(t, "aud-", id[:4])
}

func TestNewUserID(t *testing.T) {
	for kind, prefix := range kindPrefixes {
		id, err := NewUserID(kind)
		require.NoError(t, err)
		assert.Regexp(t, userIDPattern, id)

		r, err := Resolve(id)
		require.NoError(t, err)
		assert.Equal(t, kind, r.Kind, prefix)
	}

	_, err := NewUserID(KindUnknown)
	assert.ErrorIs(t, err, ErrAbstraction)
}

func TestParseTxType(t *testing.T) {
	got, err := ParseTxType("chl")
	require.NoError(t, err)
	assert.Equal(t, TxCancelHold, got)

	got, err = ParseTxType("hold_expired")
	require.NoError(t, err)
	assert.Equal(t, TxHoldExpired, got)

	_, err = ParseTxType("aud")
	assert.ErrorIs(t, err, ErrValidation, "aud names audit entries, not transactions")
}

func TestRandomStringDeterministicSource(t *testing.T) {
	fixedIDs(t)
	a, err := NewTransactionID(TxHold)
	require.NoError(t, err)
	b, err := NewTransactionID(TxHold)
	require.NoError(t, err)
	assert.Equal(t, "hld-bbbbbbbbbbbb", a)
	assert.Equal(t, a, b)
}

// Bytes at or above the rejection limit must be skipped, not folded.
func TestRandomStringRejectsBiasedBytes(t *testing.T) {
	prev := idSource
	t.Cleanup(func() { idSource = prev })

	src := make([]byte, 0, 24)
	for i := 0; i < 12; i++ {
		src = append(src, 255) // rejected
	}
	for i := 0; i < 12; i++ {
		src = append(src, 0) // 'a'
	}
	idSource = &sliceReader{b: src}

	s, err := randomString(idAlphabet, 12)
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaaaaaa", s)
}

type sliceReader struct{ b []byte }

func (r *sliceReader) Read(p []byte) (int, error) {
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}
