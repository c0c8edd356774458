package circular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrodb/redolog/logio"
)

func TestAppendWithinBoundsDoesNotWrap(t *testing.T) {
	f := logio.NewMemFile(1024)
	d := New(f, 1024, 0, true)

	pos, seq, err := d.Append([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pos)
	assert.True(t, seq)

	gotPos, gotSeq := d.Position()
	assert.Equal(t, uint64(5), gotPos)
	assert.True(t, gotSeq)
	assert.Equal(t, "hello", string(f.Bytes()[0:5]))
}

func TestAppendWrapsAndFlipsSequenceBit(t *testing.T) {
	f := logio.NewMemFile(10)
	d := New(f, 10, 8, true)

	pos, seq, err := d.Append([]byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, uint64(8), pos)
	assert.True(t, seq)

	gotPos, gotSeq := d.Position()
	assert.Equal(t, uint64(2), gotPos)
	assert.False(t, gotSeq, "sequence bit should flip after a wrap")

	all := f.Bytes()
	assert.Equal(t, "ab", string(all[8:10]))
	assert.Equal(t, "cd", string(all[0:2]))
}

func TestAppendExactlyFillingTileAlsoFlips(t *testing.T) {
	f := logio.NewMemFile(8)
	d := New(f, 8, 0, false)

	_, _, err := d.Append([]byte("1234"))
	require.NoError(t, err)
	_, _, err = d.Append([]byte("5678"))
	require.NoError(t, err)
	pos, seq := d.Position()
	assert.Equal(t, uint64(0), pos)
	assert.True(t, seq)
}

func TestAppendRejectsSpanAsLargeAsFile(t *testing.T) {
	f := logio.NewMemFile(4)
	d := New(f, 4, 0, true)
	_, _, err := d.Append([]byte("abcd"))
	require.Error(t, err)
	var tooLarge *ErrSpanTooLarge
	assert.ErrorAs(t, err, &tooLarge)
}

func TestAppendCheckpointDurableAdvancesTail(t *testing.T) {
	data := logio.NewMemFile(1024)
	d := New(data, 1024, 0, true)
	main := logio.NewMemFile(4096)

	tail, err := d.AppendCheckpointDurable(main, 512, 42)
	require.NoError(t, err)
	assert.Greater(t, tail, uint64(512))
}
