package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	t.Run("AppendAndRead", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.db")
		s, err := OpenFile(path)
		require.NoError(t, err)
		defer s.Close()

		a1, err := s.Append([]byte("hello"))
		require.NoError(t, err)
		a2, err := s.Append([]byte("world!"))
		require.NoError(t, err)

		assert.Equal(t, int64(0), a1.Offset)
		assert.Equal(t, int64(5), a2.Offset)
		assert.Equal(t, int64(11), s.Size())

		buf, err := s.Read(a1)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), buf)

		buf, err = s.Read(a2)
		require.NoError(t, err)
		assert.Equal(t, []byte("world!"), buf)
	})

	t.Run("ReadOutOfRange", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.db")
		s, err := OpenFile(path)
		require.NoError(t, err)
		defer s.Close()

		_, err = s.Append([]byte("hello"))
		require.NoError(t, err)

		_, err = s.Read(Address{Offset: 0, Length: 100})
		require.ErrorIs(t, err, ErrCorruptData)

		_, err = s.Read(Address{Offset: -1, Length: 1})
		require.ErrorIs(t, err, ErrCorruptData)
	})

	t.Run("Reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.db")
		s, err := OpenFile(path)
		require.NoError(t, err)

		addr, err := s.Append([]byte("persist me"))
		require.NoError(t, err)
		require.NoError(t, s.Close())

		s, err = OpenFile(path)
		require.NoError(t, err)
		defer s.Close()

		buf, err := s.Read(addr)
		require.NoError(t, err)
		assert.Equal(t, []byte("persist me"), buf)
	})

	t.Run("SecondOpenFailsLocked", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.db")
		s, err := OpenFile(path)
		require.NoError(t, err)
		defer s.Close()

		_, err = OpenFile(path)
		require.ErrorIs(t, err, ErrDatabaseLocked)
	})

	t.Run("LockReleasedOnClose", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.db")
		s, err := OpenFile(path)
		require.NoError(t, err)
		require.NoError(t, s.Close())

		s2, err := OpenFile(path)
		require.NoError(t, err)
		require.NoError(t, s2.Close())
	})

	t.Run("ClosedStore", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.db")
		s, err := OpenFile(path)
		require.NoError(t, err)

		addr, err := s.Append([]byte("x"))
		require.NoError(t, err)
		require.NoError(t, s.Close())

		_, err = s.Read(addr)
		require.ErrorIs(t, err, ErrClosed)
		_, err = s.Append([]byte("y"))
		require.ErrorIs(t, err, ErrClosed)
	})

	t.Run("MmapReadPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.db")
		s, err := OpenFile(path, func(o *Options) { o.Mmap = true })
		require.NoError(t, err)
		defer s.Close()

		addr, err := s.Append([]byte("mapped"))
		require.NoError(t, err)
		require.NoError(t, s.Sync())

		buf, err := s.Read(addr)
		require.NoError(t, err)
		assert.Equal(t, []byte("mapped"), buf)
	})
}

func TestMemoryStore(t *testing.T) {
	t.Run("AppendAndRead", func(t *testing.T) {
		s := NewMemoryStore()

		addr, err := s.Append([]byte("hello"))
		require.NoError(t, err)

		buf, err := s.Read(addr)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), buf)
	})

	t.Run("ReadIsACopy", func(t *testing.T) {
		s := NewMemoryStore()
		addr, err := s.Append([]byte("hello"))
		require.NoError(t, err)

		buf, _ := s.Read(addr)
		buf[0] = 'X'

		buf2, err := s.Read(addr)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), buf2)
	})

	t.Run("Corrupt", func(t *testing.T) {
		s := NewMemoryStore()
		addr, err := s.Append([]byte("hello"))
		require.NoError(t, err)

		s.Corrupt(addr.Offset)

		buf, err := s.Read(addr)
		require.NoError(t, err)
		assert.NotEqual(t, []byte("hello"), buf)
	})
}
