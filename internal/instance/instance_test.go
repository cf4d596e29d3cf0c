package instance

import (
	"os"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
)

func TestAcquire_ExcludesSecondHolder(t *testing.T) {
	// Given: a held lock
	dir := t.TempDir()
	l, err := Acquire(dir)
	require.NoError(t, err)
	defer func() { _ = l.Release() }()

	// When: a second acquire is attempted
	_, err = Acquire(dir)

	// Then: it fails as already running and names the holder
	require.Error(t, err)
	assert.Equal(t, fierrors.ErrCodeAlreadyRunning, fierrors.GetCode(err))
	var ie *fierrors.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, strconv.Itoa(os.Getpid()), ie.Details["pid"])
}

func TestProbe_ReportsHolderPID(t *testing.T) {
	dir := t.TempDir()
	st, err := Probe(dir)
	require.NoError(t, err)
	assert.False(t, st.Running)

	l, err := Acquire(dir)
	require.NoError(t, err)

	st, err = Probe(dir)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, os.Getpid(), st.PID)

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())
	st, err = Probe(dir)
	require.NoError(t, err)
	assert.False(t, st.Running)

	_, err = os.Stat(PIDPath(dir))
	assert.True(t, os.IsNotExist(err))
}

func TestProbe_IgnoresStalePIDFile(t *testing.T) {
	// Given: a PID file with no lock holder
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(PIDPath(dir), []byte("999999"), 0o644))
	require.NoError(t, os.WriteFile(LockPath(dir), nil, 0o644))

	// When: probing
	st, err := Probe(dir)

	// Then: nothing is running
	require.NoError(t, err)
	assert.False(t, st.Running)
}

func TestStop_WithoutWatcher(t *testing.T) {
	_, err := Stop(t.TempDir(), syscall.SIGTERM)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStop_SignalsHolder(t *testing.T) {
	// Given: this process holds the lock
	dir := t.TempDir()
	l, err := Acquire(dir)
	require.NoError(t, err)
	defer func() { _ = l.Release() }()

	// When: sending signal 0, which only checks the process exists
	pid, err := Stop(dir, syscall.Signal(0))

	// Then: the holder's PID is returned
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_ReadErrors(t *testing.T) {
	dir := t.TempDir()
	p := NewPIDFile(dir + "/x.pid")

	_, err := p.Read()
	assert.ErrorIs(t, err, ErrPIDFileNotFound)

	require.NoError(t, os.WriteFile(p.Path(), []byte("not-a-pid"), 0o644))
	_, err = p.Read()
	assert.ErrorContains(t, err, "invalid PID")

	require.NoError(t, p.Remove())
	require.NoError(t, p.Remove())
}
