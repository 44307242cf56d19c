package reno

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSocketReadyPing(t *testing.T) {
	dir := t.TempDir()

	server, err := bindInitSocket(dir)
	require.NoError(t, err)
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- server.WaitReady() }()

	require.NoError(t, connectInitSocket(dir))
	require.NoError(t, <-done)
}

func TestContainerSocketPhaseBarrier(t *testing.T) {
	dir := t.TempDir()

	server, err := bindContainerSocket(dir)
	require.NoError(t, err)
	defer server.Close()

	client := dialContainerSocket(dir)

	resultC := make(chan Message, 1)
	errC := make(chan error, 1)
	go func() {
		conn, err := server.AwaitCLI()
		if err != nil {
			errC <- err
			return
		}
		errC <- conn.Send(Message{Status: "created"})
	}()

	go func() {
		msg, err := client.ReadPhase()
		if err != nil {
			errC <- err
			return
		}
		resultC <- msg
	}()

	require.NoError(t, <-errC)
	msg := <-resultC
	assert.Equal(t, "created", msg.Status)
	assert.Nil(t, msg.Error)
}

func TestErrMessage(t *testing.T) {
	msg := errMessage("stopped", nil)
	assert.Equal(t, "stopped", msg.Status)
	assert.Nil(t, msg.Error)

	msg = errMessage("stopped", assert.AnError)
	require.NotNil(t, msg.Error)
	assert.Equal(t, assert.AnError.Error(), *msg.Error)
}
