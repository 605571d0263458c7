package ws

import (
	"testing"
	"time"
)

// TestWritePump_ExitsAfterSendClosed verifies that writePump (started by
// newClient) returns and closes the underlying connection once its send
// channel is closed, which is how RemoveClient signals a client's write
// loop to stop.
func TestWritePump_ExitsAfterSendClosed(t *testing.T) {
	srv, serverConn := dialTestWS(t)
	defer srv.Close()

	c := newClient(serverConn)
	c.close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, err := serverConn.NextReader(); err != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("connection was not closed after send channel closed")
}
