package wsserver_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gmliao/landsync/internal/snapshot"
	"github.com/gmliao/landsync/internal/syncengine"
	"github.com/gmliao/landsync/internal/wsserver"
)

func TestHubSendsUpdateToConnectedViewer(t *testing.T) {
	hub := wsserver.NewHub(wsserver.HubOptions{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := hub.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hub.Stop()

	url := "ws" + strings.TrimPrefix(hub.URL(), "ws") + "?viewer=alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !hub.IsConnected("alice") {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for hub to register the connection")
		}
		time.Sleep(10 * time.Millisecond)
	}

	upd := syncengine.Update{
		Kind:    syncengine.KindDiff,
		Patches: []snapshot.Patch{{Path: snapshot.NewPath("round"), Op: snapshot.OpSet, Value: snapshot.Int(1)}},
	}
	if err := hub.Send("alice", upd); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"diff"`) {
		t.Fatalf("unexpected frame: %s", data)
	}
}

func TestHubSendToUnknownViewerFails(t *testing.T) {
	hub := wsserver.NewHub(wsserver.HubOptions{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := hub.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hub.Stop()

	err := hub.Send("ghost", syncengine.Update{Kind: syncengine.KindNoChange})
	if err == nil {
		t.Fatal("expected an error sending to a viewer with no connection")
	}
}
