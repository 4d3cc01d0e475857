//go:build integration

package natsutil

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func natsURL() string {
	if v := os.Getenv("NATS_URL"); v != "" {
		return v
	}
	return nats.DefaultURL
}

func connectNATS(t *testing.T) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(natsURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	t.Cleanup(func() { nc.Close() })
	return nc
}

func TestNATS_Publish(t *testing.T) {
	nc := connectNATS(t)

	type msg struct {
		OEM string `json:"oem"`
	}

	sub, err := nc.SubscribeSync("integ.parts")
	if err != nil {
		t.Fatalf("SubscribeSync: %v", err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, "integ.parts", msg{OEM: "11428576524"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	m, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("timeout waiting for message: %v", err)
	}
	var got msg
	if err := json.Unmarshal(m.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.OEM != "11428576524" {
		t.Fatalf("expected 11428576524, got %q", got.OEM)
	}
}
