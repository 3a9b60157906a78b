package kvs

import "testing"

func TestOpen_ValidURL_ReturnsClient(t *testing.T) {
	client, err := Open("redis://localhost:6379/0")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	client.Close()
}

func TestOpen_InvalidURL_ReturnsError(t *testing.T) {
	_, err := Open("not-a-redis-url")
	if err == nil {
		t.Fatal("expected error for invalid redis URL")
	}
}
