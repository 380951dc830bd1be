package httpx

import (
	"net/http"
	"testing"
	"time"
)

func TestNewClient_DefaultTimeoutAndTransport(t *testing.T) {
	client := NewClient(0)
	if client.Timeout != defaultClientTimeout {
		t.Fatalf("timeout = %v, want %v", client.Timeout, defaultClientTimeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport type = %T, want *http.Transport", client.Transport)
	}
	if transport.MaxIdleConns != defaultMaxIdleConns {
		t.Fatalf("MaxIdleConns = %d, want %d", transport.MaxIdleConns, defaultMaxIdleConns)
	}
	if !transport.DisableCompression {
		t.Fatal("transparent compression must be disabled")
	}
}

func TestNewClient_CapsDialAndHeaderTimeouts(t *testing.T) {
	client := NewClient(10 * time.Second)
	transport := client.Transport.(*http.Transport)
	if transport.TLSHandshakeTimeout != defaultDialTimeout {
		t.Fatalf("TLSHandshakeTimeout = %v, want %v", transport.TLSHandshakeTimeout, defaultDialTimeout)
	}
	if transport.ResponseHeaderTimeout != defaultResponseHeaderTimeout {
		t.Fatalf("ResponseHeaderTimeout = %v, want %v", transport.ResponseHeaderTimeout, defaultResponseHeaderTimeout)
	}
}

func TestNewClient_UsesShortTimeoutAsProvided(t *testing.T) {
	want := 1500 * time.Millisecond
	client := NewClient(want)
	transport := client.Transport.(*http.Transport)
	if client.Timeout != want {
		t.Fatalf("timeout = %v, want %v", client.Timeout, want)
	}
	if transport.TLSHandshakeTimeout != want {
		t.Fatalf("TLSHandshakeTimeout = %v, want %v", transport.TLSHandshakeTimeout, want)
	}
	if transport.ResponseHeaderTimeout != want {
		t.Fatalf("ResponseHeaderTimeout = %v, want %v", transport.ResponseHeaderTimeout, want)
	}
}

func TestNewClientWithTimeouts(t *testing.T) {
	client := NewClientWithTimeouts(Timeouts{Connect: 2 * time.Second, Header: 20 * time.Second, Total: 2 * time.Minute})
	transport := client.Transport.(*http.Transport)
	if client.Timeout != 2*time.Minute {
		t.Fatalf("timeout = %v", client.Timeout)
	}
	if transport.TLSHandshakeTimeout != 2*time.Second {
		t.Fatalf("TLSHandshakeTimeout = %v", transport.TLSHandshakeTimeout)
	}
	if transport.ResponseHeaderTimeout != 20*time.Second {
		t.Fatalf("ResponseHeaderTimeout = %v", transport.ResponseHeaderTimeout)
	}
}

func TestTraced(t *testing.T) {
	client := Traced(NewClient(time.Second))
	if _, ok := client.Transport.(*http.Transport); ok {
		t.Fatal("transport was not wrapped")
	}
	if client.Transport == nil {
		t.Fatal("transport must not be nil")
	}
}
