// internal/webhook/dispatcher_test.go
package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holoworlds/tradingmonitor/internal/model"
)

func TestSend_PostsJSONBody(t *testing.T) {
	received := make(chan model.Order, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}
		var o model.Order
		if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		received <- o
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL)
	d.Send(model.Order{Symbol: "BTCUSDT", Action: "buy", Position: "long"})

	select {
	case o := <-received:
		if o.Symbol != "BTCUSDT" {
			t.Fatalf("expected symbol BTCUSDT, got %s", o.Symbol)
		}
	default:
		t.Fatalf("expected server to receive a request")
	}
}

func TestSend_EmptyURLNoops(t *testing.T) {
	d := NewDispatcher("")
	d.Send(model.Order{Symbol: "BTCUSDT"}) // must not panic or block
}

func TestSend_ServerErrorDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL)
	d.Send(model.Order{Symbol: "ETHUSDT"})
}
