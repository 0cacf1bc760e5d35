package wechat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBridgeClientListMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chats/家庭账本/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[
			{"type":"time","content":"10:30"},
			{"type":"friend","sender":"wxid_a","sender_remark":"老婆","content":"午饭 20"},
			{"type":"self","sender":"me","content":"✅ 记账成功！"}
		]}`))
	}))
	defer srv.Close()

	c := NewBridgeClient(srv.URL, 5*time.Second)
	recs, err := c.ListMessages(context.Background(), "家庭账本")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].Kind != KindTimeMarker {
		t.Errorf("recs[0].Kind = %q, want time-marker", recs[0].Kind)
	}
	if recs[1].Kind != KindCounterpart || recs[1].SenderRemark != "老婆" {
		t.Errorf("recs[1] = %+v", recs[1])
	}
	if recs[2].Kind != KindSelf {
		t.Errorf("recs[2].Kind = %q, want self", recs[2].Kind)
	}
}

func TestBridgeClientListMessages_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "window not found", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewBridgeClient(srv.URL, 5*time.Second)
	if _, err := c.ListMessages(context.Background(), "账本"); err == nil {
		t.Error("expected error on 500")
	}
}

func TestBridgeClientSendMessage(t *testing.T) {
	t.Run("success ignores driver return value", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", r.Method)
			}
			// The automation library returns false even on sends that went
			// through; a 200 with that body must still count as success.
			w.Write([]byte(`{"result":false}`))
		}))
		defer srv.Close()

		c := NewBridgeClient(srv.URL, 5*time.Second)
		if err := c.SendMessage(context.Background(), "账本", "hello"); err != nil {
			t.Errorf("SendMessage: %v", err)
		}
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "automation fault", http.StatusBadGateway)
		}))
		defer srv.Close()

		c := NewBridgeClient(srv.URL, 5*time.Second)
		if err := c.SendMessage(context.Background(), "账本", "hello"); err == nil {
			t.Error("expected error on 502")
		}
	})

	t.Run("transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // closed before use

		c := NewBridgeClient(srv.URL, time.Second)
		if err := c.SendMessage(context.Background(), "账本", "hello"); err == nil {
			t.Error("expected error against closed server")
		}
	})
}

func TestBridgeClientPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewBridgeClient(srv.URL+"/", 5*time.Second) // trailing slash trimmed
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
