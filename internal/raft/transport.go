package raft

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.etcd.io/etcd/raft/v3/raftpb"
	"go.uber.org/zap"
)

// HTTPTransport ships raft messages between peers over plain HTTP POSTs.
type HTTPTransport struct {
	mu    sync.RWMutex
	peers map[uint64]string // ID -> URL (http://ip:port)
	log   *zap.Logger
}

func NewHTTPTransport(logger *zap.Logger) *HTTPTransport {
	return &HTTPTransport{
		peers: make(map[uint64]string),
		log:   logger,
	}
}

func (t *HTTPTransport) AddPeer(id uint64, url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[id] = url
}

func (t *HTTPTransport) SetPeers(peers map[uint64]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers = peers
}

func (t *HTTPTransport) Send(msgs []raftpb.Message) {
	for _, msg := range msgs {
		// Send async so a down or slow peer cannot stall the raft loop.
		go func(m raftpb.Message) {
			t.mu.RLock()
			url, ok := t.peers[m.To]
			t.mu.RUnlock()

			if !ok {
				return // Unknown peer
			}

			data, err := m.Marshal()
			if err != nil {
				t.log.Error("failed to marshal raft msg", zap.Error(err))
				return
			}

			client := http.Client{Timeout: 500 * time.Millisecond}
			fullURL := url
			if !strings.HasSuffix(fullURL, "/raft") {
				fullURL += "/raft"
			}
			resp, err := client.Post(fullURL, "application/octet-stream", bytes.NewReader(data))
			if err != nil {
				return
			}
			resp.Body.Close()
		}(msg)
	}
}

// Handler returns an http.Handler that steps incoming messages into the
// node.
func (t *HTTPTransport) Handler(node *Node) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		var msg raftpb.Message
		if err := msg.Unmarshal(data); err != nil {
			http.Error(w, "Invalid protobuf", http.StatusBadRequest)
			return
		}

		if err := node.Step(r.Context(), msg); err != nil {
			t.log.Warn("raft step failed", zap.Error(err))
		}
	}
}
