package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/myuser/memberstore/internal/command"
	"github.com/myuser/memberstore/internal/metrics"
	"github.com/myuser/memberstore/internal/raft"
	"github.com/myuser/memberstore/internal/store"
)

func main() {
	id := flag.Uint64("id", 1, "Node ID")
	listen := flag.String("listen", ":9001", "HTTP listen address")
	cluster := flag.String("cluster", "", "Cluster config, e.g. 1=http://a:9001,2=http://b:9001")
	dbPath := flag.String("db", "member.db", "Path to the store's database file")
	walPath := flag.String("wal", "member.wal", "Path to the raft log file")
	snapCount := flag.Uint64("snap-count", 50, "Applied entries between snapshots")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// 1. The member's store.
	db, err := store.Open(*dbPath)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("path", *dbPath), zap.Error(err))
	}
	defer db.Close()

	// 2. Raft transport and peers.
	transport := raft.NewHTTPTransport(logger)
	peersMap := make(map[uint64]string)
	var peers []uint64
	if *cluster != "" {
		for _, part := range strings.Split(*cluster, ",") {
			kv := strings.SplitN(part, "=", 2)
			if len(kv) != 2 {
				logger.Fatal("bad cluster entry", zap.String("entry", part))
			}
			pid, err := strconv.ParseUint(kv[0], 10, 64)
			if err != nil {
				logger.Fatal("bad peer id", zap.String("entry", part), zap.Error(err))
			}
			peersMap[pid] = kv[1]
			peers = append(peers, pid)
		}
	} else {
		peers = []uint64{*id}
	}
	transport.SetPeers(peersMap)

	// 3. The applier bridging raft to the store.
	applier := command.NewApplier(db, logger)

	// 4. Raft node.
	node, err := raft.NewNode(raft.Config{
		ID:        *id,
		Peers:     peers,
		WALPath:   *walPath,
		SnapCount: *snapCount,
	}, applier, transport, logger)
	if err != nil {
		logger.Fatal("failed to start raft node", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go node.Run(ctx)

	// 5. HTTP surface.
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", metrics.Handler)
	mux.HandleFunc("/raft", transport.Handler(node))

	// Mutations enter through the replicated log.
	mux.HandleFunc("/exec", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		cmd, err := command.Decode(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := command.Validate(cmd); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := node.Propose(r.Context(), body); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		metrics.Inc("proposals")
		w.WriteHeader(http.StatusAccepted)
	})

	// Reads run against the local store; they may trail the leader.
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		sqlText := r.URL.Query().Get("sql")
		if sqlText == "" {
			body, _ := io.ReadAll(r.Body)
			sqlText = string(body)
		}
		if err := command.ValidateQuery(sqlText); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, err := runQuery(applier, sqlText)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		metrics.Inc("queries")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	})

	// The latest archived snapshot, for lagging followers and operators.
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		latest, ok := node.Archive.Latest()
		if !ok {
			http.Error(w, "no snapshot yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Raft-Index", fmt.Sprintf("%d", latest.Index))
		w.Write(latest.Data)
	})

	server := &http.Server{Addr: *listen, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("member node up",
		zap.Uint64("id", *id),
		zap.String("listen", *listen),
		zap.String("db", *dbPath))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

type queryResult struct {
	Columns []string              `json:"columns"`
	Rows    [][]command.WireValue `json:"rows"`
}

func runQuery(applier *command.Applier, sqlText string) (*queryResult, error) {
	result := &queryResult{}
	err := applier.WithStore(func(db *store.DB) error {
		statement, err := db.BuildStatement(sqlText)
		if err != nil {
			return err
		}
		defer statement.Close()
		for i := 0; i < statement.ColumnCount(); i++ {
			result.Columns = append(result.Columns, statement.ColumnName(i))
		}
		for {
			done, err := statement.Step()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			row := make([]command.WireValue, len(result.Columns))
			for i := range result.Columns {
				value, err := statement.ColumnValue(i)
				if err != nil {
					return err
				}
				row[i] = command.FromValue(value)
			}
			result.Rows = append(result.Rows, row)
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
