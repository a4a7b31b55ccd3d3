package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rzbill/spool/internal/codec"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// adminStub records requests and serves canned admin API responses.
type adminStub struct {
	mu       sync.Mutex
	requests []string
	records  []codec.Record
}

func (s *adminStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/groups", func(w http.ResponseWriter, r *http.Request) {
		s.log(r)
		_ = json.NewEncoder(w).Encode(map[string]any{"groups": []groupCount{{"default", 3}, {"audit", 0}}})
	})
	mux.HandleFunc("GET /v1/groups/{group}/count", func(w http.ResponseWriter, r *http.Request) {
		s.log(r)
		_ = json.NewEncoder(w).Encode(groupCount{Group: r.PathValue("group"), Count: 7})
	})
	mux.HandleFunc("POST /v1/groups/{group}/records", func(w http.ResponseWriter, r *http.Request) {
		s.log(r)
		var rec codec.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.records = append(s.records, rec)
		s.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("POST /v1/groups/{group}/flush", func(w http.ResponseWriter, r *http.Request) {
		s.log(r)
		if r.PathValue("group") == "down" {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]any{"sent": 0, "error": "upstream unavailable"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"sent": 5})
	})
	mux.HandleFunc("DELETE /v1/groups/{group}", func(w http.ResponseWriter, r *http.Request) {
		s.log(r)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /v1/records", func(w http.ResponseWriter, r *http.Request) {
		s.log(r)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (s *adminStub) log(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func newStub(t *testing.T) (*adminStub, BaseURLFunc) {
	t.Helper()
	stub := &adminStub{}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return stub, func() string { return srv.URL }
}

func TestCountPrintsNumber(t *testing.T) {
	_, base := newStub(t)
	out, err := run(t, NewRoot(base), "count", "default")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out) != "7" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestGroupsPrintsTable(t *testing.T) {
	_, base := newStub(t)
	out, err := run(t, NewRoot(base), "groups")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "GROUP") || !strings.Contains(out, "default") || !strings.Contains(out, "audit") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestPutSendsRecord(t *testing.T) {
	stub, base := newStub(t)
	out, err := run(t, NewRoot(base), "put", "default", "--type", "event", "--payload", "hi", "--attr", "source=cli")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "status:") {
		t.Fatalf("expected status in output, got: %s", out)
	}
	if len(stub.records) != 1 {
		t.Fatalf("records: %d", len(stub.records))
	}
	rec := stub.records[0]
	if rec.Type != "event" || string(rec.Payload) != "hi" || rec.Attributes["source"] != "cli" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestPutRequiresType(t *testing.T) {
	stub, base := newStub(t)
	if _, err := run(t, NewRoot(base), "put", "default"); err == nil {
		t.Fatalf("expected error without --type")
	}
	if len(stub.requests) != 0 {
		t.Fatalf("request sent: %v", stub.requests)
	}
}

func TestFlushReportsUpstreamError(t *testing.T) {
	_, base := newStub(t)
	out, err := run(t, NewRoot(base), "flush", "default")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, `"sent":5`) {
		t.Fatalf("unexpected output: %q", out)
	}

	_, err = run(t, NewRoot(base), "flush", "down")
	var apiErr *apiError
	if err == nil || !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 api error, got %v", err)
	}
	if !strings.Contains(apiErr.Error(), "upstream unavailable") {
		t.Fatalf("message lost: %v", apiErr)
	}
}

func TestDestructiveCommandsNeedConfirm(t *testing.T) {
	stub, base := newStub(t)
	if _, err := run(t, NewRoot(base), "purge", "default"); err == nil {
		t.Fatalf("purge without --confirm must fail")
	}
	if _, err := run(t, NewRoot(base), "clear"); err == nil {
		t.Fatalf("clear without --confirm must fail")
	}
	if _, err := run(t, NewRoot(base), "purge", "default", "--confirm"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := run(t, NewRoot(base), "clear", "--confirm"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	want := []string{"DELETE /v1/groups/default", "DELETE /v1/records"}
	if strings.Join(stub.requests, ",") != strings.Join(want, ",") {
		t.Fatalf("requests: %v", stub.requests)
	}
}

func startHealthServer(t *testing.T, status healthpb.HealthCheckResponse_ServingStatus) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", status)
	healthpb.RegisterHealthServer(s, hs)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)
	return lis.Addr().String()
}

func TestHealthCommand(t *testing.T) {
	t.Setenv("SPOOL_GRPC", startHealthServer(t, healthpb.HealthCheckResponse_SERVING))
	out, err := run(t, newHealthCommand())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "SERVING") {
		t.Fatalf("unexpected output: %q", out)
	}

	t.Setenv("SPOOL_GRPC", startHealthServer(t, healthpb.HealthCheckResponse_NOT_SERVING))
	if _, err := run(t, newHealthCommand()); err == nil {
		t.Fatalf("expected error for NOT_SERVING")
	}
}
