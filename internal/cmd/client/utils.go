package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// grpcAddrFromEnv returns the gRPC server address from SPOOL_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("SPOOL_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:9090"
}

// dialGRPC creates a client for the spool gRPC endpoint with insecure
// transport for local/dev.
func dialGRPC() (*grpc.ClientConn, error) {
	return grpc.NewClient(grpcAddrFromEnv(), grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// withHealthClient provides a Health client and ensures the connection is closed.
func withHealthClient(fn func(healthpb.HealthClient) error) error {
	conn, err := dialGRPC()
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return fn(healthpb.NewHealthClient(conn))
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// apiError is a non-2xx response from the admin API.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spool: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("spool: %d: %s", e.Status, e.Message)
}

// callAPI sends body as JSON and decodes the response into out when both
// are non-nil.
func callAPI(ctx context.Context, baseURL, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(baseURL, "/")+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &apiError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
