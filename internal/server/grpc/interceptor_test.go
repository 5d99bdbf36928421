package grpc

import (
	"context"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/contactkeeper/internal/logging"
)

type recordingLogger struct {
	nopLogger
	mu   *sync.Mutex
	args *[][]any
}

func newRecordingLogger() recordingLogger {
	return recordingLogger{mu: &sync.Mutex{}, args: &[][]any{}}
}

func (r recordingLogger) Debug(_ context.Context, _ string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.args = append(*r.args, args)
}

func (r recordingLogger) With(...any) logging.Logger { return r }

func argValue(args []any, key string) any {
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == key {
			return args[i+1]
		}
	}
	return nil
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	rec := newRecordingLogger()
	s := NewHealthServer("", rec)

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}

	resp, err := s.loggingInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
	if len(*rec.args) != 1 {
		t.Fatalf("expected one log entry, got %d", len(*rec.args))
	}
	if got := argValue((*rec.args)[0], "method"); got != info.FullMethod {
		t.Fatalf("method = %v", got)
	}
	if got := argValue((*rec.args)[0], "code"); got != codes.OK.String() {
		t.Fatalf("code = %v", got)
	}
}

func TestLoggingInterceptor_RecordsErrorCode(t *testing.T) {
	rec := newRecordingLogger()
	s := NewHealthServer("", rec)

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	}

	_, err := s.loggingInterceptor(context.Background(), nil, info, h)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", status.Code(err))
	}
	if got := argValue((*rec.args)[0], "code"); got != codes.NotFound.String() {
		t.Fatalf("code = %v", got)
	}
}
