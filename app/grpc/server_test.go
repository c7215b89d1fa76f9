package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vibast-solutions/ms-go-club-dues/app/scheduler"
	"github.com/vibast-solutions/ms-go-club-dues/app/service"
)

func newTestScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s := scheduler.New(time.UTC)
	register := func(name string, fn scheduler.Func) {
		if err := s.Register(name, "0 6 * * *", fn); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	register(service.JobOverdueSweep, func(context.Context) (logrus.Fields, error) {
		return logrus.Fields{"processed": 3, "errors": 0, "skipped": 1}, nil
	})
	register(service.JobReminderDispatch, func(context.Context) (logrus.Fields, error) {
		return logrus.Fields{"processed": 2, "errors": 1}, errors.New("bad connection")
	})
	return s
}

func TestHealth(t *testing.T) {
	srv := NewServer(newTestScheduler(t))
	resp, err := srv.Health(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.GetFields()["status"].GetStringValue() != "ok" {
		t.Fatalf("unexpected health response: %v", resp)
	}
}

func TestRunOverdueSweepReturnsSummary(t *testing.T) {
	srv := NewServer(newTestScheduler(t))
	resp, err := srv.RunOverdueSweep(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := resp.GetFields()
	if fields["job"].GetStringValue() != service.JobOverdueSweep {
		t.Fatalf("unexpected job: %v", fields["job"])
	}
	if fields["processed"].GetNumberValue() != 3 || fields["skipped"].GetNumberValue() != 1 {
		t.Fatalf("unexpected summary: %v", fields)
	}
}

func TestRunTaskFailureKeepsPartialSummary(t *testing.T) {
	srv := NewServer(newTestScheduler(t))
	_, err := srv.RunReminderDispatch(context.Background(), &emptypb.Empty{})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}

	details := status.Convert(err).Details()
	if len(details) != 1 {
		t.Fatalf("expected one status detail, got %d", len(details))
	}
	summary, ok := details[0].(*structpb.Struct)
	if !ok {
		t.Fatalf("unexpected detail type %T", details[0])
	}
	fields := summary.GetFields()
	if fields["job"].GetStringValue() != service.JobReminderDispatch {
		t.Fatalf("unexpected job: %v", fields["job"])
	}
	if fields["processed"].GetNumberValue() != 2 || fields["errors"].GetNumberValue() != 1 {
		t.Fatalf("unexpected partial summary: %v", fields)
	}
	if fields["error"].GetStringValue() != "bad connection" {
		t.Fatalf("unexpected error field: %v", fields["error"])
	}
}

func TestRunUnregisteredTaskIsNotFound(t *testing.T) {
	srv := NewServer(newTestScheduler(t))
	_, err := srv.RunMonthlyGeneration(context.Background(), &emptypb.Empty{})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestListTasks(t *testing.T) {
	srv := NewServer(newTestScheduler(t))
	resp, err := srv.ListTasks(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tasks := resp.GetFields()["tasks"].GetListValue().GetValues()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	first := tasks[0].GetStructValue().GetFields()
	if first["name"].GetStringValue() != service.JobOverdueSweep || !first["enabled"].GetBoolValue() {
		t.Fatalf("unexpected first task: %v", first)
	}
	if first["next"].GetStringValue() == "" {
		t.Fatal("expected next firing time")
	}
}

func TestAdminServiceOverTheWire(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoveryInterceptor(),
		RequestIDInterceptor(),
		LoggingInterceptor(),
	))
	RegisterAdminServiceServer(grpcSrv, NewServer(newTestScheduler(t)))
	go func() { _ = grpcSrv.Serve(lis) }()
	defer grpcSrv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := new(structpb.Struct)
	err = conn.Invoke(ctx, "/clubdues.AdminService/Health", &emptypb.Empty{}, out)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument without request id, got %v", err)
	}

	ctx = metadata.AppendToOutgoingContext(ctx, requestIDHeader, "grpc-req-1")
	if err := conn.Invoke(ctx, "/clubdues.AdminService/RunOverdueSweep", &emptypb.Empty{}, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.GetFields()["processed"].GetNumberValue() != 3 {
		t.Fatalf("unexpected summary: %v", out)
	}
}
