package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-club-dues/app/scheduler"
	"github.com/vibast-solutions/ms-go-club-dues/app/service"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const adminServiceName = "clubdues.AdminService"

// AdminServiceServer is the internal operations surface. Messages are
// protobuf well-known types so no generated code is needed.
type AdminServiceServer interface {
	Health(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListTasks(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	RunOverdueSweep(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	RunReminderDispatch(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	RunMonthlyGeneration(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

type adminMethod func(AdminServiceServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)

func unaryHandler(name string, call adminMethod) grpc.MethodDesc {
	fullMethod := "/" + adminServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(emptypb.Empty)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AdminServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(AdminServiceServer), ctx, req.(*emptypb.Empty))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Health", AdminServiceServer.Health),
		unaryHandler("ListTasks", AdminServiceServer.ListTasks),
		unaryHandler("RunOverdueSweep", AdminServiceServer.RunOverdueSweep),
		unaryHandler("RunReminderDispatch", AdminServiceServer.RunReminderDispatch),
		unaryHandler("RunMonthlyGeneration", AdminServiceServer.RunMonthlyGeneration),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clubdues/admin.proto",
}

func RegisterAdminServiceServer(registrar grpc.ServiceRegistrar, srv AdminServiceServer) {
	registrar.RegisterService(&AdminServiceDesc, srv)
}

type Server struct {
	scheduler *scheduler.Scheduler
}

func NewServer(s *scheduler.Scheduler) *Server {
	return &Server{scheduler: s}
}

func (s *Server) Health(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{"status": "ok"})
}

func (s *Server) ListTasks(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	tasks := make([]interface{}, 0)
	for _, info := range s.scheduler.Tasks() {
		item := map[string]interface{}{
			"name":    info.Name,
			"spec":    info.Spec,
			"enabled": info.Enabled,
			"running": info.Running,
		}
		if !info.Next.IsZero() {
			item["next"] = info.Next.UTC().Format(time.RFC3339)
		}
		if info.LastError != "" {
			item["last_error"] = info.LastError
		}
		tasks = append(tasks, item)
	}
	return structpb.NewStruct(map[string]interface{}{"tasks": tasks})
}

func (s *Server) RunOverdueSweep(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.runTask(ctx, service.JobOverdueSweep)
}

func (s *Server) RunReminderDispatch(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.runTask(ctx, service.JobReminderDispatch)
}

func (s *Server) RunMonthlyGeneration(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.runTask(ctx, service.JobMonthlyGeneration)
}

func (s *Server) runTask(ctx context.Context, name string) (*structpb.Struct, error) {
	fields, err := s.scheduler.RunNow(ctx, name)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrUnknownTask):
			return nil, status.Error(codes.NotFound, "task not registered")
		case errors.Is(err, scheduler.ErrTaskRunning):
			return nil, status.Error(codes.FailedPrecondition, "task is already running")
		}
	}

	summary := map[string]interface{}{"job": name}
	for key, value := range fields {
		summary[key] = value
	}
	if err != nil {
		summary["error"] = err.Error()
	}
	out, structErr := structpb.NewStruct(summary)
	if structErr != nil {
		loggerWithContext(ctx).WithError(structErr).WithField("job", name).Error("Failed to encode task summary")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	if err == nil {
		return out, nil
	}

	// The partial summary travels as a status detail.
	loggerWithContext(ctx).WithError(err).WithField("job", name).Error("Task run failed")
	st, detailErr := status.New(codes.Internal, "task failed").WithDetails(out)
	if detailErr != nil {
		return nil, status.Error(codes.Internal, "task failed")
	}
	return nil, st.Err()
}
