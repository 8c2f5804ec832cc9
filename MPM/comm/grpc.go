package comm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/notargets/gompm/internal/logging"
)

const (
	rankServiceName = "gompm.comm.Rank"
	deliverMethod   = "/" + rankServiceName + "/Deliver"
	mdSource        = "mpm-src"
	mdTag           = "mpm-tag"
	maxMessageSize  = 1 << 30
)

// rankServer accepts messages addressed to one rank. Payloads travel as BytesValue and
// the source rank and tag as request metadata.
type rankServer interface {
	Deliver(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error)
}

var rankServiceDesc = grpc.ServiceDesc{
	ServiceName: rankServiceName,
	HandlerType: (*rankServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: deliverHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gompm/comm/rank.proto",
}

func deliverHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(rankServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: deliverMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(rankServer).Deliver(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCComm is a rank reachable over gRPC, for ranks in separate processes
type GRPCComm struct {
	rank   int
	size   int
	box    *MailBox[[]byte]
	server *grpc.Server
	peers  []*grpc.ClientConn
	log    logging.Logger
}

// NewGRPCComm serves rank on lis and dials every other address in addrs.
// addrs[rank] is not dialled, messages to self go straight to the mailbox.
func NewGRPCComm(rank int, lis net.Listener, addrs []string, log logging.Logger) (gc *GRPCComm, err error) {
	if rank < 0 || rank >= len(addrs) {
		return nil, fmt.Errorf("rank %d out of range for %d addresses", rank, len(addrs))
	}
	if log == nil {
		log = logging.Noop()
	}
	gc = &GRPCComm{
		rank: rank,
		size: len(addrs),
		box:  NewMailBox[[]byte](),
		server: grpc.NewServer(
			grpc.StatsHandler(otelgrpc.NewServerHandler()),
			grpc.MaxRecvMsgSize(maxMessageSize),
		),
		peers: make([]*grpc.ClientConn, len(addrs)),
		log:   log.With(logging.Rank(rank)),
	}
	gc.server.RegisterService(&rankServiceDesc, gc)
	for r, addr := range addrs {
		if r == rank {
			continue
		}
		if gc.peers[r], err = grpc.NewClient(addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
			grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(maxMessageSize)),
		); err != nil {
			_ = gc.Close()
			return nil, fmt.Errorf("rank %d: dial rank %d at %s: %w", rank, r, addr, err)
		}
	}
	go func() {
		if serr := gc.server.Serve(lis); serr != nil && !errors.Is(serr, grpc.ErrServerStopped) {
			gc.log.Error(context.Background(), "rank server stopped", logging.Err(serr))
		}
	}()
	return gc, nil
}

// NewGRPCWorld starts n ranks on loopback listeners inside this process
func NewGRPCWorld(n int, log logging.Logger) (ranks []Communicator, err error) {
	var (
		listeners = make([]net.Listener, n)
		addrs     = make([]string, n)
	)
	for r := range listeners {
		if listeners[r], err = net.Listen("tcp", "127.0.0.1:0"); err != nil {
			for _, l := range listeners[:r] {
				_ = l.Close()
			}
			return nil, fmt.Errorf("listen for rank %d: %w", r, err)
		}
		addrs[r] = listeners[r].Addr().String()
	}
	ranks = make([]Communicator, n)
	for r := range ranks {
		var gc *GRPCComm
		if gc, err = NewGRPCComm(r, listeners[r], addrs, log); err != nil {
			for _, c := range ranks[:r] {
				_ = c.Close()
			}
			return nil, err
		}
		ranks[r] = gc
	}
	return
}

func (gc *GRPCComm) Rank() int { return gc.rank }
func (gc *GRPCComm) Size() int { return gc.size }

func (gc *GRPCComm) Deliver(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "missing source and tag metadata")
	}
	src, err := mdInt(md, mdSource)
	if err != nil {
		return nil, err
	}
	tag, err := mdInt(md, mdTag)
	if err != nil {
		return nil, err
	}
	if err = gc.box.PostMessage(src, tag, in.GetValue()); err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return &emptypb.Empty{}, nil
}

func mdInt(md metadata.MD, key string) (val int, err error) {
	vals := md.Get(key)
	if len(vals) != 1 {
		return 0, status.Errorf(codes.InvalidArgument, "metadata %s: want one value, got %d", key, len(vals))
	}
	if val, err = strconv.Atoi(vals[0]); err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "metadata %s: %v", key, err)
	}
	return
}

func (gc *GRPCComm) Send(ctx context.Context, dst, tag int, payload []byte) (err error) {
	if dst < 0 || dst >= gc.size {
		return fmt.Errorf("rank %d: send to rank %d out of range [0,%d)", gc.rank, dst, gc.size)
	}
	if dst == gc.rank {
		msg := make([]byte, len(payload))
		copy(msg, payload)
		return gc.box.PostMessage(gc.rank, tag, msg)
	}
	ctx = metadata.AppendToOutgoingContext(ctx,
		mdSource, strconv.Itoa(gc.rank),
		mdTag, strconv.Itoa(tag),
	)
	if err = gc.peers[dst].Invoke(ctx, deliverMethod, wrapperspb.Bytes(payload), new(emptypb.Empty)); err != nil {
		err = fmt.Errorf("rank %d: send to rank %d tag %d: %w", gc.rank, dst, tag, err)
	}
	return
}

func (gc *GRPCComm) Recv(ctx context.Context, src, tag int) (payload []byte, err error) {
	if src < 0 || src >= gc.size {
		return nil, fmt.Errorf("rank %d: receive from rank %d out of range [0,%d)", gc.rank, src, gc.size)
	}
	if payload, err = gc.box.ReceiveMessage(ctx, src, tag); err != nil {
		err = fmt.Errorf("rank %d: receive from rank %d tag %d: %w", gc.rank, src, tag, err)
	}
	return
}

func (gc *GRPCComm) Close() (err error) {
	gc.server.Stop()
	gc.box.Close()
	for _, conn := range gc.peers {
		if conn != nil {
			if cerr := conn.Close(); err == nil {
				err = cerr
			}
		}
	}
	return
}
