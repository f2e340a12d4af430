package regiontransport

import (
	"fmt"

	pb "github.com/estuary/flow/go/protocols/regioncdc"
	"github.com/estuary/flow/go/regioncdc"
	"github.com/estuary/flow/go/regionendpoint"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// RegionChangeData_SubscribeServer is the server-side streaming handle a
// Subscribe implementation sends envelopes over. It is satisfied by the
// grpc.ServerStream the runtime hands to serviceHandler_Subscribe.
type RegionChangeData_SubscribeServer interface {
	grpc.ServerStream
	Send(*pb.ChangeDataEvent) error
}

// RegionChangeDataServer is the server-side contract of the streaming
// subscription RPC, hand-written in the shape protoc-gen-go-grpc would
// generate since this module does not invoke protoc.
type RegionChangeDataServer interface {
	Subscribe(*pb.SubscribeRequest, RegionChangeData_SubscribeServer) error
}

// API implements RegionChangeDataServer against a process-local Endpoint,
// the server half of the Subscribe streaming RPC (compare shuffle.API.Shuffle
// in the collaborating shuffle subsystem).
type API struct {
	endpoint *regionendpoint.Endpoint
	auth     *PeerAuthenticator
}

// NewAPI returns an API serving regions owned by endpoint, gating every
// Subscribe call on auth.
func NewAPI(endpoint *regionendpoint.Endpoint, auth *PeerAuthenticator) *API {
	return &API{endpoint: endpoint, auth: auth}
}

// grpcSink adapts a server stream to regioncdc.Sink.
type grpcSink struct {
	stream RegionChangeData_SubscribeServer
}

func (s grpcSink) Send(ev *pb.ChangeDataEvent) error { return s.stream.Send(ev) }

// Subscribe implements RegionChangeDataServer. It blocks for the lifetime of
// the subscription, returning once a send to the peer fails or the stream's
// context ends (peer disconnect or server shutdown). A delegate failure
// reaches the peer as an error envelope and does not by itself end the call.
func (a *API) Subscribe(req *pb.SubscribeRequest, stream RegionChangeData_SubscribeServer) error {
	var peer, err = a.auth.Verify(stream.Context())
	if err != nil {
		return fmt.Errorf("regiontransport: %w", err)
	}

	var doneCh = make(chan error, 1)
	var id = regioncdc.NextDownstreamId()
	var ds = regioncdc.Downstream{
		Id:   id,
		Peer: peer,
		Epoch: regioncdc.RegionEpoch{
			ConfVer: req.ConfVer,
			Version: req.Version,
		},
		Sink: doneNotifyingSink{grpcSink{stream: stream}, doneCh},
	}

	a.endpoint.Subscribe(req.RegionId, ds)

	select {
	case err := <-doneCh:
		a.endpoint.Unsubscribe(req.RegionId, id, nil)
		return err
	case <-stream.Context().Done():
		a.endpoint.Unsubscribe(req.RegionId, id, nil)
		log.WithFields(log.Fields{"region": req.RegionId, "peer": peer}).Debug("subscriber disconnected")
		return stream.Context().Err()
	}
}

// doneNotifyingSink wraps a Sink, reporting the first Send failure onto
// doneCh so Subscribe's blocking select above can return promptly instead of
// waiting on context cancellation.
type doneNotifyingSink struct {
	regioncdc.Sink
	doneCh chan error
}

func (s doneNotifyingSink) Send(ev *pb.ChangeDataEvent) error {
	var err = s.Sink.Send(ev)
	if err != nil {
		select {
		case s.doneCh <- err:
		default:
		}
	}
	return err
}

// RegisterRegionChangeDataServer registers srv against s using a hand-written
// grpc.ServiceDesc, since no protoc-generated registration helper exists in
// this module.
func RegisterRegionChangeDataServer(s grpc.ServiceRegistrar, srv RegionChangeDataServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "regioncdc.RegionChangeData",
	HandlerType: (*RegionChangeDataServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "regioncdc/region_change_data.proto",
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	var req = new(pb.SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(RegionChangeDataServer).Subscribe(req, &subscribeServer{ServerStream: stream})
}

type subscribeServer struct {
	grpc.ServerStream
}

func (s *subscribeServer) Send(ev *pb.ChangeDataEvent) error {
	return s.ServerStream.SendMsg(ev)
}
