package grpcapi

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "ib.v1.PartnerService"

type PartnerServiceServer interface {
	ComputeBalance(context.Context, *ComputeBalanceRequest) (*BalanceResponse, error)
	RequestWithdrawal(context.Context, *RequestWithdrawalRequest) (*WithdrawalResponse, error)
	ApproveWithdrawal(context.Context, *ApproveWithdrawalRequest) (*WithdrawalResponse, error)
	RejectWithdrawal(context.Context, *RejectWithdrawalRequest) (*WithdrawalResponse, error)
	GetWithdrawal(context.Context, *GetWithdrawalRequest) (*WithdrawalResponse, error)
	ListWithdrawals(context.Context, *ListWithdrawalsRequest) (*ListWithdrawalsResponse, error)
	EnrollReferral(context.Context, *EnrollReferralRequest) (*PartnerResponse, error)
	Activate(context.Context, *ActivateRequest) (*PartnerResponse, error)
	GetPartner(context.Context, *GetPartnerRequest) (*PartnerResponse, error)
	BuildDownline(context.Context, *BuildDownlineRequest) (*DownlineResponse, error)
	BuildDisplayTree(context.Context, *BuildDisplayTreeRequest) (*DisplayTreeResponse, error)
}

var PartnerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PartnerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("ComputeBalance", PartnerServiceServer.ComputeBalance),
		unaryMethod("RequestWithdrawal", PartnerServiceServer.RequestWithdrawal),
		unaryMethod("ApproveWithdrawal", PartnerServiceServer.ApproveWithdrawal),
		unaryMethod("RejectWithdrawal", PartnerServiceServer.RejectWithdrawal),
		unaryMethod("GetWithdrawal", PartnerServiceServer.GetWithdrawal),
		unaryMethod("ListWithdrawals", PartnerServiceServer.ListWithdrawals),
		unaryMethod("EnrollReferral", PartnerServiceServer.EnrollReferral),
		unaryMethod("Activate", PartnerServiceServer.Activate),
		unaryMethod("GetPartner", PartnerServiceServer.GetPartner),
		unaryMethod("BuildDownline", PartnerServiceServer.BuildDownline),
		unaryMethod("BuildDisplayTree", PartnerServiceServer.BuildDisplayTree),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ib/v1/partner_service",
}

func RegisterPartnerServiceServer(s grpc.ServiceRegistrar, srv PartnerServiceServer) {
	s.RegisterService(&PartnerService_ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unaryMethod adapts a typed server method to grpc.MethodDesc, decoding the
// request and running it through the server's interceptor chain.
func unaryMethod[Req, Resp any](name string, call func(PartnerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PartnerServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PartnerServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
