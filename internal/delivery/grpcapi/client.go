package grpcapi

import (
	"context"

	"google.golang.org/grpc"
)

// PartnerServiceClient calls PartnerService with the JSON codec.
type PartnerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPartnerServiceClient(cc grpc.ClientConnInterface) *PartnerServiceClient {
	return &PartnerServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PartnerServiceClient) ComputeBalance(ctx context.Context, in *ComputeBalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	return invoke[BalanceResponse](ctx, c.cc, "ComputeBalance", in, opts)
}

func (c *PartnerServiceClient) RequestWithdrawal(ctx context.Context, in *RequestWithdrawalRequest, opts ...grpc.CallOption) (*WithdrawalResponse, error) {
	return invoke[WithdrawalResponse](ctx, c.cc, "RequestWithdrawal", in, opts)
}

func (c *PartnerServiceClient) ApproveWithdrawal(ctx context.Context, in *ApproveWithdrawalRequest, opts ...grpc.CallOption) (*WithdrawalResponse, error) {
	return invoke[WithdrawalResponse](ctx, c.cc, "ApproveWithdrawal", in, opts)
}

func (c *PartnerServiceClient) RejectWithdrawal(ctx context.Context, in *RejectWithdrawalRequest, opts ...grpc.CallOption) (*WithdrawalResponse, error) {
	return invoke[WithdrawalResponse](ctx, c.cc, "RejectWithdrawal", in, opts)
}

func (c *PartnerServiceClient) GetWithdrawal(ctx context.Context, in *GetWithdrawalRequest, opts ...grpc.CallOption) (*WithdrawalResponse, error) {
	return invoke[WithdrawalResponse](ctx, c.cc, "GetWithdrawal", in, opts)
}

func (c *PartnerServiceClient) ListWithdrawals(ctx context.Context, in *ListWithdrawalsRequest, opts ...grpc.CallOption) (*ListWithdrawalsResponse, error) {
	return invoke[ListWithdrawalsResponse](ctx, c.cc, "ListWithdrawals", in, opts)
}

func (c *PartnerServiceClient) EnrollReferral(ctx context.Context, in *EnrollReferralRequest, opts ...grpc.CallOption) (*PartnerResponse, error) {
	return invoke[PartnerResponse](ctx, c.cc, "EnrollReferral", in, opts)
}

func (c *PartnerServiceClient) Activate(ctx context.Context, in *ActivateRequest, opts ...grpc.CallOption) (*PartnerResponse, error) {
	return invoke[PartnerResponse](ctx, c.cc, "Activate", in, opts)
}

func (c *PartnerServiceClient) GetPartner(ctx context.Context, in *GetPartnerRequest, opts ...grpc.CallOption) (*PartnerResponse, error) {
	return invoke[PartnerResponse](ctx, c.cc, "GetPartner", in, opts)
}

func (c *PartnerServiceClient) BuildDownline(ctx context.Context, in *BuildDownlineRequest, opts ...grpc.CallOption) (*DownlineResponse, error) {
	return invoke[DownlineResponse](ctx, c.cc, "BuildDownline", in, opts)
}

func (c *PartnerServiceClient) BuildDisplayTree(ctx context.Context, in *BuildDisplayTreeRequest, opts ...grpc.CallOption) (*DisplayTreeResponse, error) {
	return invoke[DisplayTreeResponse](ctx, c.cc, "BuildDisplayTree", in, opts)
}
