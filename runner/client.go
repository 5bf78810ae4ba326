package runner

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"web/communityglobe/cluster"
	"web/communityglobe/roster"
)

// Client calls a remote runner. It satisfies ViewServiceServer so callers can
// use a local *Runner and a remote one interchangeably.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to a runner at addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to runner: %w", err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any) (*Resp, error) {
	out := new(Resp)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype(jsonCodec{}.Name()))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LoadRoster(ctx context.Context, in *LoadRosterRequest) (*LoadRosterResponse, error) {
	return invoke[LoadRosterResponse](ctx, c, "LoadRoster", in)
}

func (c *Client) ListSessions(ctx context.Context, in *ListSessionsRequest) (*ListSessionsResponse, error) {
	return invoke[ListSessionsResponse](ctx, c, "ListSessions", in)
}

func (c *Client) Select(ctx context.Context, in *SelectRequest) (*Frame, error) {
	return invoke[Frame](ctx, c, "Select", in)
}

func (c *Client) SetFilters(ctx context.Context, in *SetFiltersRequest) (*Frame, error) {
	return invoke[Frame](ctx, c, "SetFilters", in)
}

func (c *Client) Expand(ctx context.Context, in *PointRequest) (*Frame, error) {
	return invoke[Frame](ctx, c, "Expand", in)
}

func (c *Client) ClusterDetails(ctx context.Context, in *PointRequest) (*cluster.Details, error) {
	return invoke[cluster.Details](ctx, c, "ClusterDetails", in)
}

func (c *Client) Statistics(ctx context.Context, in *SessionRequest) (*cluster.Statistics, error) {
	return invoke[cluster.Statistics](ctx, c, "Statistics", in)
}

func (c *Client) FilterOptions(ctx context.Context, in *SessionRequest) (*roster.FilterOptions, error) {
	return invoke[roster.FilterOptions](ctx, c, "FilterOptions", in)
}

func (c *Client) SaveSnapshot(ctx context.Context, in *SessionRequest) (*cluster.SnapshotInfo, error) {
	return invoke[cluster.SnapshotInfo](ctx, c, "SaveSnapshot", in)
}
