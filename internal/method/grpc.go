package method

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	spb "google.golang.org/genproto/googleapis/rpc/status"
)

// GRPCInvoker is an alternate transport for servers that expose methods as
// unary gRPC calls taking and returning JSON-shaped values. It produces the
// same Outcome shape as the HTTP client, so classification is shared
// unchanged.
type GRPCInvoker struct {
	name string
	conn *grpc.ClientConn
}

// NewGRPCInvoker dials the endpoint. TLS is chosen by scheme or a :443
// suffix, matching how endpoints are usually configured.
func NewGRPCInvoker(ctx context.Context, name, endpoint string) (*GRPCInvoker, error) {
	target := endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	opts = append(opts, grpc.WithBlock())

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial grpc endpoint %s: %w", target, err)
	}

	return &GRPCInvoker{name: name, conn: conn}, nil
}

// Invoke issues one unary call to path with structpb-encoded params.
func (g *GRPCInvoker) Invoke(ctx context.Context, path string, params any) (Outcome, error) {
	in, err := encodeParams(params)
	if err != nil {
		return Outcome{}, err
	}

	var reply structpb.Value
	if err := g.conn.Invoke(ctx, path, in, &reply); err != nil {
		return outcomeFromRPCError(err)
	}

	body, err := protojson.Marshal(&reply)
	if err != nil {
		// The reply came back but cannot be re-encoded; no response body
		// exists for the classifier to decode.
		return NetworkFailure(fmt.Errorf("encode reply: %w", err)), nil
	}
	return Response(http.StatusOK, body), nil
}

// Name returns the invoker's configured name.
func (g *GRPCInvoker) Name() string {
	return g.name
}

// Close closes the underlying connection.
func (g *GRPCInvoker) Close() error {
	return g.conn.Close()
}

// encodeParams round-trips the parameter object through JSON into a
// structpb value, the wire shape of a JSON object over gRPC.
func encodeParams(params any) (*structpb.Struct, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	var plain map[string]any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, fmt.Errorf("params must encode as a JSON object: %w", err)
	}
	in, err := structpb.NewStruct(plain)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	return in, nil
}

// outcomeFromRPCError maps a unary call failure onto the shared Outcome
// shape. Unreachable-transport codes become network failures; the rest are
// translated to the HTTP statuses the classifier already understands, with
// the status proto as the response body.
func outcomeFromRPCError(err error) (Outcome, error) {
	st, ok := status.FromError(err)
	if !ok {
		// Not a gRPC status: an unexpected failure mode, propagate.
		return Outcome{}, err
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return NetworkFailure(err), nil
	case codes.InvalidArgument:
		return Response(http.StatusBadRequest, statusBody(st.Proto())), nil
	case codes.Unauthenticated:
		return Response(http.StatusUnauthorized, statusBody(st.Proto())), nil
	default:
		return Response(http.StatusInternalServerError, statusBody(st.Proto())), nil
	}
}

func statusBody(pb *spb.Status) []byte {
	if pb == nil {
		return nil
	}
	body, err := protojson.Marshal(pb)
	if err != nil {
		return nil
	}
	return body
}
