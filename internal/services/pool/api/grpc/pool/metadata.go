package pool

import (
	"context"
	"strings"

	"github.com/louisbranch/cellarpool/internal/platform/id"
	"github.com/louisbranch/cellarpool/internal/platform/requestctx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDHeader correlates a call with the journal events it produces.
const RequestIDHeader = "x-cellarpool-request-id"

// ActorIDHeader names the ledger address acting on the call. Request fields
// that name a caller, contributor or issuer default to it and must agree with
// it when both are set.
const ActorIDHeader = "x-cellarpool-actor-id"

// WithActor returns ctx with the actor header attached to outgoing calls.
func WithActor(ctx context.Context, actorID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, ActorIDHeader, actorID)
}

// WithRequestID returns ctx with the request id header attached to outgoing
// calls.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, RequestIDHeader, requestID)
}

type actorVerifiedKey struct{}

// actorRequired reports whether the interceptor runs with actor tokens, in
// which case mutating calls need a verified actor.
func actorRequired(ctx context.Context) bool {
	required, _ := ctx.Value(actorVerifiedKey{}).(bool)
	return required
}

// InterceptorOption configures UnaryServerInterceptor.
type InterceptorOption func(*interceptorConfig)

type interceptorConfig struct {
	tokens *ActorTokens
}

// WithActorTokens makes the interceptor take the actor from a verified
// bearer token instead of the plain actor header.
func WithActorTokens(tokens *ActorTokens) InterceptorOption {
	return func(c *interceptorConfig) {
		c.tokens = tokens
	}
}

// UnaryServerInterceptor moves the request and actor headers into requestctx,
// generating a request id when the caller sent none. The request id is echoed
// in the response header.
func UnaryServerInterceptor(idGenerator func() (string, error), opts ...InterceptorOption) grpc.UnaryServerInterceptor {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	var cfg interceptorConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		requestID := firstValue(md, RequestIDHeader)
		if requestID == "" {
			generated, err := idGenerator()
			if err != nil {
				return nil, status.Errorf(codes.Internal, "generate request id: %v", err)
			}
			requestID = generated
		}
		ctx = requestctx.WithRequestID(ctx, requestID)
		actor, err := cfg.actor(md)
		if err != nil {
			return nil, err
		}
		if actor != "" {
			ctx = requestctx.WithActorID(ctx, actor)
		}
		if cfg.tokens != nil {
			ctx = context.WithValue(ctx, actorVerifiedKey{}, true)
		}
		if err := grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID)); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}
		return handler(ctx, req)
	}
}

func (c interceptorConfig) actor(md metadata.MD) (string, error) {
	if c.tokens == nil {
		return firstValue(md, ActorIDHeader), nil
	}
	raw := firstValue(md, AuthorizationHeader)
	if raw == "" {
		return "", nil
	}
	actor, err := c.tokens.Verify(bearerToken(raw))
	if err != nil {
		return "", status.Error(codes.Unauthenticated, err.Error())
	}
	return actor, nil
}

// ActorTokenClientInterceptor replaces the outgoing actor header with a
// bearer token signed by tokens.
func ActorTokenClientInterceptor(tokens *ActorTokens) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		md, ok := metadata.FromOutgoingContext(ctx)
		if ok && tokens != nil {
			if actor := firstValue(md, ActorIDHeader); actor != "" {
				token, err := tokens.Sign(actor)
				if err != nil {
					return status.Errorf(codes.Internal, "sign actor token: %v", err)
				}
				md = md.Copy()
				md.Delete(ActorIDHeader)
				md.Set(AuthorizationHeader, "Bearer "+token)
				ctx = metadata.NewOutgoingContext(ctx, md)
			}
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// firstValue returns the first printable value of key.
func firstValue(md metadata.MD, key string) string {
	for _, value := range md.Get(key) {
		value = strings.TrimSpace(value)
		if value != "" && isPrintableASCII(value) {
			return value
		}
	}
	return ""
}

func isPrintableASCII(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}
