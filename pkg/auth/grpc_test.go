package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// grpcContextWithToken builds an incoming gRPC context carrying the given
// authorization metadata value.
func grpcContextWithToken(value string) context.Context {
	md := metadata.Pairs(metadataAuthorization, value)
	return metadata.NewIncomingContext(context.Background(), md)
}

// fakeServerStream is a minimal grpc.ServerStream for interceptor tests.
type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }

// ---------------------------------------------------------------------------
// Unary interceptor
// ---------------------------------------------------------------------------

func TestUnaryServerInterceptor_ValidToken(t *testing.T) {
	t.Parallel()
	authn, codec, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	token, err := codec.IssueAccessToken("member-42", []Role{RoleUser}, nil)
	require.NoError(t, err)

	interceptor := UnaryServerInterceptor(authn)
	handler := func(ctx context.Context, req any) (any, error) {
		user, ok := UserFromContext(ctx)
		require.True(t, ok, "handler context must carry the authenticated user")
		return user.UserID, nil
	}

	resp, err := interceptor(grpcContextWithToken("Bearer "+token), nil,
		&grpc.UnaryServerInfo{FullMethod: "/guildhall.v1.Members/GetProfile"}, handler)
	require.NoError(t, err)
	assert.Equal(t, "member-42", resp)
}

func TestUnaryServerInterceptor_MissingMetadata(t *testing.T) {
	t.Parallel()
	authn, _, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	interceptor := UnaryServerInterceptor(authn)
	handler := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler must not run without authentication")
		return nil, nil
	}

	_, err := interceptor(context.Background(), nil,
		&grpc.UnaryServerInfo{FullMethod: "/guildhall.v1.Members/GetProfile"}, handler)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestUnaryServerInterceptor_MissingAuthorization(t *testing.T) {
	t.Parallel()
	authn, _, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	interceptor := UnaryServerInterceptor(authn)
	handler := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler must not run without authentication")
		return nil, nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.MD{})
	_, err := interceptor(ctx, nil,
		&grpc.UnaryServerInfo{FullMethod: "/guildhall.v1.Members/GetProfile"}, handler)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestUnaryServerInterceptor_InvalidFormat(t *testing.T) {
	t.Parallel()
	authn, _, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	interceptor := UnaryServerInterceptor(authn)
	handler := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler must not run without authentication")
		return nil, nil
	}

	_, err := interceptor(grpcContextWithToken("Basic dXNlcjpwYXNz"), nil,
		&grpc.UnaryServerInfo{FullMethod: "/guildhall.v1.Members/GetProfile"}, handler)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestUnaryServerInterceptor_InvalidToken(t *testing.T) {
	t.Parallel()
	authn, _, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	interceptor := UnaryServerInterceptor(authn)
	handler := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler must not run without authentication")
		return nil, nil
	}

	_, err := interceptor(grpcContextWithToken("Bearer not-a-token"), nil,
		&grpc.UnaryServerInfo{FullMethod: "/guildhall.v1.Members/GetProfile"}, handler)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

// ---------------------------------------------------------------------------
// Stream interceptor
// ---------------------------------------------------------------------------

func TestStreamServerInterceptor_ValidToken(t *testing.T) {
	t.Parallel()
	authn, codec, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	token, err := codec.IssueAccessToken("member-42", []Role{RoleUser}, nil)
	require.NoError(t, err)

	interceptor := StreamServerInterceptor(authn)
	stream := &fakeServerStream{ctx: grpcContextWithToken("Bearer " + token)}

	handler := func(srv any, ss grpc.ServerStream) error {
		user, ok := UserFromContext(ss.Context())
		require.True(t, ok, "stream context must carry the authenticated user")
		assert.Equal(t, "member-42", user.UserID)
		return nil
	}

	err = interceptor(nil, stream,
		&grpc.StreamServerInfo{FullMethod: "/guildhall.v1.Events/Subscribe"}, handler)
	require.NoError(t, err)
}

func TestStreamServerInterceptor_InvalidToken(t *testing.T) {
	t.Parallel()
	authn, _, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	interceptor := StreamServerInterceptor(authn)
	stream := &fakeServerStream{ctx: grpcContextWithToken("Bearer not-a-token")}

	handler := func(srv any, ss grpc.ServerStream) error {
		t.Fatal("handler must not run without authentication")
		return nil
	}

	err := interceptor(nil, stream,
		&grpc.StreamServerInfo{FullMethod: "/guildhall.v1.Events/Subscribe"}, handler)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
