package federated

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/doafavor/internal/models"
)

type mockSDK struct {
	RequestPermissionsFunc func(ctx context.Context, provider models.Provider, scopes []string) (bool, error)
	AccessTokenFunc        func(ctx context.Context, provider models.Provider) (string, error)
}

func (m *mockSDK) RequestPermissions(ctx context.Context, provider models.Provider, scopes []string) (bool, error) {
	return m.RequestPermissionsFunc(ctx, provider, scopes)
}

func (m *mockSDK) AccessToken(ctx context.Context, provider models.Provider) (string, error) {
	return m.AccessTokenFunc(ctx, provider)
}

func TestNativeFlow_Token(t *testing.T) {
	var gotScopes []string
	f := &NativeFlow{SDK: &mockSDK{
		RequestPermissionsFunc: func(ctx context.Context, provider models.Provider, scopes []string) (bool, error) {
			gotScopes = scopes
			return true, nil
		},
		AccessTokenFunc: func(ctx context.Context, provider models.Provider) (string, error) {
			return "fb-token", nil
		},
	}}
	tok, err := f.Begin(context.Background(), models.Facebook)
	require.NoError(t, err)
	assert.Equal(t, "fb-token", tok)
	assert.Equal(t, []string{"public_profile", "email"}, gotScopes)
}

func TestNativeFlow_Declined(t *testing.T) {
	f := &NativeFlow{SDK: &mockSDK{
		RequestPermissionsFunc: func(ctx context.Context, provider models.Provider, scopes []string) (bool, error) {
			return false, nil
		},
	}}
	_, err := f.Begin(context.Background(), models.Facebook)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestNativeFlow_EmptyToken(t *testing.T) {
	f := &NativeFlow{SDK: &mockSDK{
		RequestPermissionsFunc: func(ctx context.Context, provider models.Provider, scopes []string) (bool, error) {
			return true, nil
		},
		AccessTokenFunc: func(ctx context.Context, provider models.Provider) (string, error) {
			return "", nil
		},
	}}
	_, err := f.Begin(context.Background(), models.Google)
	assert.ErrorIs(t, err, ErrNoAccessToken)
	assert.EqualError(t, err, "Something went wrong obtaining access token")
}

func TestNativeFlow_SDKError(t *testing.T) {
	f := &NativeFlow{SDK: &mockSDK{
		RequestPermissionsFunc: func(ctx context.Context, provider models.Provider, scopes []string) (bool, error) {
			return false, errors.New("sdk crashed")
		},
	}}
	_, err := f.Begin(context.Background(), models.Google)
	assert.ErrorContains(t, err, "sdk crashed")
	assert.NotErrorIs(t, err, ErrCancelled)
}
