package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out  *ssm.GetParameterOutput
	err  error
	seen *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.seen = in
	return f.out, f.err
}

func ptr[T any](v T) *T { return &v }

func TestGet(t *testing.T) {
	api := &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name:  ptr("/intralu/bot-token"),
		Value: ptr("123:abc\n"),
		Type:  types.ParameterTypeSecureString,
	}}}
	client, err := New(api)
	require.NoError(t, err)

	v, err := client.Get(context.Background(), " /intralu/bot-token ")
	require.NoError(t, err)
	require.Equal(t, "123:abc", v)
	require.Equal(t, "/intralu/bot-token", *api.seen.Name)
	require.True(t, *api.seen.WithDecryption)
}

func TestGetErrors(t *testing.T) {
	cases := []struct {
		name   string
		client *Client
		param  string
		expect string
	}{
		{
			name:   "uninitialized",
			client: &Client{},
			param:  "p",
			expect: "not initialized",
		},
		{
			name:   "empty name",
			client: &Client{api: &fakeSSM{}},
			param:  "  ",
			expect: "name is required",
		},
		{
			name:   "api error",
			client: &Client{api: &fakeSSM{err: errors.New("AccessDenied")}},
			param:  "p",
			expect: "AccessDenied",
		},
		{
			name: "missing value",
			client: &Client{api: &fakeSSM{out: &ssm.GetParameterOutput{
				Parameter: &types.Parameter{Name: ptr("p")},
			}}},
			param:  "p",
			expect: "has no value",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := c.client.Get(context.Background(), c.param)
			require.ErrorContains(t, err, c.expect)
		})
	}
}

func TestNewNilAPI(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "must not be nil")
}
