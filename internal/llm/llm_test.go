package llm

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockClient_StreamingOrderMatchesComplete(t *testing.T) {
	m := NewMockClient("the quick brown fox jumps")
	ctx := context.Background()

	complete, err := m.Complete(ctx, nil, Options{Model: "mock"})
	require.NoError(t, err)

	stream, err := m.Stream(ctx, nil, Options{Model: "mock"})
	require.NoError(t, err)

	var got string
	for {
		tok, err := stream.Recv()
		got += tok
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	require.Equal(t, complete, got)
}

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{Model: "m"}.WithDefaults()
	require.Equal(t, float32(0.3), *o.Temperature)
	require.Equal(t, 512, o.MaxTokens)
	require.Equal(t, float32(1.2), o.RepeatPenalty)
}

func TestOptions_WithDefaults_ExplicitZeroTemperaturePreserved(t *testing.T) {
	zero := float32(0)
	o := Options{Model: "m", Temperature: &zero}.WithDefaults()
	require.Equal(t, float32(0), *o.Temperature)
}

func TestMockClient_Ping(t *testing.T) {
	m := NewMockClient("hi")
	require.True(t, m.Ping(context.Background()))
}
