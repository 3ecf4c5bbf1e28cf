package verify

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/pkg/anthropic"
)

type stubClient struct {
	reply string
	err   error
	got   anthropic.MessageRequest
	calls int
}

func (s *stubClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.got = req
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.MessageResponse{ID: "msg_test", Text: s.reply}, nil
}

func sampleChange() *detect.LandChange {
	return &detect.LandChange{
		Base:      detect.Base{ID: "LND-001", AreaM2: 500, Source: detect.SourceSatellite},
		FromClass: "vegetation",
		ToClass:   "built",
	}
}

func TestVerifyConfirmed(t *testing.T) {
	stub := &stubClient{reply: `{"verified": true, "confidence": 0.91, "label": "New rooftop visible"}`}
	v := New(stub, "test-model", 0)

	val, err := v.Verify(context.Background(), sampleChange(), []byte("before"), []byte("after"))
	require.NoError(t, err)
	require.NotNil(t, val)

	assert.True(t, val.Verified)
	assert.Equal(t, 0.91, val.Confidence)
	assert.Equal(t, "New rooftop visible", val.Label)
	assert.Equal(t, "test-model", val.Model)

	// Both chips plus the text prompt should have gone out as one user turn.
	require.Len(t, stub.got.Messages, 1)
	blocks := stub.got.Messages[0].Blocks
	require.Len(t, blocks, 3)
	assert.Equal(t, "image/png", blocks[0].MediaType)
	assert.Equal(t, "image/png", blocks[1].MediaType)
	assert.Contains(t, blocks[2].Text, "vegetation")
	assert.Contains(t, blocks[2].Text, "LND-001")
}

func TestVerifyTokenBudget(t *testing.T) {
	stub := &stubClient{reply: `{"verified": true, "confidence": 0.9, "label": "ok"}`}

	_, err := New(stub, "", 256).Verify(context.Background(), sampleChange(), []byte("chip"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(256), stub.got.MaxTokens)

	_, err = New(stub, "", 0).Verify(context.Background(), sampleChange(), []byte("chip"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultMaxTokens), stub.got.MaxTokens)
}

func TestVerifyLowConfidenceNotVerified(t *testing.T) {
	// The model saying "verified" with borderline confidence is not enough.
	stub := &stubClient{reply: `{"verified": true, "confidence": 0.5, "label": "Unclear"}`}
	v := New(stub, "", 0)

	val, err := v.Verify(context.Background(), sampleChange(), []byte("before"), nil)
	require.NoError(t, err)
	assert.False(t, val.Verified)
	assert.Equal(t, 0.5, val.Confidence)
}

func TestVerifyBackendFailure(t *testing.T) {
	stub := &stubClient{err: eris.New("api overloaded")}
	v := New(stub, "", 0)

	val, err := v.Verify(context.Background(), sampleChange(), []byte("before"), nil)
	assert.Error(t, err)
	assert.Nil(t, val, "a failed call must leave the detection unverified, not rejected")
}

func TestVerifyUnparseableVerdict(t *testing.T) {
	stub := &stubClient{reply: "I could not determine that."}
	v := New(stub, "", 0)

	val, err := v.Verify(context.Background(), sampleChange(), []byte("before"), nil)
	assert.Error(t, err)
	assert.Nil(t, val)
}

func TestVerifyFencedJSON(t *testing.T) {
	stub := &stubClient{reply: "```json\n{\"verified\": false, \"confidence\": 0.2, \"label\": \"No change\"}\n```"}
	v := New(stub, "", 0)

	val, err := v.Verify(context.Background(), sampleChange(), []byte("before"), nil)
	require.NoError(t, err)
	assert.False(t, val.Verified)
	assert.Equal(t, "No change", val.Label)
}

func TestVerifyNoChip(t *testing.T) {
	v := New(&stubClient{}, "", 0)
	_, err := v.Verify(context.Background(), sampleChange(), nil, nil)
	assert.Error(t, err)
}

type stubChips struct {
	err error
}

func (s stubChips) Chips(context.Context, detect.Detection) ([]byte, []byte, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return []byte("before"), []byte("after"), nil
}

func TestVerifyAllAttachesValidations(t *testing.T) {
	stub := &stubClient{reply: `{"verified": true, "confidence": 0.8, "label": "Confirmed"}`}
	v := New(stub, "", 0)

	ds := []detect.Detection{sampleChange(), sampleChange()}
	done, err := v.VerifyAll(context.Background(), ds, stubChips{})
	require.NoError(t, err)
	assert.Equal(t, 2, done)
	for _, d := range ds {
		require.NotNil(t, d.Meta().Validation)
		assert.True(t, d.Meta().Validation.Verified)
	}
}

func TestVerifyAllSkipsChipFailures(t *testing.T) {
	stub := &stubClient{reply: `{"verified": true, "confidence": 0.8, "label": "x"}`}
	v := New(stub, "", 0)

	ds := []detect.Detection{sampleChange()}
	done, err := v.VerifyAll(context.Background(), ds, stubChips{err: eris.New("no scene")})
	require.NoError(t, err)
	assert.Zero(t, done)
	assert.Zero(t, stub.calls)
	assert.Nil(t, ds[0].Meta().Validation)
}
