package alert

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swap357/cirunner/pkg/types"
)

type mockSQS struct {
	sent []*sqs.SendMessageInput
	err  error
}

func (m *mockSQS) SendMessage(_ context.Context, input *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, input)
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSSink_Send(t *testing.T) {
	mock := &mockSQS{}
	sink, err := NewSQSSink("https://sqs.us-east-1.amazonaws.com/123/ci-alerts", WithSQSClient(mock))
	require.NoError(t, err)
	assert.Equal(t, "sqs", sink.Name())

	require.NoError(t, sink.Send(context.Background(), testAlert()))
	require.Len(t, mock.sent, 1)

	msg := mock.sent[0]
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/ci-alerts", aws.ToString(msg.QueueUrl))
	assert.Equal(t, "error", aws.ToString(msg.MessageAttributes["level"].StringValue))

	var decoded types.Alert
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(msg.MessageBody)), &decoded))
	assert.Equal(t, "numba_conda_linux-64", decoded.Stage)
	assert.Equal(t, int64(4242), decoded.RunID)
}

func TestSQSSink_Error(t *testing.T) {
	sink, err := NewSQSSink("q", WithSQSClient(&mockSQS{err: errors.New("throttled")}))
	require.NoError(t, err)
	assert.ErrorContains(t, sink.Send(context.Background(), testAlert()), "throttled")
}

type mockEventBridge struct {
	puts    []*eventbridge.PutEventsInput
	entries []ebtypes.PutEventsResultEntry
}

func (m *mockEventBridge) PutEvents(_ context.Context, input *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	m.puts = append(m.puts, input)
	return &eventbridge.PutEventsOutput{Entries: m.entries}, nil
}

func TestEventBridgeSink_Send(t *testing.T) {
	mock := &mockEventBridge{}
	sink, err := NewEventBridgeSink("", WithEventBridgeClient(mock))
	require.NoError(t, err)
	assert.Equal(t, "eventbridge", sink.Name())

	require.NoError(t, sink.Send(context.Background(), testAlert()))
	require.Len(t, mock.puts, 1)
	entry := mock.puts[0].Entries[0]
	assert.Equal(t, "default", aws.ToString(entry.EventBusName))
	assert.Equal(t, "cirunner", aws.ToString(entry.Source))
	assert.Equal(t, "cirunner.alert", aws.ToString(entry.DetailType))
	assert.Contains(t, aws.ToString(entry.Detail), `"message":"something went wrong"`)
}

func TestEventBridgeSink_RejectedEntry(t *testing.T) {
	mock := &mockEventBridge{entries: []ebtypes.PutEventsResultEntry{
		{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("try again")},
	}}
	sink, err := NewEventBridgeSink("ci", WithEventBridgeClient(mock))
	require.NoError(t, err)
	assert.ErrorContains(t, sink.Send(context.Background(), testAlert()), "InternalFailure")
}
