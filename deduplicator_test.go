package sqsworker

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDeduplicate(t *testing.T) {
	tests := []struct {
		name         string
		processed    bool
		checkErr     error
		handlerErr   error
		markErr      error
		expectCalled bool
		expectMark   bool
		expectErr    error
	}{
		{
			name:         "new message is handled and marked",
			expectCalled: true,
			expectMark:   true,
		},
		{
			name:      "duplicate is acknowledged without handling",
			processed: true,
		},
		{
			name:         "handler failure is not marked",
			handlerErr:   assert.AnError,
			expectCalled: true,
			expectErr:    assert.AnError,
		},
		{
			name:      "store lookup failure",
			checkErr:  assert.AnError,
			expectErr: assert.AnError,
		},
		{
			name:         "mark failure still acknowledges the handled message",
			markErr:      assert.AnError,
			expectCalled: true,
			expectMark:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockDeduplicationStore)
			store.On("IsProcessed", mock.Anything, "m1").Return(tt.processed, tt.checkErr)
			if tt.expectMark {
				store.On("MarkProcessed", mock.Anything, "m1", "orders").Return(tt.markErr)
			}

			called := false
			next := HandlerFunc(func(ctx context.Context, msg Message) error {
				called = true
				return tt.handlerErr
			})

			err := Deduplicate(store, "orders", next).Handle(context.Background(), messageFromSQS(sqsMessage("m1")))

			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectCalled, called)
			store.AssertExpectations(t)
		})
	}
}

func TestInMemoryDeduplicationStore(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewInMemoryDeduplicationStore()
	store.now = clock.Now

	processed, err := store.IsProcessed(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, store.MarkProcessed(ctx, "m1", "orders"))
	clock.Advance(2 * time.Hour)
	require.NoError(t, store.MarkProcessed(ctx, "m2", "orders"))
	// marking again does not make m1 look recent
	require.NoError(t, store.MarkProcessed(ctx, "m1", "orders"))

	processed, _ = store.IsProcessed(ctx, "m1")
	assert.True(t, processed)

	require.NoError(t, store.Cleanup(ctx, time.Hour))

	processed, _ = store.IsProcessed(ctx, "m1")
	assert.False(t, processed, "old entries are removed")
	processed, _ = store.IsProcessed(ctx, "m2")
	assert.True(t, processed)

	require.NoError(t, store.Close())
	_, err = store.IsProcessed(ctx, "m2")
	assert.ErrorIs(t, err, errDeduplicationStoreClosed)
	assert.ErrorIs(t, store.MarkProcessed(ctx, "m3", "orders"), errDeduplicationStoreClosed)
	assert.ErrorIs(t, store.Cleanup(ctx, time.Hour), errDeduplicationStoreClosed)
}

func TestRunWithDeduplicationDeletesRedelivery(t *testing.T) {
	mockSQS := new(MockSQSClient)
	store := NewInMemoryDeduplicationStore()
	require.NoError(t, store.MarkProcessed(context.Background(), "m1", "orders"))

	mockSQS.On("ReceiveMessage", mock.Anything, mock.Anything).Return(receiveOutput("m1", "m2"), nil).Once()
	mockSQS.On("DeleteMessage", mock.Anything, deleteOf("rh-m1")).Return(&sqs.DeleteMessageOutput{}, nil).Once()
	mockSQS.On("DeleteMessage", mock.Anything, deleteOf("rh-m2")).Return(&sqs.DeleteMessageOutput{}, nil).Once()

	handler := &recordingHandler{}
	err := newTestManager(mockSQS, newFakeClock()).Run(context.Background(), testQueueURL, Deduplicate(store, "orders", handler), false)

	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, handler.calls)
	processed, _ := store.IsProcessed(context.Background(), "m2")
	assert.True(t, processed)
	mockSQS.AssertExpectations(t)
}
