package sqsworker

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageFromSQS(t *testing.T) {
	raw := types.Message{
		MessageId:     aws.String("email-001"),
		ReceiptHandle: aws.String("receipt"),
		MD5OfBody:     aws.String("abc"),
		Body:          aws.String(`{"id":"email-001","type":"email"}`),
		Attributes: map[string]string{
			"ApproximateReceiveCount": "3",
			"SentTimestamp":           "1704110400000",
		},
		MessageAttributes: map[string]types.MessageAttributeValue{
			"priority": {DataType: aws.String("String"), StringValue: aws.String("high")},
		},
	}

	msg := messageFromSQS(raw)

	assert.Equal(t, "email-001", msg.ID())
	assert.Equal(t, "receipt", msg.ReceiptHandle())
	assert.Equal(t, "abc", msg.BodyMD5())
	assert.Equal(t, 3, msg.ReceiveCount())
	assert.Equal(t, "high", aws.ToString(msg.MessageAttributes()["priority"].StringValue))

	sentAt, ok := msg.SentAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), sentAt.UTC())

	var body struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	require.NoError(t, msg.Unmarshal(&body))
	assert.Equal(t, "email", body.Type)
}

func TestMessageIsImmutable(t *testing.T) {
	raw := sqsMessage("m1")
	msg := messageFromSQS(raw)

	raw.Attributes["ApproximateReceiveCount"] = "9"
	attrs := msg.Attributes()
	attrs["ApproximateReceiveCount"] = "7"

	v, ok := msg.Attribute("ApproximateReceiveCount")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestMessageMissingAttributes(t *testing.T) {
	msg := messageFromSQS(types.Message{MessageId: aws.String("m1"), Body: aws.String("not json")})

	assert.Equal(t, 0, msg.ReceiveCount())
	_, ok := msg.SentAt()
	assert.False(t, ok)
	assert.Error(t, msg.Unmarshal(&struct{}{}))
	assert.Empty(t, msg.ReceiptHandle())
}
