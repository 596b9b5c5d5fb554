package sqsworker

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Message is one received SQS message together with the receipt handle
// needed to delete it or change its visibility. It is immutable.
type Message struct {
	id                string
	receiptHandle     string
	bodyMD5           string
	body              string
	attributes        map[string]string
	messageAttributes map[string]types.MessageAttributeValue
}

// NewMessage builds a Message from its parts. Maps are copied.
func NewMessage(id, receiptHandle, bodyMD5, body string, attributes map[string]string, messageAttributes map[string]types.MessageAttributeValue) Message {
	m := Message{
		id:                id,
		receiptHandle:     receiptHandle,
		bodyMD5:           bodyMD5,
		body:              body,
		attributes:        make(map[string]string, len(attributes)),
		messageAttributes: make(map[string]types.MessageAttributeValue, len(messageAttributes)),
	}
	for k, v := range attributes {
		m.attributes[k] = v
	}
	for k, v := range messageAttributes {
		m.messageAttributes[k] = v
	}
	return m
}

func messageFromSQS(raw types.Message) Message {
	return NewMessage(
		aws.ToString(raw.MessageId),
		aws.ToString(raw.ReceiptHandle),
		aws.ToString(raw.MD5OfBody),
		aws.ToString(raw.Body),
		raw.Attributes,
		raw.MessageAttributes,
	)
}

func messagesFromSQS(raw []types.Message) []Message {
	out := make([]Message, 0, len(raw))
	for _, r := range raw {
		out = append(out, messageFromSQS(r))
	}
	return out
}

func (m Message) ID() string            { return m.id }
func (m Message) ReceiptHandle() string { return m.receiptHandle }
func (m Message) BodyMD5() string       { return m.bodyMD5 }
func (m Message) Body() string          { return m.body }

// Attributes returns a copy of the system attributes (ApproximateReceiveCount, SentTimestamp, ...).
func (m Message) Attributes() map[string]string {
	out := make(map[string]string, len(m.attributes))
	for k, v := range m.attributes {
		out[k] = v
	}
	return out
}

// Attribute returns a single system attribute.
func (m Message) Attribute(name string) (string, bool) {
	v, ok := m.attributes[name]
	return v, ok
}

// MessageAttributes returns a copy of the user supplied message attributes.
func (m Message) MessageAttributes() map[string]types.MessageAttributeValue {
	out := make(map[string]types.MessageAttributeValue, len(m.messageAttributes))
	for k, v := range m.messageAttributes {
		out[k] = v
	}
	return out
}

// ReceiveCount returns ApproximateReceiveCount, or 0 when it was not requested.
func (m Message) ReceiveCount() int {
	n, err := strconv.Atoi(m.attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
	if err != nil {
		return 0
	}
	return n
}

// SentAt returns the SentTimestamp attribute, if present.
func (m Message) SentAt() (time.Time, bool) {
	ms, err := strconv.ParseInt(m.attributes[string(types.MessageSystemAttributeNameSentTimestamp)], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Unmarshal decodes a JSON body into v.
func (m Message) Unmarshal(v any) error {
	return json.Unmarshal([]byte(m.body), v)
}
