package sqsworker

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// IsQueueURL reports whether name is already an absolute queue URL rather
// than a bare queue name.
func IsQueueURL(name string) bool {
	u, err := url.Parse(name)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// resolveQueueURL returns name unchanged when it is a URL, otherwise looks it up.
func (m *Manager) resolveQueueURL(ctx context.Context, name string) (string, error) {
	if IsQueueURL(name) {
		return name, nil
	}

	result, err := m.sqsClient.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve queue url for %q: %w", name, err)
	}
	return aws.ToString(result.QueueUrl), nil
}
