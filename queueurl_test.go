package sqsworker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsQueueURL(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"https://sqs.eu-west-1.amazonaws.com/123456789012/orders", true},
		{"http://localhost:4566/000000000000/orders", true},
		{"orders", false},
		{"orders.fifo", false},
		{"", false},
		{"/123456789012/orders", false},
		{"sqs:orders", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsQueueURL(tt.name))
		})
	}
}
