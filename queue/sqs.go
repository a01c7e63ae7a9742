package queue

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"

	"leadreach/config"
)

// Message is one job notification pulled off the queue.
type Message struct {
	ID      string
	Receipt string
	Body    string
}

// JobReference is the payload carried in a message body.
type JobReference struct {
	JobID string `json:"job_id"`
}

// ParseJobID extracts the job id from the message body.
func (m Message) ParseJobID() (string, error) {
	var ref JobReference
	if err := json.Unmarshal([]byte(m.Body), &ref); err != nil {
		return "", fmt.Errorf("malformed message body: %v", err)
	}
	if ref.JobID == "" {
		return "", fmt.Errorf("message body missing job_id")
	}
	return ref.JobID, nil
}

// SQSQueue adapts the SQS client to the worker's receive/delete contract.
type SQSQueue struct {
	client            *sqs.SQS
	queueURL          string
	waitSeconds       int64
	visibilityTimeout int64
}

func NewSQSQueue(cfg config.QueueConfig) (*SQSQueue, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("QUEUE_URL not configured")
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %v", err)
	}

	return &SQSQueue{
		client:            sqs.New(sess),
		queueURL:          cfg.QueueURL,
		waitSeconds:       cfg.WaitSeconds,
		visibilityTimeout: cfg.VisibilityTimeout,
	}, nil
}

func (q *SQSQueue) URL() string {
	return q.queueURL
}

// Receive long-polls for a single message. Returns (nil, nil) when the wait
// expires with nothing to do.
func (q *SQSQueue) Receive() (*Message, error) {
	out, err := q.client.ReceiveMessage(&sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: aws.Int64(1),
		WaitTimeSeconds:     aws.Int64(q.waitSeconds),
		VisibilityTimeout:   aws.Int64(q.visibilityTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("receive message: %v", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	msg := out.Messages[0]
	return &Message{
		ID:      aws.StringValue(msg.MessageId),
		Receipt: aws.StringValue(msg.ReceiptHandle),
		Body:    aws.StringValue(msg.Body),
	}, nil
}

// Delete acknowledges a message. An undeleted message reappears after the
// visibility timeout, which is how failed attempts get redelivered.
func (q *SQSQueue) Delete(receipt string) error {
	_, err := q.client.DeleteMessage(&sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("delete message: %v", err)
	}
	return nil
}
