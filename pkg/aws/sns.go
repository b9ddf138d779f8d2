package aws

import (
	"context"
	"fmt"
	"strconv"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// MessageAttribute is a typed SNS message attribute. Subscription filter
// policies match on these, e.g. a numeric range on a "Number" attribute.
type MessageAttribute struct {
	DataType string
	Value    string
}

// NumberAttribute builds a "Number" attribute.
func NumberAttribute(v float64) MessageAttribute {
	return MessageAttribute{DataType: "Number", Value: strconv.FormatFloat(v, 'f', -1, 64)}
}

// StringAttribute builds a "String" attribute.
func StringAttribute(v string) MessageAttribute {
	return MessageAttribute{DataType: "String", Value: v}
}

// SNSPublisher is a minimal interface for publishing messages to SNS.
type SNSPublisher interface {
	Publish(ctx context.Context, topicArn string, message []byte, attributes map[string]MessageAttribute) error
}

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	api snsAPI
}

func NewSNSClient(cfg sdkaws.Config) *SNSClient {
	return &SNSClient{api: sns.NewFromConfig(cfg)}
}

// Publish publishes a raw message with optional typed attributes to the
// given topic ARN.
func (s *SNSClient) Publish(ctx context.Context, topicArn string, message []byte, attributes map[string]MessageAttribute) error {
	if topicArn == "" {
		return fmt.Errorf("empty topicArn")
	}

	input := &sns.PublishInput{
		TopicArn: &topicArn,
		Message:  sdkaws.String(string(message)),
	}
	if len(attributes) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attributes))
		for name, attr := range attributes {
			input.MessageAttributes[name] = types.MessageAttributeValue{
				DataType:    sdkaws.String(attr.DataType),
				StringValue: sdkaws.String(attr.Value),
			}
		}
	}

	if _, err := s.api.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish failed for topic %s: %w", topicArn, err)
	}
	return nil
}
