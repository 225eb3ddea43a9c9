// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"registry-workers/internal/dedup"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSService is the subset of the SNS API the alerter uses.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// DuplicateAlert is the message body published for a likely duplicate.
type DuplicateAlert struct {
	RequestID      string  `json:"requestId"`
	EntityType     string  `json:"entityType"`
	Recommendation string  `json:"recommendation"`
	TopScore       float64 `json:"topScore"`
	TopMatchID     string  `json:"topMatchId"`
	TotalMatches   int     `json:"totalMatches"`
	ProcessedAt    string  `json:"processedAt"`
}

// DuplicateAlerter publishes REJECT and REVIEW_REQUIRED outcomes to a topic.
type DuplicateAlerter struct {
	client   SNSService
	topicARN string
}

func NewDuplicateAlerter(client SNSService, topicARN string) *DuplicateAlerter {
	return &DuplicateAlerter{client: client, topicARN: topicARN}
}

// NewSNSDuplicateAlerter builds the alerter on the default AWS credential chain.
func NewSNSDuplicateAlerter(ctx context.Context, region, topicARN string) (*DuplicateAlerter, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewDuplicateAlerter(sns.NewFromConfig(cfg), topicARN), nil
}

// ObserveScan implements dedup.ScanObserver.
func (a *DuplicateAlerter) ObserveScan(ctx context.Context, event dedup.ScanEvent) error {
	if event.Err != nil || event.TopMatch == nil {
		return nil
	}
	if event.Recommendation != dedup.RecommendReject && event.Recommendation != dedup.RecommendReviewRequired {
		return nil
	}

	alert := DuplicateAlert{
		RequestID:      event.RequestID,
		EntityType:     event.EntityType,
		Recommendation: string(event.Recommendation),
		TopScore:       event.TopMatch.Similarity,
		TopMatchID:     event.TopMatch.ExistingID,
		TotalMatches:   event.TotalMatches,
		ProcessedAt:    event.ProcessedAt.UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal duplicate alert: %w", err)
	}

	_, err = a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(a.topicARN),
		Subject:  awssdk.String(fmt.Sprintf("Possible duplicate %s (%s)", event.EntityType, event.Recommendation)),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"entityType": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(event.EntityType),
			},
			"recommendation": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(string(event.Recommendation)),
			},
			"topScore": {
				DataType:    awssdk.String("Number"),
				StringValue: awssdk.String(strconv.FormatFloat(event.TopMatch.Similarity, 'f', 4, 64)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish duplicate alert: %w", err)
	}
	return nil
}
