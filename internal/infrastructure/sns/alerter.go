package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/guildgate/internal/config"
	"github.com/guildgate/internal/domain"
	"golang.org/x/time/rate"
)

// publisher is the subset of the SNS client the alerter needs.
type publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Alerter publishes raid alerts to an SNS topic, at most once per
// community per cooldown.
type Alerter struct {
	client   publisher
	topicARN string
	cooldown time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewAlerter builds an SNS client from cfg. When cfg.AWSEndpointURL is set
// (LocalStack) all traffic goes to that endpoint.
func NewAlerter(ctx context.Context, cfg *config.Config) (*Alerter, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var clientOpts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return newAlerter(sns.NewFromConfig(awsCfg, clientOpts...), cfg.RaidAlertTopicARN, cfg.RaidAlertCooldown), nil
}

func newAlerter(client publisher, topicARN string, cooldown time.Duration) *Alerter {
	return &Alerter{
		client:   client,
		topicARN: topicARN,
		cooldown: cooldown,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (a *Alerter) allow(communityID string) bool {
	if a.cooldown <= 0 {
		return true
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.limiters[communityID]
	if !ok {
		l = rate.NewLimiter(rate.Every(a.cooldown), 1)
		a.limiters[communityID] = l
	}
	return l.Allow()
}

type alertMessage struct {
	Type          string    `json:"type"`
	CommunityID   string    `json:"community_id"`
	CommunityName string    `json:"community_name"`
	Joins         int       `json:"joins"`
	WindowSeconds int       `json:"window_seconds"`
	At            time.Time `json:"at"`
}

// Alert publishes alert unless the community is still cooling down.
func (a *Alerter) Alert(ctx context.Context, alert domain.RaidAlert) error {
	if !a.allow(alert.CommunityID) {
		return nil
	}
	body, err := json.Marshal(alertMessage{
		Type:          "raid_detected",
		CommunityID:   alert.CommunityID,
		CommunityName: alert.CommunityName,
		Joins:         alert.Joins,
		WindowSeconds: int(alert.Window / time.Second),
		At:            alert.At.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal raid alert: %w", err)
	}
	_, err = a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicARN),
		Subject:  aws.String(fmt.Sprintf("Raid detected in %s", alert.CommunityName)),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("publish raid alert: %w", err)
	}
	return nil
}
