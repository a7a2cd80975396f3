package publish

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Rajchodisetti/chaingate/internal/chain"
	"github.com/Rajchodisetti/chaingate/internal/observ"
)

// DefaultPrefix is the channel prefix used when none is configured.
const DefaultPrefix = "chain"

// Publisher is the subset of a Redis client used for publication.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// CandidatePublisher pushes candidate sets to subscribers as JSON, one channel per
// spec: "<prefix>.<spec name>".
type CandidatePublisher struct {
	client Publisher
	prefix string
}

// NewRedisClient builds a client for addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewCandidatePublisher(client Publisher, prefix string) *CandidatePublisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &CandidatePublisher{client: client, prefix: prefix}
}

// Channel is the channel a spec's candidate sets are published on.
func (p *CandidatePublisher) Channel(spec string) string {
	return p.prefix + "." + spec
}

// Encode is the published payload of cs.
func Encode(cs chain.CandidateSet) ([]byte, error) {
	return json.Marshal(cs)
}

// Publish sends cs and returns the number of subscribers that received it.
func (p *CandidatePublisher) Publish(ctx context.Context, cs chain.CandidateSet) (int64, error) {
	payload, err := Encode(cs)
	if err != nil {
		return 0, errors.Wrap(err, "encode candidate set")
	}
	channel := p.Channel(cs.Spec)
	n, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		observ.IncCounter("candidates_published_total", map[string]string{"spec": cs.Spec, "outcome": "error"})
		return 0, errors.Wrapf(err, "publish %s", channel)
	}
	observ.IncCounter("candidates_published_total", map[string]string{"spec": cs.Spec, "outcome": "ok"})
	observ.Log("candidates_published", map[string]any{
		"channel":     channel,
		"candidates":  cs.Len(),
		"subscribers": n,
	})
	return n, nil
}
