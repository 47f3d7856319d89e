// Package kafka provides the Kafka-backed Watermill channel.
package kafka

import (
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
)

var errNoBrokers = errors.New("no Kafka brokers configured")

// CreateChannel connects a publisher and a subscriber to brokers. Subscribers
// join the consumer group "cg-" + serviceName and start from the oldest offset.
func CreateChannel(logger watermill.LoggerAdapter, brokers []string, serviceName string) (*kafka.Publisher, *kafka.Subscriber, error) {
	if len(brokers) == 0 || brokers[0] == "" {
		return nil, nil, errNoBrokers
	}

	subscriber, err := newSubscriber(logger, brokers, "cg-"+serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
	}

	publisher, err := newPublisher(logger, brokers)
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("failed to create kafka publisher: %w", err), subscriber.Close())
	}

	return publisher, subscriber, nil
}

func newSubscriber(logger watermill.LoggerAdapter, brokers []string, group string) (*kafka.Subscriber, error) {
	saramaConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	return kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               brokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: saramaConfig,
		ConsumerGroup:         group,
		OTELEnabled:           true,
	}, logger)
}

// Publish returns once every in-sync replica has the message.
func newPublisher(logger watermill.LoggerAdapter, brokers []string) (*kafka.Publisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll

	return kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:               brokers,
		Marshaler:             kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: saramaConfig,
		OTELEnabled:           true,
	}, logger)
}
