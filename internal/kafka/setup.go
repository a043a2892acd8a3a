package kafka

import (
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/garagehub/billing-service/pkg/logger"
)

// EnsureTopics creates the billing topic if it does not exist yet.
func EnsureTopics(brokers []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("kafka: failed to dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka: failed to get controller: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka: failed to dial controller: %w", err)
	}
	defer controllerConn.Close()

	topicConfig := kafka.TopicConfig{
		Topic:             TopicBillingEvents,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}

	if err := controllerConn.CreateTopics(topicConfig); err != nil {
		return fmt.Errorf("kafka: failed to create topics: %w", err)
	}

	log.Infow("Kafka topics ensured", "topic", TopicBillingEvents)
	return nil
}
