package storage

import (
	"encoding/json"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/Shopify/sarama"

	"github.com/openseis/seisvol/seisvol"
)

var (
	// producer
	kafkaProducer sarama.AsyncProducer

	// the kafka topic for activity logging
	kafkaActivityTopicName string

	// the kafka topic for volume and survey mutations
	kafkaMutationTopicName string

	failedMu      sync.RWMutex
	failedHandler func(topic string, msg []byte)
)

// KafkaMaxMessageSize is the max message size in bytes for a Kafka message.
const KafkaMaxMessageSize = 980 * seisvol.Kilo

// KafkaConfig describes kafka servers and the topics used for activity and
// mutation logging.
type KafkaConfig struct {
	TopicActivity string // if supplied, will be override topic for activity log
	TopicMutation string // if supplied, will be override topic for mutations
	Servers       []string
	BufferSize    int // producer channel buffer size
}

var topicCleaner = regexp.MustCompile(`[^a-zA-Z0-9\._\-]+`)

// KafkaActivityTopic returns the topic name used for logging activity for this server.
func KafkaActivityTopic() string {
	return kafkaActivityTopicName
}

// KafkaMutationTopic returns the topic name used for logging mutations.
func KafkaMutationTopic() string {
	return kafkaMutationTopicName
}

// SetFailedMessageHandler sets where mutation messages go when kafka
// reports a send failure.
func SetFailedMessageHandler(f func(topic string, msg []byte)) {
	failedMu.Lock()
	failedHandler = f
	failedMu.Unlock()
}

// setTopics names the activity and mutation topics for this host.
func (kc KafkaConfig) setTopics(hostID string) {
	if kc.TopicActivity != "" {
		kafkaActivityTopicName = kc.TopicActivity
	} else {
		kafkaActivityTopicName = "seisvol-activity-" + hostID
	}
	kafkaActivityTopicName = topicCleaner.ReplaceAllString(kafkaActivityTopicName, "-")

	if kc.TopicMutation != "" {
		kafkaMutationTopicName = kc.TopicMutation
	} else {
		kafkaMutationTopicName = "seisvol-mutations-" + hostID
	}
	kafkaMutationTopicName = topicCleaner.ReplaceAllString(kafkaMutationTopicName, "-")
}

// Initialize sets up the activity and mutation topics and starts the producer.
// Nothing is done when no servers are configured.
func (kc KafkaConfig) Initialize(hostID string) error {
	kc.setTopics(hostID)
	if len(kc.Servers) == 0 {
		return nil
	}

	config := sarama.NewConfig()
	config.Producer.MaxMessageBytes = KafkaMaxMessageSize
	if kc.BufferSize > 0 {
		config.ChannelBufferSize = kc.BufferSize
	}
	var err error
	if kafkaProducer, err = sarama.NewAsyncProducer(kc.Servers, config); err != nil {
		return err
	}

	go func() {
		for err := range kafkaProducer.Errors() {
			seisvol.Errorf("error on kafka send: %v\n", err)
			if err.Msg.Topic != kafkaActivityTopicName {
				value, _ := err.Msg.Value.Encode()
				storeFailedMsg(err.Msg.Topic, value)
			}
		}
	}()
	seisvol.Infof("Kafka topic for seisvol activity: %s\n", kafkaActivityTopicName)
	seisvol.Infof("Kafka topic for mutations: %s\n", kafkaMutationTopicName)
	return nil
}

// KafkaShutdown makes sure that the kafka queue is flushed before stopping.
func KafkaShutdown() {
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			seisvol.Errorf("Kafka producer had error on close: %v\n", err)
		} else {
			seisvol.Infof("Successfully shut down kafka producer.\n")
		}
		kafkaProducer = nil
	} else {
		seisvol.Debugf("Kafka producer was nil so unnecessary to close.\n")
	}
}

// LogActivityToKafka publishes activity
func LogActivityToKafka(activity map[string]interface{}) {
	if kafkaProducer != nil {
		go func() {
			jsonmsg, err := json.Marshal(activity)
			if err != nil {
				seisvol.Errorf("unable to marshal activity for kafka logging: %v\n", err)
				return
			}
			if err := KafkaProduceMsg(jsonmsg, kafkaActivityTopicName); err != nil {
				seisvol.Errorf("unable to publish activity: %v\n", err)
			}
		}()
	}
}

// LogMutationToKafka publishes a volume or survey mutation.
func LogMutationToKafka(mutation map[string]interface{}) {
	if kafkaProducer == nil {
		return
	}
	jsonmsg, err := json.Marshal(mutation)
	if err != nil {
		seisvol.Errorf("unable to marshal mutation for kafka logging: %v\n", err)
		return
	}
	if err := KafkaProduceMsg(jsonmsg, kafkaMutationTopicName); err != nil {
		seisvol.Errorf("unable to publish mutation: %v\n", err)
	}
}

// KafkaProduceMsg sends a message to kafka
func KafkaProduceMsg(value []byte, topicName string) error {
	if kafkaProducer == nil {
		return nil
	}
	timeKey := sarama.StringEncoder(strconv.FormatInt(time.Now().UnixNano(), 10))
	msg := &sarama.ProducerMessage{Topic: topicName, Value: sarama.ByteEncoder(value), Key: timeKey}
	kafkaProducer.Input() <- msg
	return nil
}

// storeFailedMsg hands a failed message to any registered handler.
func storeFailedMsg(topic string, msg []byte) {
	failedMu.RLock()
	f := failedHandler
	failedMu.RUnlock()
	if f == nil {
		seisvol.Criticalf("unable to store failed kafka message to topic %q because no handler is set\n", topic)
		return
	}
	f(topic, msg)
}
