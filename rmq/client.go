package rmq

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"carelens.com/stitch/logger"
)

type Config struct {
	Host                    string `envconfig:"CLS_COMN_RMQ_HOST" required:"true"`
	Port                    string `envconfig:"CLS_COMN_RMQ_PORT" required:"true"`
	Username                string `envconfig:"CLS_COMN_RMQ_USERNAME" required:"true"`
	Password                string `envconfig:"CLS_COMN_RMQ_PASSWORD" required:"true"`
	Exchange                string `envconfig:"CLS_COMN_RMQ_DEFAULT_EXCHANGE" default:"carelens-default-exchange"`
	MaxParallelRequestCount int    `envconfig:"STITCH_MQ_MAX_PARALLEL_REQUESTS" default:"5"`
	StitchTaskQueue         string `envconfig:"CLS_COMN_STITCH_TASK_QUEUE" required:"true"`
	ResultsQueue            string `envconfig:"CLS_COMN_STITCH_RESULTS_QUEUE" required:"true"`
}

// Client consumes stitch requests and publishes completion notices. Consume
// and publish run on separate connections so a poisoned consumer channel
// cannot take the publisher down with it.
type Client struct {
	Deliveries        <-chan amqp.Delivery
	ConsumeChanErrors <-chan *amqp.Error
	PublishChanErrors <-chan *amqp.Error
	config            Config
	consumeConn       *amqp.Connection
	publishConn       *amqp.Connection
	publishChannel    *amqp.Channel
	log               *zerolog.Logger
}

func NewClient() (*Client, error) {
	log := logger.NewLogger("RMQ client")
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}

	url := fmt.Sprintf("amqp://%s:%s@%s:%s", config.Username, config.Password, config.Host, config.Port)

	consumeConn, consumeChannel, err := dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed consume connection: %w", err)
	}
	publishConn, publishChannel, err := dial(url)
	if err != nil {
		_ = consumeConn.Close()
		return nil, fmt.Errorf("failed publish connection: %w", err)
	}

	queue, err := consumeChannel.QueueDeclarePassive(
		config.StitchTaskQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, err
	}
	if err := consumeChannel.QueueBind(
		config.StitchTaskQueue,
		config.StitchTaskQueue,
		config.Exchange,
		false,
		nil); err != nil {
		return nil, err
	}
	if err := consumeChannel.Qos(config.MaxParallelRequestCount, 0, false); err != nil {
		return nil, fmt.Errorf("qos: %w", err)
	}
	deliveries, err := consumeChannel.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume deliveries: %w", err)
	}

	return &Client{
		Deliveries:        deliveries,
		ConsumeChanErrors: consumeChannel.NotifyClose(make(chan *amqp.Error)),
		PublishChanErrors: publishChannel.NotifyClose(make(chan *amqp.Error)),
		config:            config,
		consumeConn:       consumeConn,
		publishConn:       publishConn,
		publishChannel:    publishChannel,
		log:               &log,
	}, nil
}

// PublishResult sends a completion message to the results queue.
func (c *Client) PublishResult(msg amqp.Publishing) error {
	return c.publishChannel.Publish(
		c.config.Exchange,
		c.config.ResultsQueue,
		false,
		false,
		msg)
}

func (c *Client) Close() {
	_ = c.consumeConn.Close()
	_ = c.publishConn.Close()
}

func dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
