package mqtt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const defaultConnectTimeout = 10 * time.Second

// Options configures a broker connection.
type Options struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	// ManualAck disables automatic acknowledgement so handlers call Message.Ack themselves.
	ManualAck        bool
	OnConnect        paho.OnConnectHandler
	OnConnectionLost paho.ConnectionLostHandler
}

// NewClient connects to the broker and waits for the CONNACK within ConnectTimeout.
// The client reconnects on its own afterwards; OnConnect runs after every (re)connect,
// which is where subscriptions belong.
func NewClient(opts Options) (paho.Client, error) {
	broker := strings.TrimSpace(opts.BrokerURL)
	if broker == "" {
		return nil, errors.New("mqtt: broker url is empty")
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(opts.ClientID).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(timeout).
		SetAutoAckDisabled(opts.ManualAck)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}
	if opts.OnConnect != nil {
		clientOpts.SetOnConnectHandler(opts.OnConnect)
	}
	if opts.OnConnectionLost != nil {
		clientOpts.SetConnectionLostHandler(opts.OnConnectionLost)
	}

	client := paho.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt: connect to %s timed out after %s", broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", broker, err)
	}
	return client, nil
}
