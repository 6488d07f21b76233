package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"projecthub/pkg/config"
)

// 业务事件走 topic 交换机，失败消息进入同构的死信交换机
const (
	ExchangeName    = "projecthub.events"
	DLQExchangeName = "projecthub.events.dlq"
)

const (
	RoutingInvitationCreated  = "invitation.created"
	RoutingInvitationAccepted = "invitation.accepted"
	RoutingInvitationRejected = "invitation.rejected"
)

// Dial 连接 broker，role 会出现在管理界面的连接名里
func Dial(cfg config.MQConfig, role string) (*amqp091.Connection, error) {
	props := amqp091.NewConnectionProperties()
	props.SetClientConnectionName(connectionName(cfg.ConnectionName, role))

	conn, err := amqp091.DialConfig(cfg.URL, amqp091.Config{Properties: props})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	return conn, nil
}

func connectionName(base, role string) string {
	switch {
	case base == "":
		return role
	case role == "":
		return base
	}
	return base + "." + role
}

// openChannel 打开 channel 并声明两个交换机，失败时关闭连接
func openChannel(conn *amqp091.Connection) (*amqp091.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	for _, name := range []string{ExchangeName, DLQExchangeName} {
		// durable topic, 不自动删除
		if err := ch.ExchangeDeclare(name, amqp091.ExchangeTopic, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return ch, nil
}

// bindQueue 声明持久队列并绑定到 exchange
func bindQueue(ch *amqp091.Channel, queue, routingKey, exchange string) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("bind queue %s: %w", queue, err)
	}
	return q, nil
}
