package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

// StageChangeHandler é o MirrorStageChangeUseCase em produção.
type StageChangeHandler interface {
	Execute(ctx context.Context, change entity.StageChange) error
}

type consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type Worker struct {
	Channel consumer
	Handler StageChangeHandler
}

func NewWorker(ch consumer, handler StageChangeHandler) *Worker {
	return &Worker{Channel: ch, Handler: handler}
}

// Start consome até o ctx ser cancelado ou o canal fechar.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(
		queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("falha ao registrar consumidor RabbitMQ: %w", err)
	}

	log := logger.Get()
	log.WithField("queue", queueName).Info("worker aguardando mensagens")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				log.WithField("queue", queueName).Warn("canal de consumo fechado")
				return nil
			}
			w.handle(ctx, d)
		}
	}
}

// handle confirma em sucesso. JSON inválido e falha de integração vão para
// a DLQ sem requeue.
func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	log := logger.Get()

	var change entity.StageChange
	if err := json.Unmarshal(d.Body, &change); err != nil {
		logger.LogError(log, "queue", "Worker.handle", "JSON inválido", string(d.Body), err)
		d.Nack(false, false)
		return
	}

	fields := logrus.Fields{
		"record_id": change.RecordID,
		"to_stage":  change.ToStage,
	}

	if err := w.Handler.Execute(ctx, change); err != nil {
		logger.LogError(log, "queue", "Worker.handle", "falha ao processar transição", fields, err)
		d.Nack(false, false)
		return
	}

	log.WithFields(fields).Debug("transição processada")
	d.Ack(false)
}
