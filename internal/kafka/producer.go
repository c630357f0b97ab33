package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/ninerxsolution/trading-market/internal/goroutine"
	"github.com/ninerxsolution/trading-market/internal/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer пишет сообщения в топик из фоновой горутины.
// Publish не блокирует вызывающего: при полной очереди сообщение отбрасывается.
type Producer struct {
	w     messageWriter
	topic string
	inbox chan kafka.Message
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}, topic, buf)
}

func newProducer(w messageWriter, topic string, buf int) *Producer {
	if buf <= 0 {
		buf = 256
	}
	return &Producer{
		w:     w,
		topic: topic,
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
	}
}

// Start запускает цикл записи. Цикл завершается после Close, дописав очередь.
func (p *Producer) Start() {
	goroutine.SafeGo("kafka-producer", func() {
		defer close(p.done)
		for m := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.w.WriteMessages(ctx, m); err != nil {
				logger.Log.WithFields(logrus.Fields{
					"topic": p.topic,
					"key":   string(m.Key),
					"error": err.Error(),
				}).Error("kafka: не удалось записать сообщение")
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			logger.Log.WithError(err).Warn("kafka: ошибка закрытия writer")
		}
	})
}

// Publish ставит сообщение в очередь. Возвращает false, если сообщение отброшено.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return true
	default:
		logger.Log.WithFields(logrus.Fields{"topic": p.topic}).Warn("kafka: очередь переполнена, сообщение отброшено")
		return false
	}
}

// Close закрывает очередь и ждёт, пока фоновая горутина допишет сообщения.
func (p *Producer) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()
	<-p.done
}
