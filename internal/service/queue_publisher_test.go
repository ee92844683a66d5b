package queue_publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	q "github.com/ArRuslan/ticketer/internal/queue"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	ret := m.Called(name, durable)
	return amqp.Queue{Name: name}, ret.Error(0)
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(key, msg).Error(0)
}

func (m *mockChannel) Close() error { return m.Called().Error(0) }

func newTestPublisher(chs ...*mockChannel) (*Publisher, *int) {
	dials := 0
	return &Publisher{dial: func() (channel, func(), error) {
		if dials >= len(chs) {
			return nil, nil, errors.New("broker down")
		}
		ch := chs[dials]
		dials++
		return ch, func() {}, nil
	}}, &dials
}

func TestPublishTicketEvent(t *testing.T) {
	ch := &mockChannel{}
	ch.On("QueueDeclare", q.TicketsQueue, true).Return(nil).Once()
	var sent []amqp.Publishing
	ch.On("PublishWithContext", q.TicketsQueue, mock.Anything).
		Run(func(args mock.Arguments) { sent = append(sent, args.Get(1).(amqp.Publishing)) }).
		Return(nil)

	p, dials := newTestPublisher(ch)
	ev := q.TicketEvent{Type: q.TicketPaid, TicketID: 9, UserID: 1}
	require.NoError(t, p.PublishTicketEvent(context.Background(), ev))
	require.NoError(t, p.PublishTicketEvent(context.Background(), ev))

	assert.Equal(t, 1, *dials)
	require.Len(t, sent, 2)
	assert.Equal(t, amqp.Persistent, sent[0].DeliveryMode)
	assert.Equal(t, "ticket.paid", sent[0].Type)
	_, err := uuid.Parse(sent[0].MessageId)
	assert.NoError(t, err)
	assert.NotEqual(t, sent[0].MessageId, sent[1].MessageId)

	var got q.TicketEvent
	require.NoError(t, json.Unmarshal(sent[0].Body, &got))
	assert.Equal(t, ev, got)
	ch.AssertExpectations(t)
}

func TestPublishRedialsAfterFailure(t *testing.T) {
	bad := &mockChannel{}
	bad.On("QueueDeclare", q.TicketsQueue, true).Return(nil)
	bad.On("PublishWithContext", q.TicketsQueue, mock.Anything).Return(errors.New("channel closed"))
	bad.On("Close").Return(nil)

	good := &mockChannel{}
	good.On("QueueDeclare", q.TicketsQueue, true).Return(nil)
	good.On("PublishWithContext", q.TicketsQueue, mock.Anything).Return(nil)

	p, dials := newTestPublisher(bad, good)
	ev := q.TicketEvent{Type: q.TicketReserved, TicketID: 1}
	assert.Error(t, p.PublishTicketEvent(context.Background(), ev))
	assert.NoError(t, p.PublishTicketEvent(context.Background(), ev))
	assert.Equal(t, 2, *dials)
	bad.AssertCalled(t, "Close")
}

func TestPublishFailsWhenBrokerUnreachable(t *testing.T) {
	p, _ := newTestPublisher()
	assert.Error(t, p.PublishTicketEvent(context.Background(), q.TicketEvent{Type: q.TicketReserved, TicketID: 1}))
}
