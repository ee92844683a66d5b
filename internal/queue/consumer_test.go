package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArRuslan/ticketer/internal/model"
)

func sampleEvent() TicketEvent {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d := model.TicketDetails{
		Ticket:  model.Ticket{ID: 5, UserID: 2, PlanID: 3, Amount: 2},
		Payment: model.Payment{State: model.PaymentAwaitingVerification, ExpiresAt: now.Add(model.VerificationHold)},
		Plan:    model.Plan{ID: 3, EventID: 4},
	}
	return NewTicketEvent(TicketReserved, d, now)
}

func TestNewTicketEvent(t *testing.T) {
	ev := sampleEvent()
	assert.Equal(t, TicketEvent{
		Type:         "ticket.reserved",
		TicketID:     5,
		UserID:       2,
		PlanID:       3,
		EventID:      4,
		Amount:       2,
		PaymentState: "AWAITING_VERIFICATION",
		ExpiresAt:    time.Date(2026, 5, 1, 12, 15, 0, 0, time.UTC).Unix(),
		OccurredAt:   "2026-05-01T12:00:00Z",
	}, ev)
}

func TestHandleMessageAppendsLine(t *testing.T) {
	dir := t.TempDir()
	body, err := json.Marshal(sampleEvent())
	require.NoError(t, err)

	require.NoError(t, handleMessage(dir, body))
	require.NoError(t, handleMessage(dir, body))

	raw, err := os.ReadFile(filepath.Join(dir, "tickets.log"))
	require.NoError(t, err)
	line := FormatLine(sampleEvent())
	assert.Equal(t, line+line, string(raw))
	assert.Contains(t, line, "ticket.reserved | ticket_id=5 | user_id=2")
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, handleMessage(dir, []byte("not json")))
	assert.Error(t, handleMessage(dir, []byte(`{"type":""}`)))

	_, err := os.Stat(filepath.Join(dir, "tickets.log"))
	assert.True(t, os.IsNotExist(err))
}
