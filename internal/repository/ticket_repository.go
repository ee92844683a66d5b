package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ArRuslan/ticketer/internal/model"
)

// detailsQuery joins a ticket with its payment, plan and event.  The
// payment is LEFT JOINed so that a ticket without payment surfaces as
// ErrInvariant instead of silently disappearing.
const detailsQuery = `
SELECT t.id, t.user_id, t.event_plan_id, t.amount, t.created_at,
       p.id, p.state, p.paypal_id, p.expires_at,
       ep.id, ep.event_id, ep.name, ep.price_cents, ep.max_tickets,
       e.id, e.name, e.description, e.category, e.start_time, e.end_time, e.manager_id
FROM tickets t
LEFT JOIN payments p ON p.ticket_id = t.id
JOIN event_plans ep ON ep.id = t.event_plan_id
JOIN events e ON e.id = ep.event_id`

func scanDetails(row interface{ Scan(...interface{}) error }) (model.TicketDetails, error) {
	var (
		d         model.TicketDetails
		payID     sql.NullInt64
		payState  sql.NullInt64
		orderID   sql.NullString
		payExpiry sql.NullTime
		eventEnd  sql.NullTime
	)
	err := row.Scan(
		&d.Ticket.ID, &d.Ticket.UserID, &d.Ticket.PlanID, &d.Ticket.Amount, &d.Ticket.CreatedAt,
		&payID, &payState, &orderID, &payExpiry,
		&d.Plan.ID, &d.Plan.EventID, &d.Plan.Name, &d.Plan.PriceCents, &d.Plan.Capacity,
		&d.Event.ID, &d.Event.Name, &d.Event.Description, &d.Event.Category, &d.Event.StartTime, &eventEnd, &d.Event.ManagerID,
	)
	if err != nil {
		return model.TicketDetails{}, err
	}
	if !payID.Valid {
		return model.TicketDetails{}, fmt.Errorf("ticket %d has no payment: %w", d.Ticket.ID, ErrInvariant)
	}
	d.Payment = model.Payment{
		ID:        uint64(payID.Int64),
		TicketID:  d.Ticket.ID,
		State:     model.PaymentState(payState.Int64),
		ExpiresAt: payExpiry.Time,
	}
	if orderID.Valid {
		o := orderID.String
		d.Payment.OrderID = &o
	}
	if eventEnd.Valid {
		e := eventEnd.Time
		d.Event.EndTime = &e
	}
	return d, nil
}

// PurgeExpired removes void tickets of a plan along with their payments.
func (t *sqlTx) PurgeExpired(ctx context.Context, planID uint64, now time.Time) ([]uint64, error) {
	return t.purge(ctx, `t.event_plan_id = ?`, planID, now)
}

// PurgeExpiredForUser removes void tickets of a buyer along with their payments.
func (t *sqlTx) PurgeExpiredForUser(ctx context.Context, userID uint64, now time.Time) ([]uint64, error) {
	return t.purge(ctx, `t.user_id = ?`, userID, now)
}

// purge locks the void candidates before deleting them, and the deletes
// repeat the void condition, so a ticket paid or re-held by a concurrent
// transaction after it was selected survives.
func (t *sqlTx) purge(ctx context.Context, cond string, arg uint64, now time.Time) ([]uint64, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT t.id FROM tickets t JOIN payments p ON p.ticket_id = t.id
		 WHERE `+cond+` AND p.state <> ? AND p.expires_at <= ? FOR UPDATE OF t, p`,
		arg, int(model.PaymentDone), now.UTC())
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []uint64{}, nil
	}

	in, args := placeholders(ids)
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM payments WHERE ticket_id IN (`+in+`) AND state <> ? AND expires_at <= ?`,
		append(args, int(model.PaymentDone), now.UTC())...); err != nil {
		return nil, err
	}
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM tickets WHERE id IN (`+in+`)
		 AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.ticket_id = tickets.id)`,
		args...); err != nil {
		return nil, err
	}
	return ids, nil
}

func (t *sqlTx) deleteTickets(ctx context.Context, ids []uint64) error {
	in, args := placeholders(ids)
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM payments WHERE ticket_id IN (`+in+`)`, args...); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `DELETE FROM tickets WHERE id IN (`+in+`)`, args...)
	return err
}

// ReservedAmount sums the units held by all tickets of a plan.
func (t *sqlTx) ReservedAmount(ctx context.Context, planID uint64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM tickets WHERE event_plan_id = ?`, planID).Scan(&n)
	return n, err
}

// CreateTicket inserts a ticket and its payment.
func (t *sqlTx) CreateTicket(ctx context.Context, tk *model.Ticket, p *model.Payment) error {
	if tk.CreatedAt.IsZero() {
		tk.CreatedAt = time.Now().UTC()
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO tickets (user_id, event_plan_id, amount, created_at) VALUES (?, ?, ?, ?)`,
		tk.UserID, tk.PlanID, tk.Amount, tk.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	tk.ID = uint64(id)
	p.TicketID = tk.ID

	res, err = t.tx.ExecContext(ctx,
		`INSERT INTO payments (ticket_id, state, paypal_id, expires_at) VALUES (?, ?, ?, ?)`,
		p.TicketID, int(p.State), p.OrderID, p.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetTicket reads a ticket owned by userID.
func (t *sqlTx) GetTicket(ctx context.Context, ticketID, userID uint64) (model.TicketDetails, error) {
	d, err := scanDetails(t.tx.QueryRowContext(ctx, detailsQuery+` WHERE t.id = ? AND t.user_id = ?`, ticketID, userID))
	return d, notFound(err)
}

// LockTicket reads a ticket owned by userID and locks the ticket and
// payment rows until commit.
func (t *sqlTx) LockTicket(ctx context.Context, ticketID, userID uint64) (model.TicketDetails, error) {
	d, err := scanDetails(t.tx.QueryRowContext(ctx,
		detailsQuery+` WHERE t.id = ? AND t.user_id = ? FOR UPDATE OF t, p`, ticketID, userID))
	return d, notFound(err)
}

// FindTicket reads a ticket regardless of owner.
func (t *sqlTx) FindTicket(ctx context.Context, ticketID uint64) (model.TicketDetails, error) {
	d, err := scanDetails(t.tx.QueryRowContext(ctx, detailsQuery+` WHERE t.id = ?`, ticketID))
	return d, notFound(err)
}

// ListTickets returns all tickets of a buyer ordered by id.
func (t *sqlTx) ListTickets(ctx context.Context, userID uint64) ([]model.TicketDetails, error) {
	rows, err := t.tx.QueryContext(ctx, detailsQuery+` WHERE t.user_id = ? ORDER BY t.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TicketDetails
	for rows.Next() {
		d, err := scanDetails(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdatePayment persists the mutable payment columns.
func (t *sqlTx) UpdatePayment(ctx context.Context, p model.Payment) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE payments SET state = ?, paypal_id = ?, expires_at = ? WHERE id = ?`,
		int(p.State), p.OrderID, p.ExpiresAt.UTC(), p.ID)
	return err
}

// DeleteTicket removes a ticket and its payment.
func (t *sqlTx) DeleteTicket(ctx context.Context, ticketID uint64) error {
	return t.deleteTickets(ctx, []uint64{ticketID})
}
