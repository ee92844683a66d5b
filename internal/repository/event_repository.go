package repository

import (
	"context"
	"database/sql"

	"github.com/ArRuslan/ticketer/internal/model"
)

const planColumns = `id, event_id, name, price_cents, max_tickets`

func scanPlan(row interface{ Scan(...interface{}) error }) (model.Plan, error) {
	var p model.Plan
	err := row.Scan(&p.ID, &p.EventID, &p.Name, &p.PriceCents, &p.Capacity)
	return p, err
}

// LockPlan reads the plan with SELECT ... FOR UPDATE.  The row lock is held
// until commit, so concurrent reservations of the same plan queue up
// behind each other while reservations of other plans proceed.
func (t *sqlTx) LockPlan(ctx context.Context, planID uint64) (model.Plan, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+planColumns+` FROM event_plans WHERE id = ? FOR UPDATE`, planID)
	p, err := scanPlan(row)
	return p, notFound(err)
}

// GetPlan reads a plan without locking it.
func (t *sqlTx) GetPlan(ctx context.Context, planID uint64) (model.Plan, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+planColumns+` FROM event_plans WHERE id = ?`, planID)
	p, err := scanPlan(row)
	return p, notFound(err)
}

// ListPlans returns the plans of an event ordered by id.
func (t *sqlTx) ListPlans(ctx context.Context, eventID uint64) ([]model.Plan, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+planColumns+` FROM event_plans WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var plans []model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// GetEvent reads an event by id.
func (t *sqlTx) GetEvent(ctx context.Context, eventID uint64) (model.Event, error) {
	var (
		e   model.Event
		end sql.NullTime
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name, description, category, start_time, end_time, manager_id FROM events WHERE id = ?`,
		eventID).Scan(&e.ID, &e.Name, &e.Description, &e.Category, &e.StartTime, &end, &e.ManagerID)
	if err != nil {
		return model.Event{}, notFound(err)
	}
	if end.Valid {
		et := end.Time
		e.EndTime = &et
	}
	return e, nil
}
