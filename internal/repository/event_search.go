package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ArRuslan/ticketer/internal/model"
)

// EventSearchQuery defines filters, ordering and pagination for searching
// events.  Zero values disable a filter.
type EventSearchQuery struct {
	Name     string // substring of the name, case-insensitive
	Category string // exact category
	TimeMin  *time.Time
	TimeMax  *time.Time
	SortBy   string // name, category or start_time; empty keeps id order
	SortDesc bool
	Page     int // 1-based
	PageSize int
}

var sortColumns = map[string]string{
	"name":       "name",
	"category":   "category",
	"start_time": "start_time",
}

// Normalize clamps paging to [1, ...] and [5, 50] and drops unknown sort
// keys.
func (q EventSearchQuery) Normalize() EventSearchQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 5 {
		q.PageSize = 5
	}
	if q.PageSize > 50 {
		q.PageSize = 50
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		q.SortBy = ""
	}
	return q
}

// SearchEvents returns one page of events matching q.
func (t *sqlTx) SearchEvents(ctx context.Context, q EventSearchQuery) ([]model.Event, error) {
	q = q.Normalize()
	where := []string{}
	args := []interface{}{}

	if q.Name != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Name)+"%")
	}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, q.Category)
	}
	if q.TimeMin != nil {
		where = append(where, "start_time >= ?")
		args = append(args, q.TimeMin.UTC())
	}
	if q.TimeMax != nil {
		where = append(where, "start_time <= ?")
		args = append(args, q.TimeMax.UTC())
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	order := "id ASC"
	if col := sortColumns[q.SortBy]; col != "" {
		dir := "ASC"
		if q.SortDesc {
			dir = "DESC"
		}
		order = col + " " + dir + ", id ASC"
	}

	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, name, description, category, start_time, end_time, manager_id
		 FROM events WHERE `+cond+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, q.PageSize, (q.Page-1)*q.PageSize)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Event, 0, q.PageSize)
	for rows.Next() {
		var (
			e   model.Event
			end sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.Category, &e.StartTime, &end, &e.ManagerID); err != nil {
			return nil, err
		}
		if end.Valid {
			et := end.Time
			e.EndTime = &et
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
