package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/repository"
	"github.com/ArRuslan/ticketer/internal/utils"
)

// seedFile is the JSON layout of SEED_FILE for the memory store.
type seedFile struct {
	Users []struct {
		Email     string     `json:"email"`
		Password  string     `json:"password"`
		FirstName string     `json:"first_name"`
		LastName  string     `json:"last_name"`
		Role      model.Role `json:"role"`
	} `json:"users"`
	Events []struct {
		Name         string     `json:"name"`
		Description  string     `json:"description"`
		Category     string     `json:"category"`
		StartTime    time.Time  `json:"start_time"`
		EndTime      *time.Time `json:"end_time"`
		ManagerEmail string     `json:"manager_email"`
		Plans        []struct {
			Name       string `json:"name"`
			PriceCents int64  `json:"price_cents"`
			Capacity   int    `json:"capacity"`
		} `json:"plans"`
	} `json:"events"`
}

// loadSeed creates the users and events described in path and returns the
// number of events added.
func loadSeed(ctx context.Context, store *repository.MemoryStore, path string, bcryptCost int) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var sf seedFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}

	managers := map[string]uint64{}
	err = store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, su := range sf.Users {
			hash, err := utils.HashPassword(su.Password, bcryptCost)
			if err != nil {
				return fmt.Errorf("user %s: %w", su.Email, err)
			}
			email := su.Email
			u := &model.User{Email: &email, PasswordHash: &hash, FirstName: su.FirstName, LastName: su.LastName, Role: su.Role}
			if err := tx.CreateUser(ctx, u); err != nil {
				return fmt.Errorf("user %s: %w", su.Email, err)
			}
			managers[*u.Email] = u.ID
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, se := range sf.Events {
		managerID, ok := managers[se.ManagerEmail]
		if se.ManagerEmail != "" && !ok {
			return 0, fmt.Errorf("event %q: unknown manager %s", se.Name, se.ManagerEmail)
		}
		ev := store.AddEvent(model.Event{
			Name:        se.Name,
			Description: se.Description,
			Category:    se.Category,
			StartTime:   se.StartTime.UTC(),
			EndTime:     se.EndTime,
			ManagerID:   managerID,
		})
		for _, sp := range se.Plans {
			if sp.Capacity < 1 || sp.PriceCents < 0 {
				return 0, fmt.Errorf("event %q plan %q: invalid capacity or price", se.Name, sp.Name)
			}
			store.AddPlan(model.Plan{EventID: ev.ID, Name: sp.Name, PriceCents: sp.PriceCents, Capacity: sp.Capacity})
		}
	}
	return len(sf.Events), nil
}
