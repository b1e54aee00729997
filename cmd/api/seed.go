package main

import (
	"context"
	"fmt"
	"time"

	"condominio.app/internal/auth"
	"condominio.app/internal/condo"
)

const demoPassword = "password123"

// seedMemory loads the demo data of ops/migrations/seeds, plus two monthly
// expenses, for runs with DB_DRIVER=memory.
func seedMemory(ctx context.Context, svc *auth.Service, store *condo.MemoryStore) error {
	accounts := []struct {
		email, name string
		role        auth.Role
	}{
		{"admin@condominio.cl", "Administrador General", auth.RoleAdministrator},
		{"conserje@condominio.cl", "Pedro Conserje", auth.RoleConcierge},
		{"residente@condominio.cl", "María Residente", auth.RoleResident},
	}
	ids := make(map[auth.Role]int64, len(accounts))
	for _, a := range accounts {
		ident, err := svc.CreateAccount(ctx, auth.Registration{Email: a.email, Password: demoPassword, FullName: a.name, Role: a.role})
		if err != nil {
			return fmt.Errorf("seed %s: %w", a.email, err)
		}
		ids[a.role] = ident.ID
		store.AddPerson(condo.ResidentContact{ID: ident.ID, Name: ident.FullName, Email: ident.Email}, a.role == auth.RoleResident)
	}

	c := store.AddCondominium(condo.Condominium{Name: "Condominio Los Robles", Address: "Av. Los Robles 1234, Santiago"})
	unit := store.AddUnit(condo.HousingUnit{CondominiumID: c.ID, Number: "Dpto 101", FixedChargeUF: 2.5, ResidentIDs: []int64{ids[auth.RoleResident]}})
	store.AddUnit(condo.HousingUnit{CondominiumID: c.ID, Number: "Dpto 102", FixedChargeUF: 2.5})
	store.AddSpace(condo.CommonSpace{CondominiumID: c.ID, Name: "Quincho", RequiresPayment: true})
	store.AddSpace(condo.CommonSpace{CondominiumID: c.ID, Name: "Sala de eventos"})

	now := time.Now().UTC()
	due := time.Date(now.Year(), now.Month(), 5, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	prev := due.AddDate(0, -1, 0)
	store.AddExpense(condo.Expense{UnitID: unit.ID, Month: int(prev.Month()), Year: prev.Year(), Total: 85000, Status: condo.ExpensePaid, DueDate: &prev, CreatedAt: now})
	store.AddExpense(condo.Expense{UnitID: unit.ID, Month: int(due.Month()), Year: due.Year(), Total: 85000, DueDate: &due, CreatedAt: now})
	return nil
}
