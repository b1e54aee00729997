package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"condominio.app/internal/auth"
	"condominio.app/internal/condo"
)

var _ condo.Store = (*Store)(nil)

const unitSelect = `
	select v.id, v.condominio_id, c.nombre, v.numero_vivienda, v.cargo_fijo_uf::float8
	from viviendas v
	join condominios c on c.id = v.condominio_id`

func (s *Store) ListUnits(ctx context.Context) ([]condo.HousingUnit, error) {
	return s.queryUnits(ctx, unitSelect+` order by v.numero_vivienda`)
}

func (s *Store) GetUnit(ctx context.Context, id int64) (condo.HousingUnit, error) {
	units, err := s.queryUnits(ctx, unitSelect+` where v.id = $1`, id)
	if err != nil {
		return condo.HousingUnit{}, err
	}
	if len(units) == 0 {
		return condo.HousingUnit{}, condo.ErrNotFound
	}
	return units[0], nil
}

func (s *Store) UnitsForUser(ctx context.Context, userID int64) ([]condo.HousingUnit, error) {
	return s.queryUnits(ctx, unitSelect+`
		join residentes_viviendas rv on rv.vivienda_id = v.id
		where rv.usuario_id = $1
		order by v.id`, userID)
}

func (s *Store) queryUnits(ctx context.Context, query string, args ...any) ([]condo.HousingUnit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []condo.HousingUnit
	for rows.Next() {
		var u condo.HousingUnit
		if err := rows.Scan(&u.ID, &u.CondominiumID, &u.CondominiumName, &u.Number, &u.FixedChargeUF); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return units, nil
	}
	return units, s.attachResidents(ctx, units)
}

func (s *Store) attachResidents(ctx context.Context, units []condo.HousingUnit) error {
	ids := make([]int64, len(units))
	index := make(map[int64]int, len(units))
	for i, u := range units {
		ids[i] = u.ID
		index[u.ID] = i
	}
	in, args := inList(1, ids)
	rows, err := s.db.QueryContext(ctx, `
		select vivienda_id, usuario_id from residentes_viviendas
		where vivienda_id in (`+in+`)
		order by usuario_id`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var unitID, userID int64
		if err := rows.Scan(&unitID, &userID); err != nil {
			return err
		}
		u := &units[index[unitID]]
		u.ResidentIDs = append(u.ResidentIDs, userID)
	}
	return rows.Err()
}

func (s *Store) UnitResidents(ctx context.Context, unitIDs []int64) (map[int64][]condo.ResidentContact, error) {
	out := make(map[int64][]condo.ResidentContact, len(unitIDs))
	if len(unitIDs) == 0 {
		return out, nil
	}
	in, args := inList(1, unitIDs)
	rows, err := s.db.QueryContext(ctx, `
		select rv.vivienda_id, u.id, u.nombre_completo, u.email
		from residentes_viviendas rv
		join usuarios u on u.id = rv.usuario_id
		where rv.vivienda_id in (`+in+`)
		order by u.nombre_completo`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var unitID int64
		var c condo.ResidentContact
		if err := rows.Scan(&unitID, &c.ID, &c.Name, &c.Email); err != nil {
			return nil, err
		}
		out[unitID] = append(out[unitID], c)
	}
	return out, rows.Err()
}

const expenseSelect = `
	select g.id, g.vivienda_id, v.numero_vivienda, g.mes, g.ano, g.monto_total::float8,
		g.estado, g.vencimiento, g.created_at
	from gastos_comunes g
	join viviendas v on v.id = g.vivienda_id`

func (s *Store) ExpensesForUnits(ctx context.Context, unitIDs []int64) ([]condo.Expense, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	in, args := inList(1, unitIDs)
	return s.queryExpenses(ctx, expenseSelect+` where g.vivienda_id in (`+in+`) order by g.ano desc, g.mes desc`, args...)
}

func (s *Store) PendingExpenses(ctx context.Context) ([]condo.Expense, error) {
	return s.queryExpenses(ctx, expenseSelect+` where g.estado = $1 order by g.vencimiento`, condo.ExpensePending)
}

func (s *Store) queryExpenses(ctx context.Context, query string, args ...any) ([]condo.Expense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []condo.Expense
	for rows.Next() {
		var e condo.Expense
		var due sql.NullTime
		if err := rows.Scan(&e.ID, &e.UnitID, &e.UnitNumber, &e.Month, &e.Year, &e.Total,
			&e.Status, &due, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.DueDate = timePtr(due)
		out = append(out, e)
	}
	return out, rows.Err()
}

const fineSelect = `
	select m.id, m.vivienda_id, v.numero_vivienda, m.monto::float8, coalesce(m.descripcion, ''),
		m.fecha_aplicada, m.created_at
	from multas m
	join viviendas v on v.id = m.vivienda_id`

func (s *Store) FinesForUnits(ctx context.Context, unitIDs []int64) ([]condo.Fine, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	in, args := inList(1, unitIDs)
	return s.queryFines(ctx, fineSelect+` where m.vivienda_id in (`+in+`) order by m.fecha_aplicada desc`, args...)
}

func (s *Store) ListFines(ctx context.Context) ([]condo.Fine, error) {
	return s.queryFines(ctx, fineSelect+` order by m.fecha_aplicada desc`)
}

func (s *Store) queryFines(ctx context.Context, query string, args ...any) ([]condo.Fine, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []condo.Fine
	for rows.Next() {
		var f condo.Fine
		if err := rows.Scan(&f.ID, &f.UnitID, &f.UnitNumber, &f.Amount, &f.Description,
			&f.AppliedOn, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) CreateFine(ctx context.Context, f *condo.Fine) error {
	err := s.db.QueryRowContext(ctx, `
		with ins as (
			insert into multas (vivienda_id, monto, descripcion, fecha_aplicada, created_at)
			values ($1, $2, $3, $4, $5)
			returning id, vivienda_id
		)
		select ins.id, v.numero_vivienda from ins join viviendas v on v.id = ins.vivienda_id
	`, f.UnitID, f.Amount, f.Description, f.AppliedOn, f.CreatedAt).Scan(&f.ID, &f.UnitNumber)
	if err != nil {
		if isPgCode(err, pgErrForeignKeyViolation) {
			return condo.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context) ([]condo.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.gasto_comun_id, p.usuario_id, u.nombre_completo, v.numero_vivienda,
			p.monto_pagado::float8, p.fecha_pago, p.metodo_pago, g.mes, g.ano, g.estado
		from pagos p
		join usuarios u on u.id = p.usuario_id
		join gastos_comunes g on g.id = p.gasto_comun_id
		join viviendas v on v.id = g.vivienda_id
		order by p.fecha_pago desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []condo.Payment
	for rows.Next() {
		var p condo.Payment
		if err := rows.Scan(&p.ID, &p.ExpenseID, &p.UserID, &p.UserName, &p.UnitNumber,
			&p.Amount, &p.PaidAt, &p.Method, &p.ExpenseMonth, &p.ExpenseYear, &p.ExpenseStatus); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetSpace(ctx context.Context, id int64) (condo.CommonSpace, error) {
	var sp condo.CommonSpace
	err := s.db.QueryRowContext(ctx, `
		select id, condominio_id, nombre, requiere_pago from espacios_comunes where id = $1
	`, id).Scan(&sp.ID, &sp.CondominiumID, &sp.Name, &sp.RequiresPayment)
	if errors.Is(err, sql.ErrNoRows) {
		return condo.CommonSpace{}, condo.ErrNotFound
	}
	return sp, err
}

const reservationSelect = `
	select r.id, r.espacio_comun_id, e.nombre, r.usuario_id, r.fecha_hora_inicio, r.fecha_hora_fin,
		r.monto_pago::float8, r.estado_pago, r.estado, r.created_at
	from reservas r
	join espacios_comunes e on e.id = r.espacio_comun_id`

func scanReservation(row rowScanner) (condo.Reservation, error) {
	var r condo.Reservation
	err := row.Scan(&r.ID, &r.SpaceID, &r.SpaceName, &r.UserID, &r.Start, &r.End,
		&r.Amount, &r.PaymentStatus, &r.Status, &r.CreatedAt)
	return r, err
}

func (s *Store) GetReservation(ctx context.Context, id int64) (condo.Reservation, error) {
	r, err := scanReservation(s.db.QueryRowContext(ctx, reservationSelect+` where r.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return condo.Reservation{}, condo.ErrNotFound
	}
	return r, err
}

func (s *Store) ReservationsForUser(ctx context.Context, userID int64) ([]condo.Reservation, error) {
	return s.queryReservations(ctx, reservationSelect+` where r.usuario_id = $1 order by r.fecha_hora_inicio desc`, userID)
}

func (s *Store) ListReservations(ctx context.Context) ([]condo.Reservation, error) {
	return s.queryReservations(ctx, reservationSelect+` order by r.fecha_hora_inicio desc`)
}

func (s *Store) queryReservations(ctx context.Context, query string, args ...any) ([]condo.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []condo.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateReservation locks the space row so concurrent bookings of the same
// space serialize on the overlap check.
func (s *Store) CreateReservation(ctx context.Context, r *condo.Reservation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var spaceID int64
	err = tx.QueryRowContext(ctx, `select id from espacios_comunes where id = $1 for update`, r.SpaceID).Scan(&spaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return condo.ErrNotFound
	}
	if err != nil {
		return err
	}
	var overlap bool
	if err := tx.QueryRowContext(ctx, `
		select exists (
			select 1 from reservas
			where espacio_comun_id = $1 and estado <> $2
				and fecha_hora_inicio < $4 and $3 < fecha_hora_fin
		)`, r.SpaceID, condo.ReservationCancelled, r.Start, r.End).Scan(&overlap); err != nil {
		return err
	}
	if overlap {
		return condo.ErrConflict
	}
	if err := tx.QueryRowContext(ctx, `
		insert into reservas (espacio_comun_id, usuario_id, fecha_hora_inicio, fecha_hora_fin,
			monto_pago, estado_pago, estado, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning id
	`, r.SpaceID, r.UserID, r.Start, r.End, r.Amount, r.PaymentStatus, r.Status, r.CreatedAt).Scan(&r.ID); err != nil {
		if isPgCode(err, pgErrForeignKeyViolation) {
			return condo.ErrNotFound
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) SetReservationStatus(ctx context.Context, id int64, status string) error {
	return s.execOne(ctx, condo.ErrNotFound, `update reservas set estado = $2 where id = $1`, id, status)
}

func (s *Store) ActiveAnnouncements(ctx context.Context, condoID int64, today time.Time) ([]condo.Announcement, error) {
	rows, err := s.db.QueryContext(ctx, `
		select a.id, a.condominio_id, a.autor_id, u.nombre_completo, a.titulo, a.contenido, a.tipo,
			a.fecha_publicacion, a.fecha_expiracion, a.is_active, a.created_at
		from anuncios a
		join usuarios u on u.id = a.autor_id
		where a.condominio_id = $1 and a.is_active
			and (a.fecha_expiracion is null or a.fecha_expiracion >= $2)
		order by a.fecha_publicacion desc, a.id desc`, condoID, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []condo.Announcement
	for rows.Next() {
		var a condo.Announcement
		var expires sql.NullTime
		if err := rows.Scan(&a.ID, &a.CondominiumID, &a.AuthorID, &a.AuthorName, &a.Title, &a.Body, &a.Kind,
			&a.PublishedOn, &expires, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ExpiresOn = timePtr(expires)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateAnnouncement(ctx context.Context, a *condo.Announcement) error {
	err := s.db.QueryRowContext(ctx, `
		with ins as (
			insert into anuncios (condominio_id, titulo, contenido, tipo, autor_id,
				fecha_publicacion, fecha_expiracion, is_active, created_at, updated_at)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
			returning id, autor_id
		)
		select ins.id, u.nombre_completo from ins join usuarios u on u.id = ins.autor_id
	`, a.CondominiumID, a.Title, a.Body, a.Kind, a.AuthorID,
		a.PublishedOn, nullable(a.ExpiresOn), a.Active, a.CreatedAt).Scan(&a.ID, &a.AuthorName)
	if err != nil {
		if isPgCode(err, pgErrForeignKeyViolation) {
			return condo.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) CondominiumExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `select exists (select 1 from condominios where id = $1)`, id).Scan(&ok)
	return ok, err
}

func (s *Store) FirstCondominium(ctx context.Context) (condo.Condominium, error) {
	var c condo.Condominium
	err := s.db.QueryRowContext(ctx, `
		select id, nombre, direccion from condominios order by id limit 1
	`).Scan(&c.ID, &c.Name, &c.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return condo.Condominium{}, condo.ErrNotFound
	}
	return c, err
}

func (s *Store) ListResidents(ctx context.Context) ([]condo.Resident, error) {
	role, err := auth.RoleResident.DBName()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, nombre_completo, email, last_login, created_at
		from usuarios
		where rol = $1 and is_active
		order by nombre_completo`, role)
	if err != nil {
		return nil, err
	}
	var out []condo.Resident
	index := make(map[int64]int)
	for rows.Next() {
		var r condo.Resident
		var last sql.NullTime
		if err := rows.Scan(&r.ID, &r.FullName, &r.Email, &last, &r.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		r.LastLogin = timePtr(last)
		index[r.ID] = len(out)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	units, err := s.db.QueryContext(ctx, `
		select rv.usuario_id, v.id, v.numero_vivienda, c.nombre
		from residentes_viviendas rv
		join viviendas v on v.id = rv.vivienda_id
		join condominios c on c.id = v.condominio_id
		order by v.numero_vivienda`)
	if err != nil {
		return nil, err
	}
	defer units.Close()
	for units.Next() {
		var userID int64
		var ref condo.UnitRef
		if err := units.Scan(&userID, &ref.ID, &ref.Number, &ref.Condominium); err != nil {
			return nil, err
		}
		if i, ok := index[userID]; ok {
			out[i].Units = append(out[i].Units, ref)
		}
	}
	return out, units.Err()
}
