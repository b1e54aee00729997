package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"condominio.app/internal/condo"
)

func TestInList(t *testing.T) {
	in, args := inList(2, []int64{5, 6, 7})
	if in != "$2, $3, $4" {
		t.Fatalf("unexpected placeholders %q", in)
	}
	if len(args) != 3 || args[2] != int64(7) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestGetUnitAttachesResidents(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("from viviendas v").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "condominio_id", "nombre", "numero_vivienda", "cargo_fijo_uf"}).
			AddRow(1, 1, "Los Robles", "101", 2.5))
	mock.ExpectQuery("select vivienda_id, usuario_id from residentes_viviendas").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"vivienda_id", "usuario_id"}).AddRow(1, 10).AddRow(1, 11))

	u, err := store.GetUnit(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if u.Number != "101" || u.CondominiumName != "Los Robles" || len(u.ResidentIDs) != 2 || u.ResidentIDs[1] != 11 {
		t.Fatalf("unexpected unit: %+v", u)
	}
}

func TestGetUnitNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("from viviendas v").WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "condominio_id", "nombre", "numero_vivienda", "cargo_fijo_uf"}))

	if _, err := store.GetUnit(context.Background(), 9); !errors.Is(err, condo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpensesForUnits(t *testing.T) {
	store, mock := newMock(t)
	due := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`from gastos_comunes g.*where g.vivienda_id in \(\$1, \$2\)`).WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "vivienda_id", "numero_vivienda", "mes", "ano", "monto_total", "estado", "vencimiento", "created_at"}).
			AddRow(3, 1, "101", 1, 2025, 100.5, "pendiente", due, due).
			AddRow(4, 2, "102", 1, 2025, 90.0, "pagado", nil, due))

	got, err := store.ExpensesForUnits(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("ExpensesForUnits: %v", err)
	}
	if len(got) != 2 || got[0].DueDate == nil || !got[0].DueDate.Equal(due) || got[1].DueDate != nil {
		t.Fatalf("unexpected expenses: %+v", got)
	}

	none, err := store.ExpensesForUnits(context.Background(), nil)
	if err != nil || none != nil {
		t.Fatalf("empty id list should not query, got %v %v", none, err)
	}
}

func TestCreateFineUnknownUnit(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("insert into multas").WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	f := condo.Fine{UnitID: 99, Amount: 10, Description: "ruido", AppliedOn: time.Now()}
	if err := store.CreateFine(context.Background(), &f); !errors.Is(err, condo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateReservation(t *testing.T) {
	start := time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC)
	r := condo.Reservation{SpaceID: 1, UserID: 10, Start: start, End: start.Add(2 * time.Hour),
		PaymentStatus: condo.PaymentPaid, Status: condo.ReservationConfirmed, CreatedAt: start.Add(-time.Hour)}

	t.Run("inserts", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery("select id from espacios_comunes where id = \\$1 for update").WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery("select exists").WithArgs(int64(1), condo.ReservationCancelled, r.Start, r.End).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("insert into reservas").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(77))
		mock.ExpectCommit()

		in := r
		if err := store.CreateReservation(context.Background(), &in); err != nil {
			t.Fatalf("CreateReservation: %v", err)
		}
		if in.ID != 77 {
			t.Fatalf("expected id 77, got %d", in.ID)
		}
	})

	t.Run("overlap", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery("for update").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery("select exists").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		in := r
		if err := store.CreateReservation(context.Background(), &in); !errors.Is(err, condo.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestSetReservationStatusMissing(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("update reservas set estado").WithArgs(int64(5), condo.ReservationCancelled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.SetReservationStatus(context.Background(), 5, condo.ReservationCancelled); !errors.Is(err, condo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListResidentsJoinsUnits(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from usuarios").WithArgs("Residente").
		WillReturnRows(sqlmock.NewRows([]string{"id", "nombre_completo", "email", "last_login", "created_at"}).
			AddRow(10, "Ana", "ana@example.com", now, now).
			AddRow(11, "Beto", "beto@example.com", nil, now))
	mock.ExpectQuery("from residentes_viviendas rv").
		WillReturnRows(sqlmock.NewRows([]string{"usuario_id", "id", "numero_vivienda", "nombre"}).
			AddRow(10, 1, "101", "Los Robles").
			AddRow(99, 2, "102", "Los Robles"))

	got, err := store.ListResidents(context.Background())
	if err != nil {
		t.Fatalf("ListResidents: %v", err)
	}
	if len(got) != 2 || len(got[0].Units) != 1 || got[0].Units[0].Number != "101" || len(got[1].Units) != 0 {
		t.Fatalf("unexpected residents: %+v", got)
	}
	if got[0].LastLogin == nil || got[1].LastLogin != nil {
		t.Fatalf("last login not mapped: %+v", got)
	}
}

func TestFirstCondominium(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("from condominios order by id limit 1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "nombre", "direccion"}).AddRow(3, "Los Robles", "Av. 1"))
	c, err := store.FirstCondominium(context.Background())
	if err != nil {
		t.Fatalf("FirstCondominium: %v", err)
	}
	if c.ID != 3 || c.Name != "Los Robles" {
		t.Fatalf("unexpected condominium: %+v", c)
	}

	mock.ExpectQuery("from condominios order by id limit 1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "nombre", "direccion"}))
	if _, err := store.FirstCondominium(context.Background()); !errors.Is(err, condo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestActiveAnnouncements(t *testing.T) {
	store, mock := newMock(t)
	today := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("from anuncios a").WithArgs(int64(1), today).
		WillReturnRows(sqlmock.NewRows([]string{"id", "condominio_id", "autor_id", "nombre_completo", "titulo", "contenido", "tipo",
			"fecha_publicacion", "fecha_expiracion", "is_active", "created_at"}).
			AddRow(1, 1, 20, "Admin", "Asamblea", "Sábado", "general", today, nil, true, today))

	got, err := store.ActiveAnnouncements(context.Background(), 1, today)
	if err != nil {
		t.Fatalf("ActiveAnnouncements: %v", err)
	}
	if len(got) != 1 || got[0].AuthorName != "Admin" || got[0].ExpiresOn != nil {
		t.Fatalf("unexpected announcements: %+v", got)
	}
}
