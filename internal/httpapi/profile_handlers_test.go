package httpapi

import (
	"fmt"
	"net/http"
	"testing"
)

func TestGetProfile(t *testing.T) {
	env := newTestEnv(t)
	path := fmt.Sprintf("/api/v1/perfil/%d", env.ana.ID)

	resp := env.get(path, env.token(env.ana))
	expectStatus(t, resp, http.StatusOK)
	p := decode[profileView](t, resp)
	if p.Email != env.ana.Email || p.Role != "residente" || !p.Active {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if len(p.Units) != 1 || p.Units[0].Number != "101" || p.Units[0].Condominium != "Los Robles" {
		t.Fatalf("unexpected units: %+v", p.Units)
	}
	if p.LastLogin == nil {
		t.Fatalf("last_login not recorded")
	}

	expectError(t, env.get(path, env.token(env.beto)), http.StatusForbidden, codeNotOwner)

	resp = env.get(path, env.token(env.admin))
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	expectError(t, env.get("/api/v1/perfil/9999", env.token(env.admin)), http.StatusNotFound, codeNotFound)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	path := fmt.Sprintf("/api/v1/perfil/%d", env.ana.ID)
	h := env.token(env.ana)

	resp := env.do(http.MethodPut, path, map[string]any{"nombre_completo": "Ana María Rojas"}, h)
	expectStatus(t, resp, http.StatusOK)
	if p := decode[profileView](t, resp); p.FullName != "Ana María Rojas" || p.Email != env.ana.Email {
		t.Fatalf("unexpected profile: %+v", p)
	}

	resp = env.do(http.MethodPut, path, map[string]any{"email": env.beto.Email}, h)
	expectError(t, resp, http.StatusConflict, codeAlreadyExists)

	resp = env.do(http.MethodPut, path, map[string]any{"email": "no es email"}, h)
	expectError(t, resp, http.StatusBadRequest, codeInvalidInput)

	resp = env.do(http.MethodPut, fmt.Sprintf("/api/v1/perfil/%d", env.beto.ID), map[string]any{"nombre_completo": "X"}, h)
	expectError(t, resp, http.StatusForbidden, codeNotOwner)
}

func TestUpdateNotifications(t *testing.T) {
	env := newTestEnv(t)
	path := fmt.Sprintf("/api/v1/perfil/%d/notificaciones", env.ana.ID)

	resp := env.do(http.MethodPut, path, map[string]any{"notificaciones_push": false}, env.token(env.ana))
	expectStatus(t, resp, http.StatusOK)
	p := decode[profileView](t, resp)
	if p.NotifyPush || !p.NotifyEmail {
		t.Fatalf("unexpected flags: email=%v push=%v", p.NotifyEmail, p.NotifyPush)
	}
}

func TestSetStatus(t *testing.T) {
	env := newTestEnv(t)
	path := fmt.Sprintf("/api/v1/usuarios/%d/estado", env.beto.ID)
	betoToken := env.token(env.beto)

	expectError(t, env.do(http.MethodPut, path, map[string]any{"is_active": false}, env.token(env.ana)),
		http.StatusForbidden, codeRoleNotPermitted)
	expectError(t, env.do(http.MethodPut, path, map[string]any{}, env.token(env.admin)),
		http.StatusBadRequest, codeInvalidInput)

	self := fmt.Sprintf("/api/v1/usuarios/%d/estado", env.admin.ID)
	expectError(t, env.do(http.MethodPut, self, map[string]any{"is_active": false}, env.token(env.admin)),
		http.StatusBadRequest, codeInvalidInput)

	resp := env.do(http.MethodPut, path, map[string]any{"is_active": false}, env.token(env.admin))
	expectStatus(t, resp, http.StatusOK)
	if p := decode[profileView](t, resp); p.Active {
		t.Fatalf("account still active")
	}

	// the role and status are re-read on every request
	expectError(t, env.get("/api/v1/auth/me", betoToken), http.StatusForbidden, codeInactiveAccount)
}
