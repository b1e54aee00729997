package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestAnnouncementStream(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/anuncios/condominio/%d/stream", env.baseURL, env.condo.ID), nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range env.token(env.ana) {
		req.Header.Set(k, v)
	}
	resp, err := env.client.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	rd := bufio.NewReader(resp.Body)
	readLine := func() string {
		t.Helper()
		line, err := rd.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		return strings.TrimRight(line, "\n")
	}
	if got := readLine(); got != ": stream started" {
		t.Fatalf("first line = %q", got)
	}
	readLine()

	post := map[string]any{"condominio_id": env.condo.ID, "titulo": "Asamblea", "contenido": "Jueves 19:00 en la sede."}
	created := env.post("/api/v1/anuncios", post, env.token(env.admin))
	expectStatus(t, created, http.StatusCreated)
	created.Body.Close()

	if got := readLine(); got != "event: announcement.created" {
		t.Fatalf("event line = %q", got)
	}
	data := strings.TrimPrefix(readLine(), "data: ")
	var evt struct {
		CondominiumID int64            `json:"condominio_id"`
		Data          announcementView `json:"data"`
	}
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.CondominiumID != env.condo.ID || evt.Data.Title != "Asamblea" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestAnnouncementStreamRequiresKnownCondominium(t *testing.T) {
	env := newTestEnv(t)
	expectError(t, env.get("/api/v1/anuncios/condominio/9999/stream", env.token(env.ana)), http.StatusNotFound, codeNotFound)
	expectError(t, env.get("/api/v1/anuncios/condominio/1/stream", nil), http.StatusUnauthorized, codeInvalidToken)
}
