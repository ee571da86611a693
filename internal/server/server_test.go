package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"colloquy/internal/config"
	"colloquy/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore) {
	t.Helper()
	st, err := store.Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	cfg := config.Default()
	return New(cfg, st, nil, zap.NewNop()), st
}

func postDialogue(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/dialogue", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestDialogue_StreamsNDJSON(t *testing.T) {
	s, _ := newTestServer(t)
	rec := postDialogue(t, s, `{"topic":"cache policy","turns":2}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type = %q", ct)
	}

	var types []string
	scanner := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		var event struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(line, &event); err != nil {
			t.Fatalf("line is not valid JSON: %q: %v", line, err)
		}
		types = append(types, event.Type)
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}

	if len(types) < 4 {
		t.Fatalf("too few events: %v", types)
	}
	if types[0] != "meta" {
		t.Errorf("first event = %q, want meta", types[0])
	}
	if types[len(types)-1] != "done" {
		t.Errorf("last event = %q, want done", types[len(types)-1])
	}
	turnCount := 0
	for _, typ := range types {
		if typ == "turn" {
			turnCount++
		}
	}
	if turnCount != 2 {
		t.Errorf("turn events = %d, want 2", turnCount)
	}
}

func TestDialogue_ValidationErrors(t *testing.T) {
	s, _ := newTestServer(t)

	if rec := postDialogue(t, s, `{"turns":4}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing topic status = %d, want 400", rec.Code)
	}
	if rec := postDialogue(t, s, `{"conversationId":"nope"}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown conversation status = %d, want 404", rec.Code)
	}
	if rec := postDialogue(t, s, `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestConversationEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	rec := postDialogue(t, s, `{"topic":"index compaction","turns":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("dialogue status = %d", rec.Code)
	}

	var done struct {
		ConversationID string `json:"conversationId"`
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &done); err != nil {
		t.Fatalf("decode done event: %v", err)
	}

	msgReq := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/conversations/%s/messages", done.ConversationID), nil)
	msgRec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(msgRec, msgReq)
	if msgRec.Code != http.StatusOK {
		t.Fatalf("messages status = %d", msgRec.Code)
	}
	var msgBody struct {
		TotalTurns int `json:"totalTurns"`
		Messages   []store.Message
	}
	if err := json.Unmarshal(msgRec.Body.Bytes(), &msgBody); err != nil {
		t.Fatal(err)
	}
	if msgBody.TotalTurns != 2 {
		t.Errorf("totalTurns = %d, want 2", msgBody.TotalTurns)
	}

	memReq := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/conversations/%s/memory", done.ConversationID), nil)
	memRec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(memRec, memReq)
	if memRec.Code != http.StatusOK {
		t.Fatalf("memory status = %d", memRec.Code)
	}
	var view struct {
		Stats store.MemoryStats `json:"stats"`
	}
	if err := json.Unmarshal(memRec.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Stats.Messages != 2 {
		t.Errorf("memory stats messages = %d, want 2", view.Stats.Messages)
	}

	missing := httptest.NewRequest(http.MethodGet, "/api/conversations/nope/memory", nil)
	missingRec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(missingRec, missing)
	if missingRec.Code != http.StatusNotFound {
		t.Errorf("missing conversation status = %d, want 404", missingRec.Code)
	}
}

func TestApplyLimitsSwapsOrchestrator(t *testing.T) {
	s, _ := newTestServer(t)
	before, _ := s.current()

	limits := config.DefaultLimits()
	limits.ModeratorInterval = 3
	s.ApplyLimits(limits)

	after, _ := s.current()
	if before == after {
		t.Error("ApplyLimits should install a fresh orchestrator")
	}
}
