package roomapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetRoomState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rooms/room-9/state" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(RoomState{
			CurrentRound: 3,
			Rounds: []RoundState{
				{RoundNumber: 3, Status: "in_progress", CalledNumbers: []string{"B-5"}, CalledCount: 1},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	state, err := c.GetRoomState(context.Background(), "room-9")
	if err != nil {
		t.Fatalf("GetRoomState: %v", err)
	}
	if state.CurrentRound != 3 {
		t.Errorf("CurrentRound = %d, want 3", state.CurrentRound)
	}
	cur := state.CurrentRoundState()
	if cur == nil || cur.CalledCount != 1 {
		t.Errorf("CurrentRoundState() = %+v", cur)
	}
}

func TestCurrentRoundStateMissing(t *testing.T) {
	state := &RoomState{
		CurrentRound: 4,
		Rounds:       []RoundState{{RoundNumber: 3, Status: "finished"}},
	}
	if got := state.CurrentRoundState(); got != nil {
		t.Errorf("CurrentRoundState() = %+v, want nil", got)
	}
}

func TestSubmitClaim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/rooms/room-9/claims" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req ClaimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.RoundNumber != 2 || req.CardID != "card-7" || req.IdempotencyKey == "" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(ClaimResponse{Success: false, Message: "El número B-12 no fue llamado en este round"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	resp, err := c.SubmitClaim(context.Background(), "room-9", ClaimRequest{
		RoundNumber:    2,
		CardID:         "card-7",
		MarkedNumbers:  []string{"B-12"},
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("SubmitClaim: %v", err)
	}
	if resp.Success || resp.Message == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestNon2xxIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"room not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if _, err := c.GetRoomState(context.Background(), "room-404"); err == nil {
		t.Fatal("GetRoomState returned nil error on 404")
	}
}
