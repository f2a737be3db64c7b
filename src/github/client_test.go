package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stackline/src/errs"
)

func TestClient_NewClient(t *testing.T) {
	client := NewClient("fake-token")
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
}

func TestParseRepositoryURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantErr   bool
		wantOwner string
		wantRepo  string
	}{
		{
			name:      "commit URL",
			url:       "https://github.com/acme/infra/commit/0123abc",
			wantOwner: "acme",
			wantRepo:  "infra",
		},
		{
			name:      "repository URL",
			url:       "https://github.com/acme/infra",
			wantOwner: "acme",
			wantRepo:  "infra",
		},
		{
			name:    "other host",
			url:     "https://gitlab.com/acme/infra/commit/0123abc",
			wantErr: true,
		},
		{
			name:    "missing repo",
			url:     "https://github.com/acme",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRepositoryURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseRepositoryURL() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				if !errs.IsParse(err) {
					t.Errorf("error = %v, want ParseError", err)
				}
				return
			}
			if owner != tt.wantOwner {
				t.Errorf("owner = %v, want %v", owner, tt.wantOwner)
			}
			if repo != tt.wantRepo {
				t.Errorf("repo = %v, want %v", repo, tt.wantRepo)
			}
		})
	}
}

func TestClient_CreateStatus_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("unexpected Authorization header: %s", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/repos/acme/infra/statuses/0123abc" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("request body is not JSON: %v", err)
		}
		if req.State != StatePending {
			t.Errorf("state = %s, want pending", req.State)
		}
		if req.Context != "Integration Infrastructure / CodePipeline" {
			t.Errorf("context = %s", req.Context)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 7, "state": "pending", "context": "Integration Infrastructure / CodePipeline"}`))
	}))
	defer server.Close()

	client := NewClient("test-token").WithBaseURL(server.URL)

	status, err := client.CreateStatus(context.Background(), "acme", "infra", "0123abc", StatusRequest{
		State:       StatePending,
		Description: "InProgress: Execution e-1",
		Context:     "Integration Infrastructure / CodePipeline",
	})
	if err != nil {
		t.Fatalf("CreateStatus() error = %v", err)
	}
	if status.ID != 7 {
		t.Errorf("ID = %d, want 7", status.ID)
	}
	if status.State != StatePending {
		t.Errorf("State = %s, want pending", status.State)
	}
}

func TestClient_CreateStatus_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "Bad credentials"}`))
	}))
	defer server.Close()

	client := NewClient("invalid-token").WithBaseURL(server.URL)

	_, err := client.CreateStatus(context.Background(), "acme", "infra", "0123abc", StatusRequest{State: StateError})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errs.IsUpstream(err) {
		t.Errorf("error = %v, want UpstreamError", err)
	}
	if !strings.Contains(err.Error(), "GitHub API error 401") {
		t.Errorf("error = %v, want to contain GitHub API error 401", err)
	}
}
