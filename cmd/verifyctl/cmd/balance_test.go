package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"verifyctl/internal/apitest"
	"verifyctl/internal/auth"
	"verifyctl/internal/render"
	"verifyctl/pkg/api"
)

func TestBalanceCommand(t *testing.T) {
	resetViper()

	srv := apitest.NewServer(apitest.Script{Balance: 42})
	defer srv.Close()
	useServer(srv)

	stdout, _, code := executeCommand(t, "balance")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "Credits: 42.00") {
		t.Errorf("expected credits in output, got: %s", stdout)
	}
}

func TestBalanceCommand_JSON(t *testing.T) {
	resetViper()

	srv := apitest.NewServer(apitest.Script{Balance: 3.25})
	defer srv.Close()
	useServer(srv)

	stdout, _, code := executeCommand(t, "balance", "--json")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	var out api.BalanceResponse
	if err := json.Unmarshal([]byte(stdout), &out); err != nil || out.Credits != 3.25 {
		t.Errorf("unexpected JSON output %q (%v)", stdout, err)
	}
}

func TestBalanceCommand_Unauthorized(t *testing.T) {
	resetViper()

	srv := apitest.NewServer(apitest.Script{Token: "another-token"})
	defer srv.Close()
	useServer(srv)

	_, stderr, code := executeCommand(t, "balance")
	if code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Authentication failed") {
		t.Errorf("expected auth message, got: %s", stderr)
	}
	if got := len(srv.Headers()); got != 1 {
		t.Errorf("expected a single attempt for 401, got %d", got)
	}
}

func TestDoctorCommand(t *testing.T) {
	resetViper()

	srv := apitest.NewServer(apitest.Script{})
	defer srv.Close()
	useServer(srv)

	stdout, _, code := executeCommand(t, "doctor")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, srv.URL+" is reachable") {
		t.Errorf("expected reachability message, got: %s", stdout)
	}
}

func TestDoctorCommand_JSON(t *testing.T) {
	resetViper()

	srv := apitest.NewServer(apitest.Script{})
	defer srv.Close()
	useServer(srv)

	stdout, _, code := executeCommand(t, "doctor", "--json")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	var out render.HealthOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil || !out.OK || out.URL != srv.URL {
		t.Errorf("unexpected JSON output %q (%v)", stdout, err)
	}
	if out.TokenFingerprint != auth.Fingerprint("test-token") {
		t.Errorf("expected token fingerprint, got %q", out.TokenFingerprint)
	}
	if strings.Contains(stdout, "test-token") {
		t.Errorf("raw token must not be printed")
	}
}

func TestDoctorCommand_Unreachable(t *testing.T) {
	resetViper()

	srv := apitest.NewServer(apitest.Script{})
	useServer(srv)
	srv.Close()

	_, stderr, code := executeCommand(t, "doctor", "--max-retries", "0")
	if code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Network error") {
		t.Errorf("expected network error, got: %s", stderr)
	}
}
