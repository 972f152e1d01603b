package insurance_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/careline/internal/adapter/insurance"
	"github.com/Strob0t/careline/internal/config"
	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/port/capability"
)

// insuranceServer is an MCP server exposing the two insurance tools with
// canned text answers. It records the arguments of every call.
type insuranceServer struct {
	mu    sync.Mutex
	calls map[string]map[string]any
	keys  []string
}

func (s *insuranceServer) handler(answer string, isError bool) mcpserver.ToolHandlerFunc {
	return func(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
		s.mu.Lock()
		s.calls[req.Params.Name] = req.GetArguments()
		s.mu.Unlock()
		if isError {
			return mcplib.NewToolResultError(answer), nil
		}
		return mcplib.NewToolResultText(answer), nil
	}
}

func newInsuranceServer(t *testing.T, discovery, eligibility string, failing bool) (*insuranceServer, *httptest.Server) {
	t.Helper()
	is := &insuranceServer{calls: map[string]map[string]any{}}
	srv := mcpserver.NewMCPServer("insurance-test", "0.1.0", mcpserver.WithToolCapabilities(true))
	srv.AddTool(mcplib.NewTool(insurance.ToolDiscovery), is.handler(discovery, failing))
	srv.AddTool(mcplib.NewTool(insurance.ToolEligibility), is.handler(eligibility, failing))

	mcpHandler := mcpserver.NewStreamableHTTPServer(srv)
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.mu.Lock()
		is.keys = append(is.keys, r.Header.Get("X-INF-API-KEY"))
		is.mu.Unlock()
		mcpHandler.ServeHTTP(w, r)
	}))
	t.Cleanup(hs.Close)
	return is, hs
}

func testClient(url string) *insurance.Client {
	return insurance.NewClient(config.Insurance{URL: url + "/mcp", APIKey: "inf-key", ProviderNPI: "1234567890"})
}

func TestDiscovery(t *testing.T) {
	is, hs := newInsuranceServer(t, "Insurance Discovery Results\nPayer: Blue Cross Blue Shield\nMember ID: abc-123\n", "", false)
	c := testClient(hs.URL)

	res, err := c.Discovery(context.Background(), capability.DiscoveryRequest{
		Name:        "Jane Q Doe",
		DateOfBirth: "03/15/1990",
		State:       "new york",
	})
	if err != nil {
		t.Fatalf("Discovery: %v", err)
	}
	if res.Payer != "Blue Cross Blue Shield" || res.MemberID != "ABC-123" {
		t.Errorf("result = %+v", res)
	}

	args := is.calls[insurance.ToolDiscovery]
	want := map[string]string{
		"patientFirstName":   "Jane",
		"patientLastName":    "Q Doe",
		"patientDateOfBirth": "1990-03-15",
		"patientState":       "New York",
	}
	for k, v := range want {
		if args[k] != v {
			t.Errorf("%s = %v, want %q", k, args[k], v)
		}
	}
	for _, key := range is.keys {
		if key != "inf-key" {
			t.Errorf("X-INF-API-KEY = %q", key)
		}
	}
}

func TestEligibility(t *testing.T) {
	is, hs := newInsuranceServer(t, "", "Coverage active. Copay: $25 per visit.", false)
	c := testClient(hs.URL)

	res, err := c.Eligibility(context.Background(), capability.EligibilityRequest{
		Name:        "Jane Doe",
		DateOfBirth: "1990-03-15",
		MemberID:    "ABC-123",
		Payer:       "Aetna",
		Provider:    "Dr. Sarah Smith, MD",
	})
	if err != nil {
		t.Fatalf("Eligibility: %v", err)
	}
	if res.Copay != "25" {
		t.Errorf("copay = %q", res.Copay)
	}

	args := is.calls[insurance.ToolEligibility]
	want := map[string]string{
		"patientFirstName":  "Jane",
		"patientLastName":   "Doe",
		"subscriberId":      "ABC-123",
		"payerName":         "Aetna",
		"providerFirstName": "Sarah",
		"providerLastName":  "Smith",
		"providerNpi":       "1234567890",
	}
	for k, v := range want {
		if args[k] != v {
			t.Errorf("%s = %v, want %q", k, args[k], v)
		}
	}
}

func TestToolErrorIsUnavailable(t *testing.T) {
	_, hs := newInsuranceServer(t, "upstream timeout", "upstream timeout", true)
	c := testClient(hs.URL)

	_, err := c.Discovery(context.Background(), capability.DiscoveryRequest{Name: "Jane Doe"})
	if !errors.Is(err, domain.ErrCapabilityUnavailable) {
		t.Errorf("err = %v, want ErrCapabilityUnavailable", err)
	}
}

func TestUnreachableServer(t *testing.T) {
	hs := httptest.NewServer(http.NotFoundHandler())
	hs.Close()
	c := testClient(hs.URL)

	_, err := c.Eligibility(context.Background(), capability.EligibilityRequest{Name: "Jane Doe"})
	if !errors.Is(err, domain.ErrCapabilityUnavailable) {
		t.Errorf("err = %v, want ErrCapabilityUnavailable", err)
	}
}

func TestParseDiscovery(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantPayer string
		wantID    string
	}{
		{"payer and member id", "Payer: Aetna\nMember ID: W123456", "Aetna", "W123456"},
		{"insurance and policy", "insurance: united healthcare; policy: ux-9", "United Healthcare", "UX-9"},
		{"nothing found", "No coverage found for this patient.", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payer, id := insurance.ParseDiscovery(tt.in)
			if payer != tt.wantPayer || id != tt.wantID {
				t.Errorf("got (%q, %q), want (%q, %q)", payer, id, tt.wantPayer, tt.wantID)
			}
		})
	}
}

func TestParseCopay(t *testing.T) {
	tests := map[string]string{
		"Copay: $25":              "25",
		"co-pay 1,200 applies":    "1,200",
		"CoPay:$40.00":            "40",
		"deductible applies only": "",
	}
	for in, want := range tests {
		if got := insurance.ParseCopay(in); got != want {
			t.Errorf("ParseCopay(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in          string
		first, last string
	}{
		{"", "", ""},
		{"Cher", "Cher", ""},
		{"Jane Doe", "Jane", "Doe"},
		{"  Mary Ann  van Dyke ", "Mary", "Ann van Dyke"},
	}
	for _, tt := range tests {
		first, last := insurance.SplitName(tt.in)
		if first != tt.first || last != tt.last {
			t.Errorf("SplitName(%q) = (%q, %q)", tt.in, first, last)
		}
	}
}

func TestStripHonorifics(t *testing.T) {
	tests := map[string]string{
		"Dr. Sarah Smith":   "Sarah Smith",
		"dr John Lee, MD":   "John Lee",
		"Anna Kowalski, DO": "Anna Kowalski",
		"Doreen Mdlalose":   "Doreen Mdlalose",
		"Sarah Smith":       "Sarah Smith",
	}
	for in, want := range tests {
		if got := insurance.StripHonorifics(in); got != want {
			t.Errorf("StripHonorifics(%q) = %q, want %q", in, got, want)
		}
	}
}
