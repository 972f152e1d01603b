// Package insurance implements the insurance capability by calling the
// discovery and eligibility tools of a remote MCP server.
package insurance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/careline/internal/config"
	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/domain/session"
	"github.com/Strob0t/careline/internal/port/capability"
)

// Tool names exposed by the insurance MCP server.
const (
	ToolDiscovery   = "insurance_discovery"
	ToolEligibility = "benefits_eligibility"
)

const apiKeyHeader = "X-INF-API-KEY"

var (
	payerRe      = regexp.MustCompile(`payer[:\s]*([^\n,;]+)`)
	insuranceRe  = regexp.MustCompile(`insurance[:\s]*([^\n,;]+)`)
	memberIDRe   = regexp.MustCompile(`member\s*id[:\s]*([a-z0-9\-]+)`)
	policyRe     = regexp.MustCompile(`policy[:\s]*([a-z0-9\-]+)`)
	copayRe      = regexp.MustCompile(`co-?pay[:\s]*\$?([0-9,]+)`)
	honorificsRe = regexp.MustCompile(`(?i)\b(Dr|MD|DO)\b\.?`)
)

// Client calls the insurance MCP server over streamable HTTP. Each call
// opens its own MCP session so no connection state outlives a turn.
type Client struct {
	url         string
	apiKey      string
	providerNPI string
}

// NewClient creates an insurance client.
func NewClient(cfg config.Insurance) *Client {
	return &Client{url: cfg.URL, apiKey: cfg.APIKey, providerNPI: cfg.ProviderNPI}
}

// Discovery implements capability.Insurance.
func (c *Client) Discovery(ctx context.Context, req capability.DiscoveryRequest) (capability.DiscoveryResult, error) {
	first, last := SplitName(req.Name)
	text, err := c.callTool(ctx, ToolDiscovery, map[string]any{
		"patientDateOfBirth": session.NormalizeDateOfBirth(req.DateOfBirth),
		"patientFirstName":   first,
		"patientLastName":    last,
		"patientState":       titleCase(strings.TrimSpace(req.State)),
	})
	if err != nil {
		return capability.DiscoveryResult{}, err
	}
	payer, memberID := ParseDiscovery(text)
	return capability.DiscoveryResult{Payer: payer, MemberID: memberID, Raw: text}, nil
}

// Eligibility implements capability.Insurance.
func (c *Client) Eligibility(ctx context.Context, req capability.EligibilityRequest) (capability.EligibilityResult, error) {
	first, last := SplitName(req.Name)
	provFirst, provLast := SplitName(StripHonorifics(req.Provider))
	text, err := c.callTool(ctx, ToolEligibility, map[string]any{
		"patientFirstName":   first,
		"patientLastName":    last,
		"patientDateOfBirth": session.NormalizeDateOfBirth(req.DateOfBirth),
		"subscriberId":       req.MemberID,
		"payerName":          req.Payer,
		"providerFirstName":  provFirst,
		"providerLastName":   provLast,
		"providerNpi":        c.providerNPI,
	})
	if err != nil {
		return capability.EligibilityResult{}, err
	}
	return capability.EligibilityResult{Copay: ParseCopay(text), Raw: text}, nil
}

func (c *Client) callTool(ctx context.Context, name string, args map[string]any) (string, error) {
	var opts []transport.StreamableHTTPCOption
	if c.apiKey != "" {
		opts = append(opts, transport.WithHTTPHeaders(map[string]string{apiKeyHeader: c.apiKey}))
	}
	cl, err := mcpclient.NewStreamableHttpClient(c.url, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: create insurance client: %w", domain.ErrCapabilityUnavailable, err)
	}
	defer cl.Close() //nolint:errcheck // best-effort cleanup

	if err := cl.Start(ctx); err != nil {
		return "", fmt.Errorf("%w: start insurance client: %w", domain.ErrCapabilityUnavailable, err)
	}
	initReq := mcplib.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcplib.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcplib.Implementation{Name: "careline", Version: "1.0.0"}
	if _, err := cl.Initialize(ctx, initReq); err != nil {
		return "", fmt.Errorf("%w: initialize insurance session: %w", domain.ErrCapabilityUnavailable, err)
	}

	res, err := cl.CallTool(ctx, mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		return "", fmt.Errorf("%w: call %s: %w", domain.ErrCapabilityUnavailable, name, err)
	}
	text := resultText(res)
	if res.IsError {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrCapabilityUnavailable, name, errors.New(text))
	}
	slog.DebugContext(ctx, "insurance tool answered", "tool", name, "chars", len(text))
	return text, nil
}

func resultText(res *mcplib.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if tc, ok := content.(mcplib.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// SplitName splits a full name into first name and the rest.
func SplitName(full string) (first, last string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// StripHonorifics removes Dr, MD and DO from a provider name.
func StripHonorifics(name string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(honorificsRe.ReplaceAllString(name, ""), ",", " ")), " ")
}

// ParseDiscovery scrapes payer and member id from a discovery response.
// Missing values come back empty.
func ParseDiscovery(text string) (payer, memberID string) {
	lower := strings.ToLower(text)
	if m := firstMatch(lower, payerRe, insuranceRe); m != "" {
		payer = titleCase(m)
	}
	if m := firstMatch(lower, memberIDRe, policyRe); m != "" {
		memberID = strings.ToUpper(m)
	}
	return payer, memberID
}

// ParseCopay scrapes the copay amount, without a currency sign.
func ParseCopay(text string) string {
	return firstMatch(strings.ToLower(text), copayRe)
}

func firstMatch(s string, res ...*regexp.Regexp) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(s); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
