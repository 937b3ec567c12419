package kql

import (
	"reflect"
	"testing"

	"github.com/yaserfarook1/SentinalLens/internal/models"
)

func TestExtractStructural(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantTables []string
		wantConf   models.Confidence
	}{
		{
			name:       "bare_identifier",
			query:      "SecurityEvent",
			wantTables: []string{"SecurityEvent"},
			wantConf:   models.ConfidenceHigh,
		},
		{
			name:       "simple_filter_pipeline",
			query:      "SecurityEvent | where EventID == 4625",
			wantTables: []string{"SecurityEvent"},
			wantConf:   models.ConfidenceHigh,
		},
		{
			name:       "union_two_tables",
			query:      "union SecurityEvent, SigninLogs | summarize count()",
			wantTables: []string{"SecurityEvent", "SigninLogs"},
			wantConf:   models.ConfidenceHigh,
		},
		{
			name:       "union_whitespace_insensitive",
			query:      "union    SecurityEvent ,SigninLogs,   AuditLogs",
			wantTables: []string{"SecurityEvent", "SigninLogs", "AuditLogs"},
			wantConf:   models.ConfidenceHigh,
		},
		{
			name:       "union_parenthesized",
			query:      "union (SecurityEvent, SigninLogs)",
			wantTables: []string{"SecurityEvent", "SigninLogs"},
			wantConf:   models.ConfidenceHigh,
		},
		{
			name:       "workspace_qualifier_takes_table_not_workspace",
			query:      `workspace("Prod").SigninLogs | take 10`,
			wantTables: []string{"SigninLogs"},
			wantConf:   models.ConfidenceHigh,
		},
		{
			name:       "workspace_qualifier_single_quotes",
			query:      `workspace('Prod').AuditLogs`,
			wantTables: []string{"AuditLogs"},
			wantConf:   models.ConfidenceHigh,
		},
		{
			name:       "union_with_workspace_qualified_operand",
			query:      `union workspace("Other").SecurityEvent, SigninLogs`,
			wantTables: []string{"SecurityEvent", "SigninLogs"},
			wantConf:   models.ConfidenceHigh,
		},
		{
			name:       "union_duplicate_operands_deduplicated",
			query:      "union SecurityEvent, SecurityEvent, SigninLogs",
			wantTables: []string{"SecurityEvent", "SigninLogs"},
			wantConf:   models.ConfidenceHigh,
		},
		{
			name:       "leading_comment_stripped",
			query:      "// failed sign-ins\nSigninLogs | where ResultType != 0",
			wantTables: []string{"SigninLogs"},
			wantConf:   models.ConfidenceHigh,
		},
		{
			name:       "multiline_pipeline",
			query:      "SecurityEvent\n| where EventID == 4688\n| project TimeGenerated, Account",
			wantTables: []string{"SecurityEvent"},
			wantConf:   models.ConfidenceHigh,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Extract(tc.query)
			if !reflect.DeepEqual(got.Tables, tc.wantTables) {
				t.Fatalf("expected tables %v, got %v", tc.wantTables, got.Tables)
			}
			if got.Confidence != tc.wantConf {
				t.Fatalf("expected confidence %s, got %s", tc.wantConf, got.Confidence)
			}
			if len(got.Warnings) != 0 {
				t.Fatalf("expected no warnings, got %v", got.Warnings)
			}
		})
	}
}

func TestExtractFunctionCallNeverGuesses(t *testing.T) {
	cases := []struct {
		name  string
		query string
	}{
		{name: "saved_function", query: "GetFailedLogons() | where Count > 5"},
		{name: "function_with_args", query: "MySavedQuery(7d) | summarize count()"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Extract(tc.query)
			if len(got.Tables) != 0 {
				t.Fatalf("expected no guessed tables, got %v", got.Tables)
			}
			if got.Confidence != models.ConfidenceLow {
				t.Fatalf("expected Low confidence, got %s", got.Confidence)
			}
			if len(got.Warnings) == 0 {
				t.Fatalf("expected a warning naming the unresolved function")
			}
		})
	}
}

func TestExtractFallback(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantTables []string
		wantConf   models.Confidence
	}{
		{
			name:       "union_with_modifier_degrades",
			query:      "union isfuzzy=true SecurityEvent, SigninLogs",
			wantTables: []string{},
			wantConf:   models.ConfidenceLow,
		},
		{
			name:       "workspace_qualifier_mid_text",
			query:      `let w = 1; x | join (workspace("Prod").SigninLogs) on UserId`,
			wantTables: []string{"SigninLogs"},
			wantConf:   models.ConfidenceMedium,
		},
		{
			name:       "empty_query",
			query:      "   ",
			wantTables: []string{},
			wantConf:   models.ConfidenceLow,
		},
		{
			name:       "only_operators",
			query:      "| where x > 1",
			wantTables: []string{},
			wantConf:   models.ConfidenceLow,
		},
		{
			name:       "keyword_first_token_excluded",
			query:      "count",
			wantTables: []string{},
			wantConf:   models.ConfidenceLow,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Extract(tc.query)
			if !reflect.DeepEqual(got.Tables, tc.wantTables) {
				t.Fatalf("expected tables %v, got %v", tc.wantTables, got.Tables)
			}
			if got.Confidence != tc.wantConf {
				t.Fatalf("expected confidence %s, got %s", tc.wantConf, got.Confidence)
			}
			if got.Confidence != models.ConfidenceHigh && len(got.Warnings) == 0 {
				t.Fatalf("expected a warning for degraded confidence")
			}
		})
	}
}

func TestExtractNeverPanicsOnGarbage(t *testing.T) {
	garbage := []string{
		"",
		"|||",
		"union",
		"union ,,,",
		"workspace(",
		`workspace("unterminated`,
		"\x00\x01\x02",
		"((((((",
	}

	for _, query := range garbage {
		got := Extract(query)
		if got.Confidence == models.ConfidenceHigh && len(got.Tables) == 0 {
			t.Fatalf("garbage input %q produced High confidence with no tables", query)
		}
	}
}
