// Package kql extracts table references from KQL-style query text.
//
// Extraction is strictly pattern-based: the query is never evaluated. A
// structural pass over the first pipe stage yields High confidence; a
// text-wide identifier scan yields Medium; anything else degrades to Low with
// a warning instead of an error.
package kql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yaserfarook1/SentinalLens/internal/models"
)

var (
	identRe     = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	workspaceRe = regexp.MustCompile(`^workspace\s*\(\s*["']([^"']*)["']\s*\)\s*\.\s*([A-Za-z][A-Za-z0-9_]*)$`)
	funcCallRe  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

	lineCommentRe  = regexp.MustCompile(`//[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespaceRe   = regexp.MustCompile(`\s+`)

	scanUnionRe     = regexp.MustCompile(`(?i)\bunion\s+\(?\s*([A-Za-z][A-Za-z0-9_]*)`)
	scanWorkspaceRe = regexp.MustCompile(`(?i)workspace\s*\(\s*["'][^"']*["']\s*\)\s*\.\s*([A-Za-z][A-Za-z0-9_]*)`)
)

// reservedWords are language keywords, operator names and union parameters
// that can never be table references.
var reservedWords = map[string]struct{}{
	"where": {}, "project": {}, "summarize": {}, "count": {}, "sum": {},
	"avg": {}, "min": {}, "max": {}, "sort": {}, "order": {}, "limit": {},
	"take": {}, "union": {}, "join": {}, "let": {}, "print": {}, "extend": {},
	"distinct": {}, "top": {}, "range": {}, "as": {}, "by": {}, "on": {},
	"with": {}, "between": {}, "in": {}, "and": {}, "or": {}, "not": {},
	"has": {}, "contains": {}, "startswith": {}, "endswith": {}, "matches": {},
	"regex": {}, "timespan": {}, "ago": {}, "now": {}, "datetime": {},
	"strcat": {}, "tolower": {}, "toupper": {}, "split": {}, "parse": {},
	"render": {}, "evaluate": {}, "materialize": {}, "workspace": {},
	"kind": {}, "withsource": {}, "isfuzzy": {}, "inner": {}, "outer": {},
	"true": {}, "false": {},
}

// Extract returns the ordered set of distinct table names referenced by a
// single query string, with a confidence tier. It never fails on malformed
// input: the worst case is an empty set with Low confidence and a warning.
func Extract(query string) models.ExtractionResult {
	cleaned := clean(query)
	if cleaned == "" {
		return lowResult("empty query text")
	}

	if result, ok := structuralPass(cleaned); ok {
		return result
	}

	return fallbackPass(cleaned)
}

// structuralPass treats the first pipe stage as a bare identifier, a
// workspace-qualified identifier, or a union over such operands. The second
// return value is false when the stage does not fit that grammar and the
// caller should fall back to scanning.
func structuralPass(cleaned string) (models.ExtractionResult, bool) {
	first := strings.TrimSpace(strings.SplitN(cleaned, "|", 2)[0])
	if first == "" {
		return models.ExtractionResult{}, false
	}

	if m := workspaceRe.FindStringSubmatch(first); m != nil {
		return highResult([]string{m[2]}), true
	}

	if identRe.MatchString(first) {
		if isReserved(first) {
			return models.ExtractionResult{}, false
		}
		return highResult([]string{first}), true
	}

	if lower := strings.ToLower(first); strings.HasPrefix(lower, "union") {
		rest := strings.TrimSpace(first[len("union"):])
		if tables, ok := parseUnionOperands(rest); ok {
			return highResult(tables), true
		}
		return models.ExtractionResult{}, false
	}

	// A function or saved pattern in place of a table reference is reported,
	// never guessed at.
	if m := funcCallRe.FindStringSubmatch(first); m != nil {
		return lowResult(fmt.Sprintf("unresolved function call: %s", m[1])), true
	}

	return models.ExtractionResult{}, false
}

// parseUnionOperands splits comma-separated union operands, each either a
// bare identifier or a workspace("X").Table reference.
func parseUnionOperands(rest string) ([]string, bool) {
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		rest = strings.TrimSpace(rest[1 : len(rest)-1])
	}
	if rest == "" {
		return nil, false
	}

	var tables []string
	for _, operand := range strings.Split(rest, ",") {
		operand = strings.TrimSpace(operand)

		if m := workspaceRe.FindStringSubmatch(operand); m != nil {
			tables = appendDistinct(tables, m[2])
			continue
		}
		if identRe.MatchString(operand) && !isReserved(operand) {
			tables = appendDistinct(tables, operand)
			continue
		}
		return nil, false
	}

	return tables, len(tables) > 0
}

// fallbackPass scans the whole text for identifier-adjacent candidates: the
// first token of the text, tokens immediately following union, and tokens
// after a workspace(...). qualifier.
func fallbackPass(cleaned string) models.ExtractionResult {
	var tables []string

	fields := strings.Fields(cleaned)
	if len(fields) > 0 && identRe.MatchString(fields[0]) && !isReserved(fields[0]) {
		tables = appendDistinct(tables, fields[0])
	}

	for _, m := range scanUnionRe.FindAllStringSubmatch(cleaned, -1) {
		if !isReserved(m[1]) {
			tables = appendDistinct(tables, m[1])
		}
	}

	for _, m := range scanWorkspaceRe.FindAllStringSubmatch(cleaned, -1) {
		if !isReserved(m[1]) {
			tables = appendDistinct(tables, m[1])
		}
	}

	if len(tables) == 0 {
		return lowResult("no table references found")
	}

	return models.ExtractionResult{
		Tables:     tables,
		Confidence: models.ConfidenceMedium,
		Warnings:   []string{"structural parse failed, identifier scan applied"},
	}
}

// clean strips comments and collapses whitespace.
func clean(query string) string {
	cleaned := lineCommentRe.ReplaceAllString(query, "")
	cleaned = blockCommentRe.ReplaceAllString(cleaned, " ")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

func isReserved(name string) bool {
	_, ok := reservedWords[strings.ToLower(name)]
	return ok
}

func appendDistinct(tables []string, name string) []string {
	for _, existing := range tables {
		if existing == name {
			return tables
		}
	}
	return append(tables, name)
}

func highResult(tables []string) models.ExtractionResult {
	return models.ExtractionResult{Tables: tables, Confidence: models.ConfidenceHigh}
}

func lowResult(warning string) models.ExtractionResult {
	return models.ExtractionResult{
		Tables:     []string{},
		Confidence: models.ConfidenceLow,
		Warnings:   []string{warning},
	}
}
