package services

import (
	"chainboard/internal/models"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	maxProposalSize = 512 * 1024 // 512KB
	abstractMaxLen  = 200
	abstractMinLen  = 40
	maxTags         = 4
	wordsPerMinute  = 200
)

// scanState tracks where the line scanner is relative to the metadata table.
type scanState int

const (
	stateBeforeTable scanState = iota
	stateInTable
	stateAfterTable
)

var (
	// [Name](https://example.com) — whole cell is a markdown link
	reMarkdownLink = regexp.MustCompile(`^\[([^\]]+)\]\(([^)]*)\)$`)
	// Name (@handle) — greedy prefix so nested parentheses stay in the name
	reNameHandle = regexp.MustCompile(`^(.*?)\s*\(@([A-Za-z0-9_.-]+)\)$`)
	// [label](url) anywhere in a cell, e.g. a status with an embedded discussion link
	reInlineLink = regexp.MustCompile(`\[([^\]]+)\]\(([^)]*)\)`)
	// ACP-42 style cross references
	reProposalRef = regexp.MustCompile(`(?i)ACP-(\d+)`)
)

// proposalFrontmatter is the optional YAML block ahead of a proposal body.
// Table rows take precedence over frontmatter values.
type proposalFrontmatter struct {
	Title      string   `yaml:"title"`
	Status     string   `yaml:"status"`
	Track      string   `yaml:"track"`
	Authors    []string `yaml:"authors"`
	Discussion string   `yaml:"discussion"`
}

// tableField maps metadata-table labels onto a ProposalDocument field.
// Adding a field is a data change here, not new branching in the scanner.
type tableField struct {
	labels []string
	apply  func(doc *models.ProposalDocument, value string)
}

var tableFields = []tableField{
	{
		labels: []string{"acp", "proposal"},
		apply: func(doc *models.ProposalDocument, value string) {
			if doc.ID == "" {
				doc.ID = strings.TrimSpace(value)
			}
		},
	},
	{
		labels: []string{"title"},
		apply: func(doc *models.ProposalDocument, value string) {
			if v := strings.TrimSpace(value); v != "" {
				doc.Title = v
			}
		},
	},
	{
		labels: []string{"author", "authors", "author(s)"},
		apply: func(doc *models.ProposalDocument, value string) {
			if authors := parseAuthors(value); len(authors) > 0 {
				doc.Authors = authors
			}
		},
	},
	{
		labels: []string{"status"},
		apply: func(doc *models.ProposalDocument, value string) {
			status, link := parseStatusCell(value)
			if status != "" {
				doc.Status = status
			}
			if link != "" && doc.Discussion == "" {
				doc.Discussion = link
			}
		},
	},
	{
		labels: []string{"track", "type", "category"},
		apply: func(doc *models.ProposalDocument, value string) {
			if v := strings.TrimSpace(value); v != "" {
				doc.Track = v
			}
		},
	},
	{
		labels: []string{"discussion", "discussions", "discussions-to", "discussion(s)"},
		apply: func(doc *models.ProposalDocument, value string) {
			if link := extractLink(value); link != "" {
				doc.Discussion = link
			}
		},
	},
	{
		labels: []string{"dependencies", "depends-on", "requires"},
		apply: func(doc *models.ProposalDocument, value string) {
			doc.Dependencies = mergeRefs(doc.Dependencies, parseProposalRefs(value))
		},
	},
	{
		labels: []string{"replaces"},
		apply: func(doc *models.ProposalDocument, value string) {
			doc.Replaces = mergeRefs(doc.Replaces, parseProposalRefs(value))
		},
	},
	{
		labels: []string{"superseded-by", "superseded by"},
		apply: func(doc *models.ProposalDocument, value string) {
			doc.SupersededBy = mergeRefs(doc.SupersededBy, parseProposalRefs(value))
		},
	},
}

// ProposalParser extracts structured metadata from proposal documents.
// The zero value is not usable; construct with NewProposalParser.
type ProposalParser struct {
	tagRules  []tagRule
	techVocab []string
}

type tagRule struct {
	tag      string
	keywords []string
}

// NewProposalParser creates a parser with the default tag and vocabulary rules.
func NewProposalParser() *ProposalParser {
	return &ProposalParser{
		tagRules: []tagRule{
			{"Consensus", []string{"consensus", "snowman", "finality", "quorum"}},
			{"Staking", []string{"staking", "validator", "delegat", "uptime"}},
			{"Interoperability", []string{"warp", "cross-chain", "interchain", "teleporter", "bridge", "message"}},
			{"Fees", []string{"gas", "fee", "burn"}},
			{"Networking", []string{"p2p", "gossip", "peer", "networking", "handshake"}},
			{"VM", []string{"evm", "virtual machine", "opcode", "precompile"}},
			{"Governance", []string{"governance", "voting", "vote"}},
			{"Security", []string{"security", "attack", "slashing", "audit"}},
		},
		techVocab: []string{
			"merkle", "cryptograph", "signature", "serializ", "consensus",
			"validator", "byzantine", "state machine", "precompile", "bls",
			"epoch", "threshold", "nonce", "attestation",
		},
	}
}

// Parse extracts a ProposalDocument from raw proposal text. The id comes from
// the file naming convention upstream; an ACP table row fills it in when empty.
// Missing fields fall back to sentinels rather than failing the parse.
func (p *ProposalParser) Parse(id, raw string) (*models.ProposalDocument, error) {
	if len(raw) > maxProposalSize {
		return nil, fmt.Errorf("document exceeds maximum size of %d bytes", maxProposalSize)
	}

	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty document")
	}

	doc := &models.ProposalDocument{
		ID:       id,
		Title:    models.UnknownField,
		Status:   models.UnknownField,
		Track:    models.UnknownField,
		Abstract: models.NoAbstractAvailable,
	}

	body, err := p.applyFrontmatter(doc, raw)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(body, "\n")
	p.scanLines(doc, lines)

	if doc.Abstract == models.NoAbstractAvailable {
		// No paragraph surfaced after the table; rescan the whole document
		// outside table regions for the first qualifying paragraph.
		if abstract := fallbackAbstract(lines); abstract != "" {
			doc.Abstract = truncateAbstract(abstract)
		}
	}

	doc.Tags = p.extractTags(doc.Title, body)
	doc.Complexity = p.classifyComplexity(body)
	doc.ReadingTime = readingTime(body)

	return doc, nil
}

// applyFrontmatter strips an optional YAML frontmatter block and pre-populates
// metadata from it. Returns the remaining body.
func (p *ProposalParser) applyFrontmatter(doc *models.ProposalDocument, raw string) (string, error) {
	if !strings.HasPrefix(raw, "---\n") {
		return raw, nil
	}

	rest := raw[4:]
	closingIdx := strings.Index(rest, "\n---")
	if closingIdx == -1 {
		// Only an opening delimiter; treat everything as body
		return raw, nil
	}

	var fm proposalFrontmatter
	if err := yaml.Unmarshal([]byte(rest[:closingIdx]), &fm); err != nil {
		return "", fmt.Errorf("invalid YAML frontmatter: %w", err)
	}

	if fm.Title != "" {
		doc.Title = fm.Title
	}
	if fm.Status != "" {
		doc.Status = fm.Status
	}
	if fm.Track != "" {
		doc.Track = fm.Track
	}
	if fm.Discussion != "" {
		doc.Discussion = fm.Discussion
	}
	for _, a := range fm.Authors {
		if author, ok := parseAuthor(a); ok {
			doc.Authors = append(doc.Authors, author)
		}
	}

	return strings.TrimSpace(rest[closingIdx+4:]), nil
}

// scanLines walks the document once, tracking position relative to the
// metadata table and picking up the abstract after the table ends.
func (p *ProposalParser) scanLines(doc *models.ProposalDocument, lines []string) {
	state := stateBeforeTable

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		switch state {
		case stateBeforeTable:
			if isTableRow(trimmed) {
				label, value, ok := splitTableRow(trimmed)
				if ok && lookupField(label) != nil {
					state = stateInTable
					lookupField(label).apply(doc, value)
				}
			}

		case stateInTable:
			if isHeading(trimmed) {
				state = stateAfterTable
				continue
			}
			if !isTableRow(trimmed) {
				continue
			}
			label, value, ok := splitTableRow(trimmed)
			if !ok {
				continue
			}
			if field := lookupField(label); field != nil {
				field.apply(doc, value)
			}

		case stateAfterTable:
			if doc.Abstract != models.NoAbstractAvailable {
				return
			}
			if trimmed == "" || isHeading(trimmed) || isTableRow(trimmed) {
				continue
			}
			if len(trimmed) >= abstractMinLen {
				doc.Abstract = truncateAbstract(trimmed)
			}
		}
	}
}

// fallbackAbstract scans the entire document outside table regions for the
// first paragraph long enough to serve as an abstract.
func fallbackAbstract(lines []string) string {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isHeading(trimmed) || isTableRow(trimmed) {
			continue
		}
		if len(trimmed) >= abstractMinLen {
			return trimmed
		}
	}
	return ""
}

// truncateAbstract caps an abstract at abstractMaxLen characters, appending
// the ellipsis marker exactly once and only when text was actually cut.
func truncateAbstract(text string) string {
	if len(text) <= abstractMaxLen {
		return text
	}
	return text[:abstractMaxLen] + "..."
}

// extractTags tests the keyword dictionary against the lowercased title and
// body. Matching is substring-based, not word-boundary, for compatibility
// with the upstream processed data.
func (p *ProposalParser) extractTags(title, body string) []string {
	text := strings.ToLower(title + " " + body)

	var tags []string
	for _, rule := range p.tagRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				tags = append(tags, rule.tag)
				break
			}
		}
		if len(tags) >= maxTags {
			break
		}
	}
	return tags
}

// classifyComplexity scores the document from code blocks, technical
// vocabulary density and the presence of an implementation section.
func (p *ProposalParser) classifyComplexity(body string) string {
	text := strings.ToLower(body)

	score := strings.Count(text, "```") / 2 * 3

	for _, term := range p.techVocab {
		score += strings.Count(text, term)
	}

	if strings.Contains(text, "# implementation") {
		score += 5
	}

	switch {
	case score >= 25:
		return models.ComplexityHigh
	case score >= 10:
		return models.ComplexityMedium
	default:
		return models.ComplexityLow
	}
}

// readingTime estimates minutes at wordsPerMinute, rounding up, minimum 1.
func readingTime(body string) int {
	words := len(strings.Fields(body))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

func isHeading(line string) bool {
	return strings.HasPrefix(line, "#")
}

func isTableRow(line string) bool {
	return strings.HasPrefix(line, "|")
}

// splitTableRow splits "| **Label** | value |" into a normalized label and the
// raw value cell, stripping bold markers and surrounding decoration.
func splitTableRow(line string) (label, value string, ok bool) {
	line = strings.Trim(line, "|")
	cells := strings.Split(line, "|")
	if len(cells) < 2 {
		return "", "", false
	}

	label = cleanCell(cells[0])
	label = strings.ToLower(strings.TrimSuffix(label, ":"))
	value = cleanCell(cells[1])
	return label, value, true
}

// cleanCell trims whitespace and bold markers from a table cell.
func cleanCell(cell string) string {
	cell = strings.TrimSpace(cell)
	cell = strings.Trim(cell, "*_")
	return strings.TrimSpace(cell)
}

func lookupField(label string) *tableField {
	for i := range tableFields {
		for _, l := range tableFields[i].labels {
			if label == l {
				return &tableFields[i]
			}
		}
	}
	return nil
}

// parseAuthors splits an author cell on commas, respecting bracketed and
// parenthesized sub-groups, and parses each chunk.
func parseAuthors(cell string) []models.Author {
	var authors []models.Author
	for _, chunk := range splitAuthorList(cell) {
		if author, ok := parseAuthor(chunk); ok {
			authors = append(authors, author)
		}
	}
	return authors
}

// splitAuthorList splits on commas at bracket depth zero.
func splitAuthorList(cell string) []string {
	var parts []string
	depth := 0
	start := 0

	for i, r := range cell {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, cell[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, cell[start:])
	return parts
}

// parseAuthor matches "Name (@handle)" and "[Name](link)" forms; anything
// else becomes a name-only entry.
func parseAuthor(chunk string) (models.Author, bool) {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return models.Author{}, false
	}

	if m := reMarkdownLink.FindStringSubmatch(chunk); m != nil {
		inner := strings.TrimSpace(m[1])
		link := m[2]
		if nm := reNameHandle.FindStringSubmatch(inner); nm != nil {
			return models.Author{Name: strings.TrimSpace(nm[1]), Handle: nm[2]}, true
		}
		if handle := handleFromLink(link); handle != "" {
			return models.Author{Name: inner, Handle: handle}, true
		}
		return models.Author{Name: inner}, true
	}

	if m := reNameHandle.FindStringSubmatch(chunk); m != nil {
		return models.Author{Name: strings.TrimSpace(m[1]), Handle: m[2]}, true
	}

	return models.Author{Name: chunk}, true
}

// handleFromLink pulls a handle out of a GitHub profile link.
func handleFromLink(link string) string {
	idx := strings.Index(link, "github.com/")
	if idx == -1 {
		return ""
	}
	handle := link[idx+len("github.com/"):]
	if cut := strings.IndexAny(handle, "/?#"); cut != -1 {
		handle = handle[:cut]
	}
	return handle
}

// parseStatusCell splits "[Proposed](url)" into the status label and the
// embedded discussion link; plain cells yield the trimmed text and no link.
func parseStatusCell(cell string) (status, link string) {
	if m := reInlineLink.FindStringSubmatch(cell); m != nil {
		return strings.TrimSpace(m[1]), m[2]
	}
	return strings.TrimSpace(cell), ""
}

// extractLink pulls the target out of a markdown link, or returns the trimmed
// cell when it is already a bare URL.
func extractLink(cell string) string {
	if m := reInlineLink.FindStringSubmatch(cell); m != nil {
		return m[2]
	}
	return strings.TrimSpace(cell)
}

// parseProposalRefs collects ACP-<n> references from a cell, deduplicated in
// order of first appearance.
func parseProposalRefs(cell string) []string {
	matches := reProposalRef.FindAllStringSubmatch(cell, -1)
	seen := make(map[string]bool, len(matches))
	var refs []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}
	return refs
}

func mergeRefs(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r] = true
	}
	for _, r := range incoming {
		if !seen[r] {
			seen[r] = true
			existing = append(existing, r)
		}
	}
	return existing
}
