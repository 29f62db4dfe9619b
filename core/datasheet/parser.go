// Package datasheet parses fixed-format nuclide decay datasheets into
// nuclide.Nuclide values and loads directories of them into a catalog.
//
// A datasheet is semicolon-delimited text: a header block of labelled
// fields, then an emission table introduced by a line count header and
// closed by a rule of '='. The parser never guesses: empty fields are
// reported as unknown, and any structural deviation is a ParseError
// carrying the file and line number.
package datasheet

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/adalundhe/halflife/core/nuclide"
)

// =============================================================================
// Header Fields
// =============================================================================

type headerKey int

const (
	keyNone headerKey = iota
	keyNuclide
	keyElement
	keyZ
	keyDaughter
	keyQValue
	keyParent
	keyHalfLifeYears
	keyHalfLifeSeconds
	keyDecayConstant
	keySpecificActivity
	keyReference
)

func (k headerKey) String() string {
	if name, ok := headerKeyStrings()[k]; ok {
		return name
	}
	return "unknown"
}

type headerKeyStringMap map[headerKey]string

func headerKeyStrings() headerKeyStringMap {
	return headerKeyStringMap{
		keyNuclide:          "Nuclide",
		keyElement:          "Element",
		keyZ:                "Z",
		keyDaughter:         "Daughter(s)",
		keyQValue:           "Q-value",
		keyParent:           "Possible parent(s)",
		keyHalfLifeYears:    "Half-life (a)",
		keyHalfLifeSeconds:  "Half-life (s)",
		keyDecayConstant:    "Decay constant",
		keySpecificActivity: "Specific activity",
		keyReference:        "Reference",
	}
}

func (k headerKey) repeatable() bool {
	return k == keyDaughter || k == keyQValue || k == keyParent
}

// maxValues is the number of fields each key takes after its label.
// Reference is free text and has no limit.
func (k headerKey) maxValues() (int, bool) {
	switch k {
	case keyNuclide, keyElement, keyZ:
		return 1, true
	case keyDaughter, keyParent:
		return 4, true
	case keyQValue:
		return 3, true
	case keyHalfLifeYears, keyHalfLifeSeconds, keyDecayConstant, keySpecificActivity:
		return 2, true
	default:
		return 0, false
	}
}

var requiredKeys = []headerKey{keyNuclide, keyElement, keyZ, keyHalfLifeSeconds, keyReference}

func classifyKey(label string) headerKey {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case l == "nuclide":
		return keyNuclide
	case l == "element":
		return keyElement
	case l == "z":
		return keyZ
	case strings.HasPrefix(l, "daughter"):
		return keyDaughter
	case strings.HasPrefix(l, "q-value"), strings.HasPrefix(l, "q value"):
		return keyQValue
	case strings.HasPrefix(l, "possible parent"):
		return keyParent
	case strings.HasPrefix(l, "half-life") && strings.Contains(l, "(s)"):
		return keyHalfLifeSeconds
	case strings.HasPrefix(l, "half-life") && strings.Contains(l, "(a)"):
		return keyHalfLifeYears
	case strings.HasPrefix(l, "decay constant"):
		return keyDecayConstant
	case strings.HasPrefix(l, "specific activity"):
		return keySpecificActivity
	case strings.HasPrefix(l, "reference"):
		return keyReference
	default:
		return keyNone
	}
}

const (
	emissionFieldCount = 8
	stableMarker       = "stable"
)

var countHeader = regexp.MustCompile(`^Emissions\s*\((\d+)\s+lines?\)\s+sorted by increasing energy$`)

// =============================================================================
// Entry Points
// =============================================================================

// Parse reads one datasheet. name is used only for error locations.
func Parse(name string, r io.Reader) (*nuclide.Nuclide, error) {
	p := &parser{
		file: name,
		sc:   bufio.NewScanner(r),
		seen: make(map[headerKey]int),
	}
	return p.parse()
}

// ParseFile opens and parses the datasheet at path.
func ParseFile(path string) (*nuclide.Nuclide, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{File: path, Msg: "cannot open datasheet", Err: err}
	}
	defer f.Close()
	return Parse(path, f)
}

// =============================================================================
// Parser
// =============================================================================

type qValue struct {
	typ  nuclide.DecayType
	m    nuclide.Measurement
	line int
}

type parser struct {
	file    string
	sc      *bufio.Scanner
	line    int
	spec    nuclide.Spec
	seen    map[headerKey]int
	last    headerKey
	qvalues []qValue
}

func (p *parser) parse() (*nuclide.Nuclide, error) {
	countText, err := p.parseHeader()
	if err != nil {
		return nil, err
	}
	if err := p.parseEmissions(countText); err != nil {
		return nil, err
	}
	if err := p.parseTrailer(); err != nil {
		return nil, err
	}
	if err := p.applyQValues(); err != nil {
		return nil, err
	}

	n, err := nuclide.New(p.spec)
	if err != nil {
		return nil, p.errorf(p.seen[keyNuclide], keyNuclide.String(), "invalid nuclide", err)
	}
	return n, nil
}

func (p *parser) next() (string, bool) {
	if !p.sc.Scan() {
		return "", false
	}
	p.line++
	return strings.TrimRight(p.sc.Text(), "\r"), true
}

func (p *parser) nextNonBlank() (string, bool) {
	for {
		raw, ok := p.next()
		if !ok {
			return "", false
		}
		if text := strings.TrimSpace(raw); text != "" {
			return text, true
		}
	}
}

func (p *parser) eof(msg string) error {
	if err := p.sc.Err(); err != nil {
		return p.errorf(p.line, "", "read failed", err)
	}
	return p.errorf(p.line, "", msg, nil)
}

func (p *parser) errorf(line int, field, msg string, err error) *ParseError {
	return &ParseError{File: p.file, Line: line, Field: field, Msg: msg, Err: err}
}

// =============================================================================
// Header Block
// =============================================================================

func (p *parser) parseHeader() (string, error) {
	for {
		raw, ok := p.next()
		if !ok {
			return "", p.eof("missing emission table")
		}

		text := strings.TrimSpace(raw)
		switch {
		case text == "", isRule(text, '-'):
			continue
		case isRule(text, '='):
			return "", p.errorf(p.line, "", "unexpected '=' rule before emission table", nil)
		case strings.HasPrefix(text, "Emissions"):
			if err := p.checkRequired(); err != nil {
				return "", err
			}
			return text, nil
		}

		if err := p.parseHeaderLine(text); err != nil {
			return "", err
		}
	}
}

func (p *parser) checkRequired() error {
	for _, key := range requiredKeys {
		if _, ok := p.seen[key]; !ok {
			return p.errorf(p.line, key.String(), "missing required field", nil)
		}
	}
	return nil
}

func (p *parser) parseHeaderLine(text string) error {
	fields := splitFields(text)
	key := classifyKey(fields[0])
	if key == keyNone {
		return p.errorf(p.line, fields[0], "unknown header field", nil)
	}
	if key < p.last {
		return p.errorf(p.line, key.String(), fmt.Sprintf("out of order after %s", p.last), nil)
	}
	if _, dup := p.seen[key]; dup && !key.repeatable() {
		return p.errorf(p.line, key.String(), "duplicate field", nil)
	}
	p.seen[key] = p.line
	p.last = key

	values := fields[1:]
	if limit, ok := key.maxValues(); ok {
		// One trailing ';' is allowed.
		if len(values) == limit+1 && values[limit] == "" {
			values = values[:limit]
		}
		if len(values) > limit {
			return p.errorf(p.line, key.String(), "unexpected extra fields", nil)
		}
	}
	return p.applyHeader(key, values)
}

func (p *parser) applyHeader(key headerKey, values []string) error {
	switch key {
	case keyNuclide:
		id, err := nuclide.ParseID(valueAt(values, 0))
		if err != nil {
			return p.errorf(p.line, key.String(), "invalid nuclide identifier", err)
		}
		p.spec.ID = id
	case keyElement:
		if valueAt(values, 0) == "" {
			return p.errorf(p.line, key.String(), "empty element name", nil)
		}
		p.spec.Element = valueAt(values, 0)
	case keyZ:
		z, err := strconv.Atoi(valueAt(values, 0))
		if err != nil {
			return p.errorf(p.line, key.String(), "non-numeric atomic number", err)
		}
		p.spec.Z = z
	case keyDaughter:
		return p.applyDaughter(values)
	case keyQValue:
		return p.applyQValue(values)
	case keyParent:
		return p.applyParent(values)
	case keyHalfLifeYears:
		m, stable, err := p.halfLife(key, values)
		if err != nil || stable {
			return err
		}
		p.spec.HalfLifeYears = m
	case keyHalfLifeSeconds:
		m, stable, err := p.halfLife(key, values)
		if err != nil || stable {
			return err
		}
		p.spec.HalfLife = m
	case keyDecayConstant:
		m, err := p.measurement(key, values, 0)
		if err != nil {
			return err
		}
		p.spec.ReportedDecayConstant = m
	case keySpecificActivity:
		m, err := p.measurement(key, values, 0)
		if err != nil {
			return err
		}
		p.spec.SpecificActivity = m
	case keyReference:
		ref := strings.TrimSpace(strings.Join(values, "; "))
		ref = strings.TrimRight(ref, "; ")
		if ref == "" {
			return p.errorf(p.line, key.String(), "empty reference", nil)
		}
		p.spec.Reference = ref
	}
	return nil
}

// halfLife reads a half-life field, marking the nuclide stable on the
// stable marker.
func (p *parser) halfLife(key headerKey, values []string) (nuclide.Measurement, bool, error) {
	if isStable(valueAt(values, 0)) {
		if len(p.spec.Daughters) > 0 {
			return nuclide.Measurement{}, false, p.errorf(p.line, key.String(), "stable nuclide declares daughters", nil)
		}
		p.spec.Stable = true
		return nuclide.Measurement{}, true, nil
	}
	m, err := p.measurement(key, values, 0)
	if err != nil {
		return nuclide.Measurement{}, false, err
	}
	if m.Known && !(m.Value > 0) {
		return nuclide.Measurement{}, false, p.errorf(p.line, key.String(), fmt.Sprintf("half-life must be positive, got %g", m.Value), nil)
	}
	return m, false, nil
}

// applyDaughter reads "decay type ; daughter ; branching % [; unc]".
func (p *parser) applyDaughter(values []string) error {
	typ, id, branching, err := p.decayLink(keyDaughter, values)
	if err != nil {
		return err
	}
	if id == p.spec.ID {
		return p.errorf(p.line, keyDaughter.String(), fmt.Sprintf("%s decays to itself", id), nil)
	}
	p.spec.Daughters = append(p.spec.Daughters, nuclide.DecayMode{
		Daughter:  id,
		Type:      typ,
		Branching: branching,
	})
	return nil
}

func (p *parser) applyParent(values []string) error {
	typ, id, branching, err := p.decayLink(keyParent, values)
	if err != nil {
		return err
	}
	p.spec.Parents = append(p.spec.Parents, nuclide.ParentRef{
		Parent:    id,
		Type:      typ,
		Branching: branching,
	})
	return nil
}

func (p *parser) decayLink(key headerKey, values []string) (nuclide.DecayType, nuclide.ID, nuclide.Measurement, error) {
	if len(values) < 3 {
		return 0, nuclide.ID{}, nuclide.Measurement{}, p.errorf(p.line, key.String(),
			fmt.Sprintf("expected decay type, nuclide and branching %%, got %d fields", len(values)), nil)
	}

	typ, err := nuclide.ParseDecayType(values[0])
	if err != nil {
		return 0, nuclide.ID{}, nuclide.Measurement{}, p.errorf(p.line, key.String(), "invalid decay type", err)
	}
	id, err := nuclide.ParseID(values[1])
	if err != nil {
		return 0, nuclide.ID{}, nuclide.Measurement{}, p.errorf(p.line, key.String(), "invalid nuclide identifier", err)
	}
	percent, err := p.measurement(key, values, 2)
	if err != nil {
		return 0, nuclide.ID{}, nuclide.Measurement{}, err
	}
	if percent.Known && (percent.Value < 0 || percent.Value > 100) {
		return 0, nuclide.ID{}, nuclide.Measurement{}, p.errorf(p.line, key.String(),
			fmt.Sprintf("branching to %s outside [0,100]%%: %g", id, percent.Value), nil)
	}

	return typ, id, percent.Scale(0.01), nil
}

// applyQValue reads "decay type ; value [; unc]" in keV.
func (p *parser) applyQValue(values []string) error {
	if len(values) < 2 {
		return p.errorf(p.line, keyQValue.String(), "expected decay type and value", nil)
	}
	typ, err := nuclide.ParseDecayType(values[0])
	if err != nil {
		return p.errorf(p.line, keyQValue.String(), "invalid decay type", err)
	}
	m, err := p.measurement(keyQValue, values, 1)
	if err != nil {
		return err
	}
	p.qvalues = append(p.qvalues, qValue{typ: typ, m: m, line: p.line})
	return nil
}

func (p *parser) applyQValues() error {
	for _, q := range p.qvalues {
		matched := false
		for i := range p.spec.Daughters {
			if p.spec.Daughters[i].Type == q.typ {
				p.spec.Daughters[i].QValue = q.m
				matched = true
			}
		}
		if !matched {
			return p.errorf(q.line, keyQValue.String(), fmt.Sprintf("no daughter with decay type %s", q.typ), nil)
		}
	}
	return nil
}

// measurement reads the value at values[i] and its uncertainty at values[i+1].
func (p *parser) measurement(key headerKey, values []string, i int) (nuclide.Measurement, error) {
	m, err := parseMeasurement(valueAt(values, i), valueAt(values, i+1))
	if err != nil {
		return nuclide.Measurement{}, p.errorf(p.line, key.String(), "non-numeric value", err)
	}
	return m, nil
}

// =============================================================================
// Emission Table
// =============================================================================

func (p *parser) parseEmissions(countText string) error {
	match := countHeader.FindStringSubmatch(countText)
	if match == nil {
		return p.errorf(p.line, "Emissions", "malformed line count header", nil)
	}
	count, err := strconv.Atoi(match[1])
	if err != nil {
		return p.errorf(p.line, "Emissions", "malformed line count", err)
	}

	text, ok := p.nextNonBlank()
	if !ok {
		return p.eof("missing emission column header")
	}
	if !strings.HasPrefix(text, "Energy") {
		return p.errorf(p.line, "Emissions", "expected emission column header", nil)
	}

	text, ok = p.nextNonBlank()
	if !ok {
		return p.eof("missing rule after emission column header")
	}
	if !isRule(text, '-') {
		return p.errorf(p.line, "Emissions", "expected '-' rule after column header", nil)
	}

	if err := p.parseRows(count); err != nil {
		return err
	}

	text, ok = p.nextNonBlank()
	if !ok {
		return p.eof("missing '=' rule after emission table")
	}
	if !isRule(text, '=') {
		return p.errorf(p.line, "Emissions", fmt.Sprintf("expected '=' rule after %d emission rows", count), nil)
	}
	return nil
}

func (p *parser) parseRows(count int) error {
	prevEnergy := math.Inf(-1)
	for i := 0; i < count; i++ {
		raw, ok := p.next()
		if !ok {
			return p.eof(fmt.Sprintf("expected %d emission rows, found %d", count, i))
		}

		text := strings.TrimSpace(raw)
		if isRule(text, '=') {
			return p.errorf(p.line, "Emissions", fmt.Sprintf("expected %d emission rows, found %d", count, i), nil)
		}
		if text == "" {
			return p.errorf(p.line, "Emissions", "blank line inside emission table", nil)
		}

		line, err := p.parseRow(text)
		if err != nil {
			return err
		}
		if line.Energy.Value < prevEnergy {
			return p.errorf(p.line, "Energy", "emissions not sorted by increasing energy", nil)
		}
		prevEnergy = line.Energy.Value
		p.spec.Lines = append(p.spec.Lines, line)
	}
	return nil
}

// parseRow reads "Energy ; unc ; Intensity ; unc ; Type ; Origin ; Lvl.start ; Lvl.end".
func (p *parser) parseRow(text string) (nuclide.EmissionLine, error) {
	fields := splitFields(text)
	if len(fields) != emissionFieldCount {
		return nuclide.EmissionLine{}, p.errorf(p.line, "Emissions",
			fmt.Sprintf("expected %d fields, got %d", emissionFieldCount, len(fields)), nil)
	}

	if fields[0] == "" {
		return nuclide.EmissionLine{}, p.errorf(p.line, "Energy", "missing energy", nil)
	}
	energy, err := parseMeasurement(fields[0], fields[1])
	if err != nil {
		return nuclide.EmissionLine{}, p.errorf(p.line, "Energy", "non-numeric energy", err)
	}
	intensity, err := parseMeasurement(fields[2], fields[3])
	if err != nil {
		return nuclide.EmissionLine{}, p.errorf(p.line, "Intensity", "non-numeric intensity", err)
	}
	if energy.Value < 0 {
		return nuclide.EmissionLine{}, p.errorf(p.line, "Energy", "negative energy", nil)
	}
	if intensity.Known && intensity.Value < 0 {
		return nuclide.EmissionLine{}, p.errorf(p.line, "Intensity", "negative intensity", nil)
	}
	if fields[4] == "" {
		return nuclide.EmissionLine{}, p.errorf(p.line, "Type", "missing radiation type", nil)
	}

	line := nuclide.EmissionLine{
		Energy:    energy,
		Intensity: intensity,
		Type:      nuclide.ParseRadiationType(fields[4]),
		Code:      fields[4],
	}

	if fields[5] != "" {
		origin, err := nuclide.ParseID(fields[5])
		if err != nil {
			return nuclide.EmissionLine{}, p.errorf(p.line, "Origin", "invalid origin nuclide", err)
		}
		line.Origin = origin
	}

	if line.LevelStart, err = parseLevel(fields[6]); err != nil {
		return nuclide.EmissionLine{}, p.errorf(p.line, "Lvl. start", "non-numeric level", err)
	}
	if line.LevelEnd, err = parseLevel(fields[7]); err != nil {
		return nuclide.EmissionLine{}, p.errorf(p.line, "Lvl. end", "non-numeric level", err)
	}

	return line, nil
}

func (p *parser) parseTrailer() error {
	text, ok := p.nextNonBlank()
	if ok {
		return p.errorf(p.line, "", fmt.Sprintf("unexpected content after emission table: %q", text), nil)
	}
	if err := p.sc.Err(); err != nil {
		return p.errorf(p.line, "", "read failed", err)
	}
	return nil
}

// =============================================================================
// Field Helpers
// =============================================================================

func splitFields(text string) []string {
	fields := strings.Split(text, ";")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func valueAt(values []string, i int) string {
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}

func isRule(text string, ch byte) bool {
	if len(text) < 3 {
		return false
	}
	for i := 0; i < len(text); i++ {
		if text[i] != ch {
			return false
		}
	}
	return true
}

func isStable(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), stableMarker)
}

func parseMeasurement(value, unc string) (nuclide.Measurement, error) {
	if value == "" {
		return nuclide.Unknown(), nil
	}
	v, err := parseNumber(value)
	if err != nil {
		return nuclide.Measurement{}, err
	}
	if unc == "" {
		return nuclide.Exact(v), nil
	}
	u, err := parseNumber(unc)
	if err != nil {
		return nuclide.Measurement{}, err
	}
	return nuclide.WithUncertainty(v, u), nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, " ", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

func parseLevel(s string) (nuclide.Level, error) {
	if s == "" {
		return nuclide.Level{}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nuclide.Level{}, err
	}
	return nuclide.Level{Index: n, Known: true}, nil
}
