package sniff

import (
	"bytes"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"
)

// compiledMagic marks a compiled database file.
var compiledMagic = []byte("MGC\x01")

// database is the document form of a YAML rule database.
type database struct {
	Rules []rule `yaml:"rules"`
}

// rule is one identification rule. Rules are matched in load order and the
// first rule whose tests all pass wins.
type rule struct {
	// Description is the human readable identification, such as
	// "PNG image data".
	Description string `yaml:"description"`

	// MIME is the MIME type reported under FlagMimeType.
	MIME string `yaml:"mime"`

	// Extensions lists the file extensions reported under FlagExtension,
	// without the leading dot.
	Extensions []string `yaml:"extensions"`

	// Text marks content matched by this rule as text, so that its
	// charset is detected instead of reported as binary.
	Text bool `yaml:"text"`

	// Tests are the content probes that must all pass for the rule to
	// match.
	Tests []ruleTest `yaml:"tests"`
}

// ruleTest is one content probe. Exactly one of Hex and String holds the
// bytes expected at Offset.
type ruleTest struct {
	Offset int64  `yaml:"offset"`
	Hex    string `yaml:"hex"`
	String string `yaml:"string"`
}

// probe is one pre-decoded content test.
type probe struct {
	offset int64
	data   []byte
}

// loadedRule is a rule with its tests decoded for matching.
type loadedRule struct {
	rule
	probes []probe
}

// parseRules parses a YAML rule database. It returns the parsed rules
// together with the parse warnings, currently one per rule that lists no
// extensions.
func parseRules(data []byte) ([]rule, []string, error) {
	var db database
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, nil, fmt.Errorf("failed to parse database: %w", err)
	}
	if len(db.Rules) == 0 {
		return nil, nil, fmt.Errorf("database defines no rules")
	}

	var warnings []string
	for i, r := range db.Rules {
		if r.Description == "" {
			return nil, nil, fmt.Errorf("rule %d: missing description", i)
		}
		if len(r.Tests) == 0 {
			return nil, nil, fmt.Errorf("rule %d (%s): no tests", i, r.Description)
		}
		if _, err := buildProbes(r); err != nil {
			return nil, nil, fmt.Errorf("rule %d (%s): %w", i, r.Description, err)
		}
		if len(r.Extensions) == 0 {
			warnings = append(warnings, fmt.Sprintf("rule %d (%s): no extensions", i, r.Description))
		}
	}
	return db.Rules, warnings, nil
}

// buildProbes decodes the tests of a rule into matchable probes.
func buildProbes(r rule) ([]probe, error) {
	probes := make([]probe, 0, len(r.Tests))
	for i, t := range r.Tests {
		if t.Offset < 0 {
			return nil, fmt.Errorf("test %d: negative offset", i)
		}
		if (t.Hex == "") == (t.String == "") {
			return nil, fmt.Errorf("test %d: exactly one of hex and string is required", i)
		}

		data := []byte(t.String)
		if t.Hex != "" {
			decoded, err := hex.DecodeString(t.Hex)
			if err != nil {
				return nil, fmt.Errorf("test %d: invalid hex: %w", i, err)
			}
			data = decoded
		}
		probes = append(probes, probe{offset: t.Offset, data: data})
	}
	return probes, nil
}

// compileRules encodes rules into the compiled binary form.
func compileRules(rules []rule) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(compiledMagic)
	if err := gob.NewEncoder(&buf).Encode(rules); err != nil {
		return nil, fmt.Errorf("failed to encode database: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeCompiled decodes the compiled binary form produced by
// compileRules.
func decodeCompiled(data []byte) ([]rule, error) {
	var rules []rule
	dec := gob.NewDecoder(bytes.NewReader(data[len(compiledMagic):]))
	if err := dec.Decode(&rules); err != nil {
		return nil, fmt.Errorf("corrupt compiled database: %w", err)
	}
	return rules, nil
}

// parseFile reads and parses one database file in either form.
func (e *Engine) parseFile(path string) ([]rule, []string, error) {
	data, err := util.ReadFile(e.fsys, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read database %s: %w", path, err)
	}

	if bytes.HasPrefix(data, compiledMagic) {
		rules, err := decodeCompiled(data)
		if err != nil {
			return nil, nil, fmt.Errorf("database %s: %w", path, err)
		}
		return rules, nil, nil
	}

	rules, warnings, err := parseRules(data)
	if err != nil {
		return nil, nil, fmt.Errorf("database %s: %w", path, err)
	}
	return rules, warnings, nil
}

// splitList splits a colon-separated database path list, dropping empty
// elements.
func splitList(list string) []string {
	var paths []string
	for _, path := range strings.Split(list, ":") {
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}

// Load parses the given database files and replaces any previously loaded
// rules. Each path may be a colon-separated list of files. On failure the
// previously loaded rules stay in place.
func (s *Session) Load(paths ...string) error {
	if s.closed {
		return ErrClosedSession
	}

	var files []string
	for _, list := range paths {
		files = append(files, splitList(list)...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no database files given")
	}

	var rules []loadedRule
	for _, path := range files {
		parsed, _, err := s.engine.parseFile(path)
		if err != nil {
			return err
		}
		for _, r := range parsed {
			probes, err := buildProbes(r)
			if err != nil {
				return fmt.Errorf("database %s: %w", path, err)
			}
			rules = append(rules, loadedRule{rule: r, probes: probes})
		}
	}

	if s.flags&FlagDebug != 0 {
		s.engine.logger.Debug("load", "rules", len(rules), "files", len(files))
	}

	s.rules = rules
	s.loaded = true
	return nil
}

// Check reports whether every given database parses cleanly and stays
// under the default warning limit. With no paths there is nothing to check
// and Check reports true.
func (e *Engine) Check(paths ...string) bool {
	for _, list := range paths {
		files := splitList(list)
		if len(files) == 0 {
			return false
		}
		for _, path := range files {
			_, warnings, err := e.parseFile(path)
			if err != nil {
				return false
			}
			if uint64(len(warnings)) > defaultParameters[ParameterMagWarnMax] {
				return false
			}
		}
	}
	return true
}

// Compile compiles each given database into its binary form, writing a
// .mgc file named after the source into the engine working directory.
func (e *Engine) Compile(paths ...string) error {
	for _, list := range paths {
		files := splitList(list)
		if len(files) == 0 {
			return fmt.Errorf("no database files given")
		}
		for _, path := range files {
			rules, _, err := e.parseFile(path)
			if err != nil {
				return err
			}
			data, err := compileRules(rules)
			if err != nil {
				return err
			}

			out := e.fsys.Join(e.workDir, filepath.Base(path)+".mgc")
			if err := util.WriteFile(e.fsys, out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
		}
	}
	return nil
}
