package versions

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a version database from path. Files ending in .yaml or .yml are
// read as a YAML list of entries; anything else is read as a versions.js
// document with "hashes" and "sizes" objects.
func Load(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open versions %q: %w", path, err)
	}
	defer f.Close()

	var descs []Descriptor
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		descs, err = decodeYAML(f)
	default:
		descs, err = decodeVersionsJS(f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse versions %q: %w", path, err)
	}

	db, err := New(descs)
	if err != nil {
		return nil, fmt.Errorf("load versions %q: %w", path, err)
	}
	return db, nil
}

// yamlEntry is one element of the YAML database format.
type yamlEntry struct {
	Game    string `yaml:"game"`
	Build   string `yaml:"build"`
	Variety string `yaml:"variety"`
	Size    int64  `yaml:"size"`
	SHA256  string `yaml:"sha256"`
}

type yamlFile struct {
	Versions []yamlEntry `yaml:"versions"`
}

func decodeYAML(r io.Reader) ([]Descriptor, error) {
	var doc yamlFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	descs := make([]Descriptor, 0, len(doc.Versions))
	for i, e := range doc.Versions {
		sig, err := hex.DecodeString(e.SHA256)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): sha256: %w", i, e.Game, err)
		}
		descs = append(descs, Descriptor{
			Game:      e.Game,
			Build:     e.Build,
			Variety:   e.Variety,
			Size:      e.Size,
			Signature: sig,
		})
	}
	return descs, nil
}

// versionsJS mirrors thcrap's versions.js. Both maps carry
// [game, build, variety] arrays; variety and build may be missing.
type versionsJS struct {
	Hashes map[string][]string `json:"hashes"`
	Sizes  map[string][]string `json:"sizes"`
}

type triple struct{ game, build, variety string }

func tripleOf(v []string) (triple, bool) {
	var t triple
	if len(v) == 0 || v[0] == "" {
		return t, false
	}
	t.game = v[0]
	if len(v) > 1 {
		t.build = v[1]
	}
	if len(v) > 2 {
		t.variety = v[2]
	}
	return t, true
}

// decodeVersionsJS pairs every hash entry with every size entry of the same
// game. The size table only gates which files get hashed; the hash entry
// alone names the build, so its triple need not appear in the size table.
// A size whose game has no hash cannot be confirmed and is left out.
func decodeVersionsJS(r io.Reader) ([]Descriptor, error) {
	var doc versionsJS
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}

	type hashEntry struct {
		triple
		sig []byte
	}
	byGame := make(map[string][]hashEntry)
	for h, v := range doc.Hashes {
		t, ok := tripleOf(v)
		if !ok {
			continue
		}
		sig, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("hash %q: %w", h, err)
		}
		byGame[t.game] = append(byGame[t.game], hashEntry{triple: t, sig: sig})
	}

	var descs []Descriptor
	for key, v := range doc.Sizes {
		size, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", key, err)
		}
		t, ok := tripleOf(v)
		if !ok {
			continue
		}
		for _, h := range byGame[t.game] {
			descs = append(descs, Descriptor{
				Game:      h.game,
				Build:     h.build,
				Variety:   h.variety,
				Size:      size,
				Signature: h.sig,
			})
		}
	}
	return descs, nil
}
