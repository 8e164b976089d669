// Package calib implements the calibration store and its line-oriented
// text parser: magiron (soft/hard-iron magnetometer correction), magmot
// (per-motor magnetic interference), motlin (throttle linearization), and
// accorth (accelerometer orthogonality/offset/rotation).
package calib

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Tag names recognized in the calibration file.
const (
	TagMagIron = "magiron"
	TagMagMot  = "magmot"
	TagMotLin  = "motlin"
	TagAccOrth = "accorth"
)

// Store holds one instance of each calibration kind. Unknown sections are
// skipped with a warning; a malformed section reverts that kind alone to
// its built-in defaults, never aborting the load of the remaining file.
type Store struct {
	MagIron MagIron
	MagMot  MagMot
	MotLin  MotLin
	AccOrth AccOrth
}

// DefaultStore returns a Store populated entirely with built-in defaults,
// the fallback used when the calibration file is missing or a section
// fails validation.
func DefaultStore() Store {
	return Store{
		MagIron: DefaultMagIron(),
		MagMot:  DefaultMagMot(),
		MotLin:  DefaultMotLin(),
		AccOrth: DefaultAccOrth(),
	}
}

type section struct {
	tag     string
	entries []entry
	err     error
}

type entry struct {
	name  string
	value float32
}

// parseSections splits r into @tag sections, each a list of name/value
// entries. Blank lines and lines starting with '#' are comments. A field
// line is the first whitespace- or '='-separated token as the name and
// the second parsed as a float; a line that fails to parse as name+float
// is recorded as a parse error against the section it falls under, so
// that section alone can fall back to defaults while the sections after
// it are still read.
func parseSections(r io.Reader) ([]section, error) {
	scanner := bufio.NewScanner(r)

	var sections []section
	var cur *section

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "@") {
			sections = append(sections, section{tag: strings.TrimSpace(line[1:])})
			cur = &sections[len(sections)-1]
			continue
		}

		if cur == nil {
			continue
		}
		if cur.err != nil {
			continue
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t' || r == '='
		})
		if len(fields) < 2 {
			cur.err = fmt.Errorf("calib: malformed line %q in section @%s", line, cur.tag)
			continue
		}

		v, err := strconv.ParseFloat(fields[1], 32)
		if err != nil {
			cur.err = fmt.Errorf("calib: bad value %q for %q in section @%s: %w", fields[1], fields[0], cur.tag, err)
			continue
		}

		cur.entries = append(cur.entries, entry{name: fields[0], value: float32(v)})
	}

	return sections, scanner.Err()
}

// Load reads a calibration file from r into a new Store, starting from
// defaults and overlaying each recognized, well-formed section. Unknown
// tags are skipped with a warning; a section that fails to parse or fails
// its post-conditions reverts to the built-in default for that kind
// alone, with a warning, never aborting the rest of the load.
func Load(r io.Reader, log *logrus.Logger) Store {
	store := DefaultStore()

	sections, err := parseSections(r)
	if err != nil {
		log.WithError(err).Warn("calib: read error, continuing with sections read so far")
	}

	for _, sec := range sections {
		if sec.err != nil {
			log.WithError(sec.err).WithField("tag", sec.tag).Warn("calib: malformed section, using defaults")
			continue
		}
		switch sec.tag {
		case TagMagIron:
			mi, perr := parseMagIron(sec.entries)
			if perr != nil {
				log.WithError(perr).Warn("calib: magiron section invalid, using defaults")
				continue
			}
			store.MagIron = mi
		case TagMagMot:
			mm, perr := parseMagMot(sec.entries)
			if perr != nil {
				log.WithError(perr).Warn("calib: magmot section invalid, using defaults")
				continue
			}
			store.MagMot = mm
		case TagMotLin:
			ml, perr := parseMotLin(sec.entries)
			if perr != nil {
				log.WithError(perr).Warn("calib: motlin section invalid, using defaults")
				continue
			}
			store.MotLin = ml
		case TagAccOrth:
			ao, perr := parseAccOrth(sec.entries)
			if perr != nil {
				log.WithError(perr).Warn("calib: accorth section invalid, using defaults")
				continue
			}
			store.AccOrth = ao
		default:
			log.WithField("tag", sec.tag).Warn("calib: unknown section tag, skipping")
		}
	}

	return store
}

// WriteTo writes store back out in the same grammar Load accepts, so that
// parse -> emit -> parse is idempotent.
func (s Store) WriteTo(w io.Writer) error {
	if err := s.MagIron.WriteTo(w); err != nil {
		return err
	}
	if err := s.MagMot.WriteTo(w); err != nil {
		return err
	}
	if err := s.MotLin.WriteTo(w); err != nil {
		return err
	}
	return s.AccOrth.WriteTo(w)
}
